// Request payloads and validation for the timetree API
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/relmap/timetree/pkg/graph"
)

const (
	maxLabelLength = 200

	duplicateModeParallel = "parallel"
	duplicateModeSeries   = "series"
)

type createTimelineRequest struct {
	Label    string          `json:"label"`
	Document *graph.Document `json:"document,omitempty"`
}

func (r createTimelineRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Label,
			validation.Required,
			validation.Length(1, maxLabelLength),
		),
	)
}

type renameStateRequest struct {
	Label       string  `json:"label"`
	Description *string `json:"description,omitempty"`
}

func (r renameStateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Label,
			validation.Required,
			validation.Length(1, maxLabelLength),
		),
	)
}

type duplicateStateRequest struct {
	Mode string `json:"mode"`
}

func (r duplicateStateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode,
			validation.Required,
			validation.In(duplicateModeParallel, duplicateModeSeries),
		),
	)
}

type capturePayloadRequest struct {
	Document *graph.Document `json:"document"`
}

func (r capturePayloadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Document, validation.Required),
	)
}

// decodeAndValidate decodes a JSON request body and runs its validation.
func decodeAndValidate(r *http.Request, dst interface{ Validate() error }) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return dst.Validate()
}
