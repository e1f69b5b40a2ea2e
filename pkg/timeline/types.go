// ABOUTME: Version tree data model for one document
// ABOUTME: States, descriptive metadata and the opaque payload contract

package timeline

import "time"

// Snapshot is an opaque copy of the document's editable content at the
// moment a state was captured. The tree engine never looks inside it; it
// only asks for a structural copy when a state is duplicated.
type Snapshot interface {
	Clone() Snapshot
}

// Meta holds purely descriptive annotations for a state. It never
// participates in tree invariants.
type Meta struct {
	Date  string   `json:"date,omitempty"`
	Color string   `json:"color,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// State is one node in the version tree.
type State struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	ParentID    *string   `json:"parent_id,omitempty"` // nil exactly for the root
	Meta        Meta      `json:"meta,omitempty"`
	Payload     Snapshot  `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsRoot reports whether the state is the parentless root of its tree.
func (s *State) IsRoot() bool {
	return s.ParentID == nil
}

// Change describes a committed mutation of a timeline. Controllers publish
// one Change per successful operation.
type Change struct {
	Op      string `json:"op"`
	StateID string `json:"state_id"`
	Label   string `json:"label,omitempty"`
}

// Change operation names.
const (
	OpCreateRoot = "create_root"
	OpSwitch     = "switch"
	OpRename     = "rename"
	OpDuplicate  = "duplicate"
	OpDelete     = "delete"
	OpCapture    = "capture"
)

// Publisher receives change notifications after a mutation has committed.
// Implementations must not call back into the timeline.
type Publisher interface {
	Publish(Change)
}
