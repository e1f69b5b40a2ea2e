// Package server implements the timetree HTTP API
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relmap/timetree/internal/events"
	"github.com/relmap/timetree/internal/logger"
	"github.com/relmap/timetree/internal/metrics"
	"github.com/relmap/timetree/pkg/graph"
	"github.com/relmap/timetree/pkg/layout"
	"github.com/relmap/timetree/pkg/persist"
	"github.com/relmap/timetree/pkg/render"
	"github.com/relmap/timetree/pkg/timeline"
)

// Server hosts the timeline API. It owns the loaded timelines and
// serializes mutations per timeline, since the tree engine assumes one
// in-flight mutation at a time.
type Server struct {
	log   *logger.Logger
	m     *metrics.Metrics
	bus   *events.Bus
	store *persist.Store // nil disables persistence

	mu        sync.RWMutex
	timelines map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	ctrl *timeline.Controller
}

// busPublisher forwards controller changes onto the event bus, stamped
// with the owning timeline id.
type busPublisher struct {
	timelineID string
	bus        *events.Bus
	m          *metrics.Metrics
}

func (p *busPublisher) Publish(ch timeline.Change) {
	p.m.EventsPublished.Inc()
	p.bus.Publish(events.Event{
		TimelineID: p.timelineID,
		Op:         ch.Op,
		StateID:    ch.StateID,
		Label:      ch.Label,
	})
}

// New creates a server and loads every persisted timeline. A timeline
// that fails invariant validation aborts startup rather than being
// silently skipped.
func New(log *logger.Logger, m *metrics.Metrics, bus *events.Bus, store *persist.Store) (*Server, error) {
	s := &Server{
		log:       log,
		m:         m,
		bus:       bus,
		store:     store,
		timelines: make(map[string]*entry),
	}

	if store != nil {
		ids, err := store.ListTimelines()
		if err != nil {
			return nil, fmt.Errorf("listing timelines: %w", err)
		}
		for _, id := range ids {
			tl, err := store.LoadTimeline(id)
			if err != nil {
				return nil, fmt.Errorf("loading timeline %s: %w", id, err)
			}
			s.timelines[id] = s.newEntry(id, tl)
		}
	}

	s.updateStats()
	return s, nil
}

func (s *Server) newEntry(id string, tl *timeline.Timeline) *entry {
	pub := &busPublisher{timelineID: id, bus: s.bus, m: s.m}
	return &entry{ctrl: timeline.NewController(tl, pub)}
}

// Routes returns the API handler with observability middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/timelines", s.instrument("create_timeline", s.handleCreateTimeline))
	mux.HandleFunc("GET /api/timelines", s.instrument("list_timelines", s.handleListTimelines))
	mux.HandleFunc("GET /api/timelines/{id}", s.instrument("get_timeline", s.handleGetTimeline))
	mux.HandleFunc("DELETE /api/timelines/{id}", s.instrument("delete_timeline", s.handleDeleteTimeline))
	mux.HandleFunc("GET /api/timelines/{id}/layout", s.instrument("layout", s.handleLayout))
	mux.HandleFunc("GET /api/timelines/{id}/layout.svg", s.instrument("layout_svg", s.handleLayoutSVG))
	mux.HandleFunc("GET /api/timelines/{id}/states/{sid}", s.instrument("get_state", s.handleGetState))
	mux.HandleFunc("POST /api/timelines/{id}/states/{sid}/switch", s.instrument("switch", s.handleSwitch))
	mux.HandleFunc("PATCH /api/timelines/{id}/states/{sid}", s.instrument("rename", s.handleRename))
	mux.HandleFunc("POST /api/timelines/{id}/states/{sid}/duplicate", s.instrument("duplicate", s.handleDuplicate))
	mux.HandleFunc("PUT /api/timelines/{id}/states/{sid}/payload", s.instrument("capture", s.handleCapture))
	mux.HandleFunc("DELETE /api/timelines/{id}/states/{sid}", s.instrument("delete", s.handleDelete))
	mux.HandleFunc("GET /api/ws", s.handleWS)

	return mux
}

func (s *Server) entryFor(r *http.Request) (*entry, string, bool) {
	id := r.PathValue("id")
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.timelines[id]
	return e, id, ok
}

func (s *Server) updateStats() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := 0
	for _, e := range s.timelines {
		states += e.ctrl.Timeline().Len()
	}
	s.m.UpdateTreeStats(len(s.timelines), states)
}

// runOp executes one mutation under the timeline's lock, persists the
// result and records operation metrics and logs.
func (s *Server) runOp(e *entry, timelineID, op string, fn func(c *timeline.Controller) (string, error)) error {
	start := time.Now()

	e.mu.Lock()
	stateID, err := fn(e.ctrl)
	if err == nil && s.store != nil {
		if saveErr := s.store.SaveTimeline(timelineID, e.ctrl.Timeline()); saveErr != nil {
			err = fmt.Errorf("persisting timeline: %w", saveErr)
		}
	}
	e.mu.Unlock()

	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start)
	s.m.RecordTimelineOp(op, status, duration)
	s.log.LogTimelineOp(op, timelineID, stateID, duration, err)
	s.updateStats()
	return err
}

// ========== Timeline handlers ==========

func (s *Server) handleCreateTimeline(w http.ResponseWriter, r *http.Request) {
	var req createTimelineRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	doc := req.Document
	if doc == nil {
		doc = graph.NewDocument()
	}

	id := uuid.NewString()
	e := s.newEntry(id, timeline.NewTimeline())

	root, err := e.ctrl.CreateRoot(req.Label, doc)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	if s.store != nil {
		if err := s.store.SaveTimeline(id, e.ctrl.Timeline()); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	s.mu.Lock()
	s.timelines[id] = e
	s.mu.Unlock()
	s.updateStats()

	writeJSON(w, http.StatusCreated, map[string]any{
		"timeline_id": id,
		"root":        root,
	})
}

func (s *Server) handleListTimelines(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.timelines))
	for id := range s.timelines {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{"timelines": ids})
}

func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	e, id, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}

	e.mu.Lock()
	tl := e.ctrl.Timeline()
	resp := map[string]any{
		"timeline_id":      id,
		"root_state_id":    tl.RootID(),
		"current_state_id": tl.CurrentID(),
		"state_count":      tl.Len(),
	}
	e.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteTimeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	_, ok := s.timelines[id]
	if ok {
		delete(s.timelines, id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}

	if s.store != nil {
		if err := s.store.DeleteTimeline(id); err != nil && !errors.Is(err, persist.ErrTimelineNotFound) {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	s.updateStats()
	w.WriteHeader(http.StatusNoContent)
}

// ========== Layout handlers ==========

func (s *Server) computeLayout(e *entry) ([]layout.Node, []layout.Edge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tl := e.ctrl.Timeline()
	return layout.Compute(tl.States(), tl.RootID(), tl.CurrentID())
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	e, _, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}

	nodes, edges, err := s.computeLayout(e)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	s.m.LayoutsComputedTotal.Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"edges": edges,
	})
}

func (s *Server) handleLayoutSVG(w http.ResponseWriter, r *http.Request) {
	e, _, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}

	nodes, edges, err := s.computeLayout(e)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	s.m.LayoutsComputedTotal.Inc()
	s.m.SVGRendersTotal.Inc()

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(render.SVG(nodes, edges))
}

// ========== State handlers ==========

// stateResponse exposes the payload alongside the state fields.
type stateResponse struct {
	*timeline.State
	Payload *graph.Document `json:"payload,omitempty"`
	Current bool            `json:"current"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	e, _, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tl := e.ctrl.Timeline()
	st, found := tl.Get(r.PathValue("sid"))
	if !found {
		writeError(w, http.StatusNotFound, timeline.ErrNotFound)
		return
	}

	resp := stateResponse{State: st, Current: st.ID == tl.CurrentID()}
	if doc, ok := st.Payload.(*graph.Document); ok {
		resp.Payload = doc
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	e, id, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}
	sid := r.PathValue("sid")

	err := s.runOp(e, id, timeline.OpSwitch, func(c *timeline.Controller) (string, error) {
		return sid, c.SwitchToState(sid)
	})
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current_state_id": sid})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	e, id, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}
	sid := r.PathValue("sid")

	var req renameStateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := s.runOp(e, id, timeline.OpRename, func(c *timeline.Controller) (string, error) {
		if err := c.RenameState(sid, req.Label); err != nil {
			return sid, err
		}
		if req.Description != nil {
			st, _ := c.Timeline().Get(sid)
			st.Description = *req.Description
		}
		return sid, nil
	})
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state_id": sid})
}

func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	e, id, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}
	sid := r.PathValue("sid")

	var req duplicateStateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var dup *timeline.State
	err := s.runOp(e, id, timeline.OpDuplicate, func(c *timeline.Controller) (string, error) {
		var opErr error
		if req.Mode == duplicateModeSeries {
			dup, opErr = c.DuplicateStateAsChild(sid)
		} else {
			dup, opErr = c.DuplicateState(sid)
		}
		if opErr != nil {
			return sid, opErr
		}
		return dup.ID, nil
	})
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	e, id, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}
	sid := r.PathValue("sid")

	var req capturePayloadRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := s.runOp(e, id, timeline.OpCapture, func(c *timeline.Controller) (string, error) {
		return sid, c.CaptureState(sid, req.Document)
	})
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state_id": sid})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	e, id, ok := s.entryFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, persist.ErrTimelineNotFound)
		return
	}
	sid := r.PathValue("sid")

	err := s.runOp(e, id, timeline.OpDelete, func(c *timeline.Controller) (string, error) {
		return sid, c.DeleteState(sid)
	})
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}

	e.mu.Lock()
	current := e.ctrl.Timeline().CurrentID()
	e.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted_state_id": sid,
		"current_state_id": current,
	})
}

// ========== Helpers ==========

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// httpStatus maps engine errors to response codes. Invariant violations
// surface as 500: they indicate a bug or corrupt data, not a bad request.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, timeline.ErrNotFound), errors.Is(err, persist.ErrTimelineNotFound):
		return http.StatusNotFound
	case errors.Is(err, timeline.ErrInvalidLabel):
		return http.StatusBadRequest
	case errors.Is(err, timeline.ErrCannotDeleteRoot),
		errors.Is(err, timeline.ErrDuplicateID),
		errors.Is(err, timeline.ErrDanglingParent),
		errors.Is(err, timeline.ErrAlreadyInitialized):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
