// ABOUTME: In-memory state store for one document's version tree
// ABOUTME: Enforces single root, acyclic parent links and pointer validity

package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Timeline owns the full version tree for one document: the state records,
// the root anchor and the current-state pointer. A zero timeline is
// uninitialized and accepts only CreateRoot.
//
// Timelines are not safe for concurrent use; callers serialize mutations
// externally (one writer per timeline).
type Timeline struct {
	states    map[string]*State
	rootID    string
	currentID string

	// Derived parent -> child ids index, rebuilt lazily after mutations.
	childIndex map[string][]string
	indexDirty bool
}

// NewTimeline creates an empty, uninitialized timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		states:     make(map[string]*State),
		indexDirty: true,
	}
}

// CreateRoot initializes the tree with a parentless root state holding the
// document's current payload.
func (t *Timeline) CreateRoot(label string, payload Snapshot) (*State, error) {
	if t.rootID != "" {
		return nil, ErrAlreadyInitialized
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrInvalidLabel
	}

	root := &State{
		ID:        uuid.NewString(),
		Label:     label,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	t.states[root.ID] = root
	t.rootID = root.ID
	t.currentID = root.ID
	t.indexDirty = true
	return root, nil
}

// Get returns the state with the given id, or false if absent.
func (t *Timeline) Get(id string) (*State, bool) {
	st, ok := t.states[id]
	return st, ok
}

// Insert adds a fully formed state to the tree. The state must carry a
// fresh id and, unless it is the first (root) state, a parent already
// present in the tree.
func (t *Timeline) Insert(st *State) error {
	if _, exists := t.states[st.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, st.ID)
	}
	if st.ParentID == nil {
		// A second parentless state would mean a second root.
		if t.rootID != "" {
			return ErrAlreadyInitialized
		}
		t.rootID = st.ID
		t.currentID = st.ID
	} else if _, ok := t.states[*st.ParentID]; !ok {
		return fmt.Errorf("%w: %s", ErrDanglingParent, *st.ParentID)
	}

	t.states[st.ID] = st
	t.indexDirty = true
	return nil
}

// Rename sets a state's label in place. The new label must be non-empty
// after trimming; the stored label is the trimmed form.
func (t *Timeline) Rename(id, newLabel string) error {
	st, ok := t.states[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	trimmed := strings.TrimSpace(newLabel)
	if trimmed == "" {
		return ErrInvalidLabel
	}
	st.Label = trimmed
	return nil
}

// Delete removes a state. With reparentChildren set, every child of the
// deleted state is rewritten to point at the deleted state's parent before
// the record goes away, so the tree stays connected. Deleting the root, or
// the state the current pointer still rests on, is refused.
func (t *Timeline) Delete(id string, reparentChildren bool) error {
	st, ok := t.states[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if id == t.rootID {
		return ErrCannotDeleteRoot
	}
	if id == t.currentID {
		// The controller must move the pointer to a successor first.
		return fmt.Errorf("%w: current pointer still references %s", ErrInvariantViolation, id)
	}

	children := t.ChildrenOf(id)
	if len(children) > 0 && !reparentChildren {
		return fmt.Errorf("%w: deleting %s would orphan %d states", ErrInvariantViolation, id, len(children))
	}

	for _, childID := range children {
		t.states[childID].ParentID = st.ParentID
	}
	delete(t.states, id)
	t.indexDirty = true
	return nil
}

// SetPayload replaces a state's payload with a freshly captured snapshot.
// Tree structure and labels are untouched.
func (t *Timeline) SetPayload(id string, payload Snapshot) error {
	st, ok := t.states[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	st.Payload = payload
	return nil
}

// SwitchTo moves the current-state pointer.
func (t *Timeline) SwitchTo(id string) error {
	if _, ok := t.states[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.currentID = id
	return nil
}

// ChildrenOf returns the ids of a state's direct children in deterministic
// order (creation time, then id).
func (t *Timeline) ChildrenOf(id string) []string {
	if t.indexDirty {
		t.rebuildChildIndex()
	}
	return t.childIndex[id]
}

func (t *Timeline) rebuildChildIndex() {
	idx := make(map[string][]string)
	for _, st := range t.states {
		if st.ParentID != nil {
			idx[*st.ParentID] = append(idx[*st.ParentID], st.ID)
		}
	}
	for parent, kids := range idx {
		sort.Slice(kids, func(i, j int) bool {
			a, b := t.states[kids[i]], t.states[kids[j]]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		idx[parent] = kids
	}
	t.childIndex = idx
	t.indexDirty = false
}

// RootID returns the root state id, or "" if uninitialized.
func (t *Timeline) RootID() string {
	return t.rootID
}

// CurrentID returns the id of the active state, or "" if uninitialized.
func (t *Timeline) CurrentID() string {
	return t.currentID
}

// Current returns the active state.
func (t *Timeline) Current() (*State, bool) {
	return t.Get(t.currentID)
}

// Len returns the number of states in the tree.
func (t *Timeline) Len() int {
	return len(t.states)
}

// States returns the id -> state mapping. Callers must treat it as
// read-only; it is the live map, not a copy.
func (t *Timeline) States() map[string]*State {
	return t.states
}

// All returns every state ordered by creation time, then id.
func (t *Timeline) All() []*State {
	out := make([]*State, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Restore rebuilds a timeline from persisted states and verifies every
// tree invariant before handing it back. A malformed tree fails closed
// with ErrInvariantViolation; the engine is never given a broken tree.
func Restore(states []*State, rootID, currentID string) (*Timeline, error) {
	t := NewTimeline()
	for _, st := range states {
		if _, exists := t.states[st.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvariantViolation, st.ID)
		}
		t.states[st.ID] = st
	}

	root, ok := t.states[rootID]
	if !ok {
		return nil, fmt.Errorf("%w: root %s missing", ErrInvariantViolation, rootID)
	}
	if !root.IsRoot() {
		return nil, fmt.Errorf("%w: root %s has a parent", ErrInvariantViolation, rootID)
	}
	if _, ok := t.states[currentID]; !ok {
		return nil, fmt.Errorf("%w: current %s missing", ErrInvariantViolation, currentID)
	}

	// Exactly one parentless state, and every parent link resolves.
	for _, st := range t.states {
		if st.ParentID == nil {
			if st.ID != rootID {
				return nil, fmt.Errorf("%w: second root %s", ErrInvariantViolation, st.ID)
			}
			continue
		}
		if _, ok := t.states[*st.ParentID]; !ok {
			return nil, fmt.Errorf("%w: state %s has dangling parent %s", ErrInvariantViolation, st.ID, *st.ParentID)
		}
	}

	// Every state walks up to the root without revisiting a node.
	for id := range t.states {
		seen := map[string]bool{}
		cur := t.states[id]
		for cur.ParentID != nil {
			if seen[cur.ID] {
				return nil, fmt.Errorf("%w: parent cycle through %s", ErrInvariantViolation, cur.ID)
			}
			seen[cur.ID] = true
			cur = t.states[*cur.ParentID]
		}
		if cur.ID != rootID {
			return nil, fmt.Errorf("%w: state %s not anchored at root", ErrInvariantViolation, id)
		}
	}

	t.rootID = rootID
	t.currentID = currentID
	t.indexDirty = true
	return t, nil
}
