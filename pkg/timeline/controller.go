// ABOUTME: User-facing operations over one timeline
// ABOUTME: Branch, rename and delete with pointer successor selection

package timeline

import (
	"time"

	"github.com/google/uuid"
)

// Controller orchestrates user-initiated operations against a timeline:
// switching, renaming, duplicating (sibling or child) and deleting with
// child reparenting. Each operation is one logical transaction; callers
// never observe a half-applied tree.
type Controller struct {
	tl  *Timeline
	pub Publisher
}

// NewController creates a controller for the given timeline. pub may be
// nil if nobody listens for change events.
func NewController(tl *Timeline, pub Publisher) *Controller {
	return &Controller{tl: tl, pub: pub}
}

// Timeline returns the controlled timeline.
func (c *Controller) Timeline() *Timeline {
	return c.tl
}

func (c *Controller) publish(op, stateID, label string) {
	if c.pub != nil {
		c.pub.Publish(Change{Op: op, StateID: stateID, Label: label})
	}
}

// CreateRoot initializes the timeline with its root state. Only valid on
// an uninitialized timeline.
func (c *Controller) CreateRoot(label string, payload Snapshot) (*State, error) {
	root, err := c.tl.CreateRoot(label, payload)
	if err != nil {
		return nil, err
	}
	c.publish(OpCreateRoot, root.ID, root.Label)
	return root, nil
}

// SwitchToState makes the given state the active one. The graph canvas
// collaborator reads the new current payload after this returns.
func (c *Controller) SwitchToState(id string) error {
	if err := c.tl.SwitchTo(id); err != nil {
		return err
	}
	c.publish(OpSwitch, id, "")
	return nil
}

// RenameState sets a state's label.
func (c *Controller) RenameState(id, newLabel string) error {
	if err := c.tl.Rename(id, newLabel); err != nil {
		return err
	}
	st, _ := c.tl.Get(id)
	c.publish(OpRename, id, st.Label)
	return nil
}

// DuplicateState creates a sibling of the given state: a fresh id, the
// same parent and an independent copy of the payload. The current pointer
// does not move. Duplicating the root fails with ErrAlreadyInitialized
// since a sibling of the root would be a second root.
func (c *Controller) DuplicateState(id string) (*State, error) {
	src, ok := c.tl.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return c.insertCopy(src, src.ParentID)
}

// DuplicateStateAsChild creates a child of the given state with an
// independent copy of its payload. The current pointer does not move.
func (c *Controller) DuplicateStateAsChild(id string) (*State, error) {
	src, ok := c.tl.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	parent := src.ID
	return c.insertCopy(src, &parent)
}

func (c *Controller) insertCopy(src *State, parentID *string) (*State, error) {
	var payload Snapshot
	if src.Payload != nil {
		payload = src.Payload.Clone()
	}

	dup := &State{
		ID:          uuid.NewString(),
		Label:       src.Label + " copy",
		Description: src.Description,
		ParentID:    parentID,
		Meta: Meta{
			Date:  src.Meta.Date,
			Color: src.Meta.Color,
			Tags:  append([]string(nil), src.Meta.Tags...),
		},
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	if err := c.tl.Insert(dup); err != nil {
		return nil, err
	}
	c.publish(OpDuplicate, dup.ID, dup.Label)
	return dup, nil
}

// CaptureState saves a new snapshot of the document's content into the
// given state, replacing its previous payload. The canvas collaborator
// calls this when the user saves edits back into a state.
func (c *Controller) CaptureState(id string, payload Snapshot) error {
	if err := c.tl.SetPayload(id, payload); err != nil {
		return err
	}
	c.publish(OpCapture, id, "")
	return nil
}

// DeleteState removes a state from the tree. If the state is the active
// one, the pointer walks up to its parent first; the parent always exists
// for a non-root state and stays valid after the delete. Children of the
// deleted state are reparented onto its parent.
func (c *Controller) DeleteState(id string) error {
	st, ok := c.tl.Get(id)
	if !ok {
		return ErrNotFound
	}
	if id == c.tl.RootID() {
		return ErrCannotDeleteRoot
	}

	if id == c.tl.CurrentID() {
		if err := c.tl.SwitchTo(*st.ParentID); err != nil {
			return err
		}
	}
	if err := c.tl.Delete(id, true); err != nil {
		return err
	}
	c.publish(OpDelete, id, st.Label)
	return nil
}
