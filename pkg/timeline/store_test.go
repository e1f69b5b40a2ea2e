// ABOUTME: Tests for the version tree state store
// ABOUTME: Verifies invariants across create, insert, rename and delete

package timeline

import (
	"errors"
	"testing"
	"time"
)

type fakeSnapshot struct {
	value string
}

func (f *fakeSnapshot) Clone() Snapshot {
	cp := *f
	return &cp
}

func TestCreateRoot(t *testing.T) {
	tl := NewTimeline()

	root, err := tl.CreateRoot("Initial", &fakeSnapshot{value: "v0"})
	if err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}

	if !root.IsRoot() {
		t.Error("Expected root to have no parent")
	}
	if tl.RootID() != root.ID {
		t.Errorf("Expected root id %s, got %s", root.ID, tl.RootID())
	}
	if tl.CurrentID() != root.ID {
		t.Errorf("Expected current pointer at root, got %s", tl.CurrentID())
	}

	// Second root is refused
	if _, err := tl.CreateRoot("Another", nil); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestCreateRootEmptyLabel(t *testing.T) {
	tl := NewTimeline()

	if _, err := tl.CreateRoot("   ", nil); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("Expected ErrInvalidLabel, got %v", err)
	}
	if tl.RootID() != "" {
		t.Error("Expected timeline to stay uninitialized")
	}
}

func TestInsert(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("Initial", nil)

	child := &State{
		ID:        "child-1",
		Label:     "Child",
		ParentID:  &root.ID,
		CreatedAt: time.Now(),
	}
	if err := tl.Insert(child); err != nil {
		t.Fatalf("Failed to insert child: %v", err)
	}

	got, ok := tl.Get("child-1")
	if !ok {
		t.Fatal("Expected to find inserted state")
	}
	if *got.ParentID != root.ID {
		t.Errorf("Expected parent %s, got %s", root.ID, *got.ParentID)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("Initial", nil)

	st := &State{ID: "dup", Label: "A", ParentID: &root.ID, CreatedAt: time.Now()}
	if err := tl.Insert(st); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	again := &State{ID: "dup", Label: "B", ParentID: &root.ID, CreatedAt: time.Now()}
	if err := tl.Insert(again); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
}

func TestInsertDanglingParent(t *testing.T) {
	tl := NewTimeline()
	tl.CreateRoot("Initial", nil)

	missing := "no-such-state"
	st := &State{ID: "orphan", Label: "X", ParentID: &missing, CreatedAt: time.Now()}
	if err := tl.Insert(st); !errors.Is(err, ErrDanglingParent) {
		t.Errorf("Expected ErrDanglingParent, got %v", err)
	}
	if _, ok := tl.Get("orphan"); ok {
		t.Error("Expected rejected state to be absent")
	}
}

func TestInsertSecondRoot(t *testing.T) {
	tl := NewTimeline()
	tl.CreateRoot("Initial", nil)

	st := &State{ID: "root-2", Label: "Rogue", CreatedAt: time.Now()}
	if err := tl.Insert(st); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestRename(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("Initial", nil)

	if err := tl.Rename(root.ID, "  Renamed  "); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}
	st, _ := tl.Get(root.ID)
	if st.Label != "Renamed" {
		t.Errorf("Expected trimmed label Renamed, got %q", st.Label)
	}
}

func TestRenameRejections(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("Initial", nil)

	if err := tl.Rename("missing", "New"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := tl.Rename(root.ID, "   "); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("Expected ErrInvalidLabel, got %v", err)
	}
	st, _ := tl.Get(root.ID)
	if st.Label != "Initial" {
		t.Errorf("Expected label unchanged after rejected rename, got %q", st.Label)
	}
}

func TestSetPayload(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("Initial", &fakeSnapshot{value: "v0"})

	if err := tl.SetPayload(root.ID, &fakeSnapshot{value: "v1"}); err != nil {
		t.Fatalf("Failed to set payload: %v", err)
	}
	st, _ := tl.Get(root.ID)
	if st.Payload.(*fakeSnapshot).value != "v1" {
		t.Errorf("Expected recaptured payload v1, got %q", st.Payload.(*fakeSnapshot).value)
	}

	if err := tl.SetPayload("missing", &fakeSnapshot{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRoot(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("Initial", nil)

	if err := tl.Delete(root.ID, true); !errors.Is(err, ErrCannotDeleteRoot) {
		t.Errorf("Expected ErrCannotDeleteRoot, got %v", err)
	}
	if _, ok := tl.Get(root.ID); !ok {
		t.Error("Expected root to survive")
	}
}

func TestDeleteNotFound(t *testing.T) {
	tl := NewTimeline()
	tl.CreateRoot("Initial", nil)

	if err := tl.Delete("missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteReparentsChildren(t *testing.T) {
	// Chain root -> A -> B; deleting A must hand B to root.
	tl := NewTimeline()
	root, _ := tl.CreateRoot("R", nil)

	a := &State{ID: "a", Label: "A", ParentID: &root.ID, CreatedAt: time.Now()}
	tl.Insert(a)
	aID := "a"
	b := &State{ID: "b", Label: "B", ParentID: &aID, CreatedAt: time.Now()}
	tl.Insert(b)

	if err := tl.Delete("a", true); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	got, _ := tl.Get("b")
	if got.ParentID == nil || *got.ParentID != root.ID {
		t.Errorf("Expected b reparented to root, got %v", got.ParentID)
	}

	children := tl.ChildrenOf(root.ID)
	if len(children) != 1 || children[0] != "b" {
		t.Errorf("Expected root children [b], got %v", children)
	}
	if _, ok := tl.Get("a"); ok {
		t.Error("Expected a to be removed")
	}
}

func TestDeleteWithoutReparentRefusesOrphans(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("R", nil)

	a := &State{ID: "a", Label: "A", ParentID: &root.ID, CreatedAt: time.Now()}
	tl.Insert(a)
	aID := "a"
	b := &State{ID: "b", Label: "B", ParentID: &aID, CreatedAt: time.Now()}
	tl.Insert(b)

	if err := tl.Delete("a", false); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("Expected ErrInvariantViolation, got %v", err)
	}
	if _, ok := tl.Get("a"); !ok {
		t.Error("Expected a to survive refused delete")
	}
}

func TestDeleteCurrentRefused(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("R", nil)

	a := &State{ID: "a", Label: "A", ParentID: &root.ID, CreatedAt: time.Now()}
	tl.Insert(a)
	tl.SwitchTo("a")

	// The pointer must be moved before the store record goes away.
	if err := tl.Delete("a", true); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("Expected ErrInvariantViolation, got %v", err)
	}
}

func TestSwitchTo(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("R", nil)

	a := &State{ID: "a", Label: "A", ParentID: &root.ID, CreatedAt: time.Now()}
	tl.Insert(a)

	if err := tl.SwitchTo("a"); err != nil {
		t.Fatalf("Failed to switch: %v", err)
	}
	if tl.CurrentID() != "a" {
		t.Errorf("Expected current a, got %s", tl.CurrentID())
	}

	if err := tl.SwitchTo("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if tl.CurrentID() != "a" {
		t.Error("Expected pointer unchanged after failed switch")
	}
}

func TestChildrenOfOrdering(t *testing.T) {
	tl := NewTimeline()
	root, _ := tl.CreateRoot("R", nil)

	base := time.Now()
	tl.Insert(&State{ID: "c2", Label: "C2", ParentID: &root.ID, CreatedAt: base.Add(2 * time.Second)})
	tl.Insert(&State{ID: "c1", Label: "C1", ParentID: &root.ID, CreatedAt: base.Add(1 * time.Second)})
	tl.Insert(&State{ID: "c3", Label: "C3", ParentID: &root.ID, CreatedAt: base.Add(3 * time.Second)})

	children := tl.ChildrenOf(root.ID)
	want := []string{"c1", "c2", "c3"}
	if len(children) != len(want) {
		t.Fatalf("Expected %d children, got %d", len(want), len(children))
	}
	for i := range want {
		if children[i] != want[i] {
			t.Errorf("Expected child %d to be %s, got %s", i, want[i], children[i])
		}
	}
}

func TestRestoreValid(t *testing.T) {
	rootID := "root"
	states := []*State{
		{ID: "root", Label: "R", CreatedAt: time.Now()},
		{ID: "a", Label: "A", ParentID: &rootID, CreatedAt: time.Now()},
	}

	tl, err := Restore(states, "root", "a")
	if err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}
	if tl.CurrentID() != "a" {
		t.Errorf("Expected current a, got %s", tl.CurrentID())
	}
	if tl.Len() != 2 {
		t.Errorf("Expected 2 states, got %d", tl.Len())
	}
}

func TestRestoreFailsClosed(t *testing.T) {
	rootID := "root"
	missing := "missing"

	tests := []struct {
		name    string
		states  []*State
		root    string
		current string
	}{
		{
			name:    "missing root",
			states:  []*State{{ID: "a", Label: "A", ParentID: &rootID}},
			root:    "root",
			current: "a",
		},
		{
			name: "stale current pointer",
			states: []*State{
				{ID: "root", Label: "R"},
			},
			root:    "root",
			current: "gone",
		},
		{
			name: "dangling parent",
			states: []*State{
				{ID: "root", Label: "R"},
				{ID: "a", Label: "A", ParentID: &missing},
			},
			root:    "root",
			current: "root",
		},
		{
			name: "second root",
			states: []*State{
				{ID: "root", Label: "R"},
				{ID: "other", Label: "O"},
			},
			root:    "root",
			current: "root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Restore(tt.states, tt.root, tt.current); !errors.Is(err, ErrInvariantViolation) {
				t.Errorf("Expected ErrInvariantViolation, got %v", err)
			}
		})
	}
}

func TestRestoreParentCycle(t *testing.T) {
	aID, bID := "a", "b"
	states := []*State{
		{ID: "root", Label: "R"},
		{ID: "a", Label: "A", ParentID: &bID},
		{ID: "b", Label: "B", ParentID: &aID},
	}

	if _, err := Restore(states, "root", "root"); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("Expected ErrInvariantViolation for cycle, got %v", err)
	}
}
