// ABOUTME: Sentinel errors for version tree operations
// ABOUTME: Recoverable caller errors plus the broken-tree failure

package timeline

import "errors"

var (
	// ErrNotFound indicates an id that references no state in the tree
	ErrNotFound = errors.New("timeline: state not found")

	// ErrDuplicateID indicates an insert with an id already present
	ErrDuplicateID = errors.New("timeline: duplicate state id")

	// ErrDanglingParent indicates a parent reference to a missing state
	ErrDanglingParent = errors.New("timeline: parent state not found")

	// ErrInvalidLabel indicates a label that is empty after trimming
	ErrInvalidLabel = errors.New("timeline: label is empty")

	// ErrCannotDeleteRoot indicates an attempt to delete the root state
	ErrCannotDeleteRoot = errors.New("timeline: cannot delete root state")

	// ErrAlreadyInitialized indicates a second root for the same tree
	ErrAlreadyInitialized = errors.New("timeline: root already exists")

	// ErrInvariantViolation indicates a broken tree. It is never expected
	// in normal operation and must be surfaced, not repaired over.
	ErrInvariantViolation = errors.New("timeline: tree invariant violated")
)
