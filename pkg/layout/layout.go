// ABOUTME: Deterministic tree layout for the timeline diagram
// ABOUTME: BFS levels, DFS lane numbering and parent-child edges

package layout

import (
	"fmt"
	"sort"

	"github.com/relmap/timetree/pkg/timeline"
)

// Spacing between grid positions when mapping level/lane to coordinates.
const (
	HorizontalSpacing = 140.0
	VerticalSpacing   = 80.0
)

// Node is one positioned state in the diagram.
type Node struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Level   int     `json:"level"`
	Lane    int     `json:"lane"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Current bool    `json:"current"`
}

// Edge is one parent -> child connection. Emphasized marks the edges
// touching the current state; it is cosmetic metadata for rendering.
type Edge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Emphasized bool   `json:"emphasized"`
}

// Compute maps a state set plus root and current pointers to a 2D layout.
// It is a pure function: identical inputs always produce identical output.
//
// Levels are BFS depth from the root. Lanes come from a depth-first walk:
// the first child of each state inherits its parent's lane, keeping linear
// chains flat, and every later sibling takes a fresh lane. Sibling order
// is creation time, then id, so the walk is deterministic.
func Compute(states map[string]*timeline.State, rootID, currentID string) ([]Node, []Edge, error) {
	if len(states) == 0 {
		return []Node{}, []Edge{}, nil
	}
	if _, ok := states[rootID]; !ok {
		return nil, nil, fmt.Errorf("%w: layout root %s missing", timeline.ErrInvariantViolation, rootID)
	}

	children := childMap(states)

	// Level assignment via breadth-first traversal from the root.
	levels := map[string]int{rootID: 0}
	order := []string{rootID}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			levels[child] = levels[id] + 1
			order = append(order, child)
			queue = append(queue, child)
		}
	}

	// A state the traversal never reached means a broken tree; surface it
	// rather than silently dropping the state from the diagram.
	if len(levels) != len(states) {
		for id := range states {
			if _, ok := levels[id]; !ok {
				return nil, nil, fmt.Errorf("%w: state %s unreachable from root", timeline.ErrInvariantViolation, id)
			}
		}
	}

	// Lane assignment via depth-first branch numbering.
	lanes := make(map[string]int, len(states))
	nextLane := 1
	var walk func(id string, lane int)
	walk = func(id string, lane int) {
		lanes[id] = lane
		for i, child := range children[id] {
			if i == 0 {
				walk(child, lane)
				continue
			}
			branch := nextLane
			nextLane++
			walk(child, branch)
		}
	}
	walk(rootID, 0)

	nodes := make([]Node, 0, len(order))
	edges := make([]Edge, 0, len(order)-1)
	for _, id := range order {
		st := states[id]
		nodes = append(nodes, Node{
			ID:      id,
			Label:   st.Label,
			Level:   levels[id],
			Lane:    lanes[id],
			X:       float64(levels[id]) * HorizontalSpacing,
			Y:       float64(lanes[id]) * VerticalSpacing,
			Current: id == currentID,
		})
		if st.ParentID != nil {
			edges = append(edges, Edge{
				From:       *st.ParentID,
				To:         id,
				Emphasized: id == currentID || *st.ParentID == currentID,
			})
		}
	}

	return nodes, edges, nil
}

func childMap(states map[string]*timeline.State) map[string][]string {
	children := make(map[string][]string)
	for _, st := range states {
		if st.ParentID != nil {
			children[*st.ParentID] = append(children[*st.ParentID], st.ID)
		}
	}
	for parent, kids := range children {
		sort.Slice(kids, func(i, j int) bool {
			a, b := states[kids[i]], states[kids[j]]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		children[parent] = kids
	}
	return children
}
