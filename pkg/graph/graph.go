// ABOUTME: Editable graph document model (actors, relations, groups)
// ABOUTME: Implements the timeline payload contract with a structural copy

package graph

import (
	"github.com/google/uuid"

	"github.com/relmap/timetree/pkg/timeline"
)

// Actor is one node on the graph canvas.
type Actor struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Kind  string  `json:"kind,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

// Relation is a directed edge between two actors.
type Relation struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// Group is a named collection of actors.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
	Color   string   `json:"color,omitempty"`
}

// Document is one full snapshot of the editable graph content. The version
// tree stores one Document per state and treats it as opaque.
type Document struct {
	Actors    []Actor    `json:"actors"`
	Relations []Relation `json:"relations"`
	Groups    []Group    `json:"groups"`
}

// NewDocument creates an empty graph document.
func NewDocument() *Document {
	return &Document{
		Actors:    []Actor{},
		Relations: []Relation{},
		Groups:    []Group{},
	}
}

// AddActor appends an actor with a fresh id and returns it.
func (d *Document) AddActor(name string, x, y float64) Actor {
	a := Actor{ID: uuid.NewString(), Name: name, X: x, Y: y}
	d.Actors = append(d.Actors, a)
	return a
}

// AddRelation appends a relation between two actors and returns it.
func (d *Document) AddRelation(from, to, label string) Relation {
	r := Relation{ID: uuid.NewString(), From: from, To: to, Label: label}
	d.Relations = append(d.Relations, r)
	return r
}

// AddGroup appends a group over the given actor ids and returns it.
func (d *Document) AddGroup(name string, members ...string) Group {
	g := Group{ID: uuid.NewString(), Name: name, Members: members}
	d.Groups = append(d.Groups, g)
	return g
}

// DeepCopy returns a structurally independent copy of the document.
// Mutating the copy never affects the original.
func (d *Document) DeepCopy() *Document {
	cp := &Document{
		Actors:    append([]Actor(nil), d.Actors...),
		Relations: append([]Relation(nil), d.Relations...),
		Groups:    make([]Group, 0, len(d.Groups)),
	}
	for _, g := range d.Groups {
		g.Members = append([]string(nil), g.Members...)
		cp.Groups = append(cp.Groups, g)
	}
	return cp
}

// Clone satisfies timeline.Snapshot.
func (d *Document) Clone() timeline.Snapshot {
	return d.DeepCopy()
}
