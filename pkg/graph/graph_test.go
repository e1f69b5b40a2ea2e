// ABOUTME: Tests for the graph document payload
// ABOUTME: Verifies structural copies are fully independent

package graph

import (
	"testing"
)

func sampleDocument() *Document {
	d := NewDocument()
	alice := d.AddActor("Alice", 10, 20)
	bob := d.AddActor("Bob", 120, 40)
	d.AddRelation(alice.ID, bob.ID, "knows")
	d.AddGroup("protagonists", alice.ID, bob.ID)
	return d
}

func TestDeepCopyIndependence(t *testing.T) {
	orig := sampleDocument()
	cp := orig.DeepCopy()

	cp.Actors[0].Name = "Mallory"
	cp.Relations[0].Label = "attacks"
	cp.Groups[0].Members[0] = "someone-else"
	cp.AddActor("Extra", 0, 0)

	if orig.Actors[0].Name != "Alice" {
		t.Errorf("Expected original actor untouched, got %q", orig.Actors[0].Name)
	}
	if orig.Relations[0].Label != "knows" {
		t.Errorf("Expected original relation untouched, got %q", orig.Relations[0].Label)
	}
	if orig.Groups[0].Members[0] == "someone-else" {
		t.Error("Expected original group members untouched")
	}
	if len(orig.Actors) != 2 {
		t.Errorf("Expected original actor count unchanged, got %d", len(orig.Actors))
	}
}

func TestCloneReturnsDocument(t *testing.T) {
	orig := sampleDocument()

	snap := orig.Clone()
	cp, ok := snap.(*Document)
	if !ok {
		t.Fatalf("Expected *Document from Clone, got %T", snap)
	}
	if len(cp.Actors) != len(orig.Actors) {
		t.Errorf("Expected %d actors in copy, got %d", len(orig.Actors), len(cp.Actors))
	}
}

func TestAddHelpers(t *testing.T) {
	d := NewDocument()

	a := d.AddActor("Solo", 1, 2)
	if a.ID == "" {
		t.Error("Expected actor to get an id")
	}

	r := d.AddRelation(a.ID, a.ID, "self")
	if r.From != a.ID || r.To != a.ID {
		t.Error("Expected relation endpoints preserved")
	}

	g := d.AddGroup("loners", a.ID)
	if len(g.Members) != 1 || g.Members[0] != a.ID {
		t.Errorf("Expected group members [%s], got %v", a.ID, g.Members)
	}
}
