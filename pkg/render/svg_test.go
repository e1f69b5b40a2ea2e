// ABOUTME: Tests for the SVG timeline renderer
// ABOUTME: Structure, highlighting and deterministic output

package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/relmap/timetree/pkg/layout"
)

func sampleLayout() ([]layout.Node, []layout.Edge) {
	nodes := []layout.Node{
		{ID: "root", Label: "Initial", Level: 0, Lane: 0, X: 0, Y: 0},
		{ID: "a", Label: "Branch <1>", Level: 1, Lane: 0, X: 140, Y: 0, Current: true},
	}
	edges := []layout.Edge{
		{From: "root", To: "a", Emphasized: true},
	}
	return nodes, edges
}

func TestSVGStructure(t *testing.T) {
	nodes, edges := sampleLayout()
	out := string(SVG(nodes, edges))

	if !strings.HasPrefix(out, "<svg") {
		t.Error("Expected output to start with an svg element")
	}
	if strings.Count(out, "<circle") != 2 {
		t.Errorf("Expected one circle per node, got %d", strings.Count(out, "<circle"))
	}
	if strings.Count(out, "<line") != 1 {
		t.Errorf("Expected one line per edge, got %d", strings.Count(out, "<line"))
	}
	if !strings.Contains(out, `stroke-width="3.5"`) {
		t.Error("Expected emphasized edge to render thicker")
	}
	if !strings.Contains(out, currentFill) {
		t.Error("Expected current node to use the highlight fill")
	}
}

func TestSVGEscapesLabels(t *testing.T) {
	nodes, edges := sampleLayout()
	out := string(SVG(nodes, edges))

	if strings.Contains(out, "Branch <1>") {
		t.Error("Expected label markup escaped")
	}
	if !strings.Contains(out, "Branch &lt;1&gt;") {
		t.Error("Expected escaped label text present")
	}
}

func TestSVGDeterministic(t *testing.T) {
	nodes, edges := sampleLayout()

	first := SVG(nodes, edges)
	second := SVG(nodes, edges)
	if !bytes.Equal(first, second) {
		t.Error("Expected identical output for identical layouts")
	}
}

func TestSVGEmptyLayout(t *testing.T) {
	out := string(SVG(nil, nil))
	if !strings.HasPrefix(out, "<svg") || !strings.Contains(out, "</svg>") {
		t.Error("Expected a well-formed empty document")
	}
}
