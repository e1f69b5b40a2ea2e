// ABOUTME: SVG rendering of a computed timeline layout
// ABOUTME: Circles per state, lines per edge, current state highlighted

package render

import (
	"fmt"
	"strings"

	"github.com/relmap/timetree/pkg/layout"
)

const (
	margin     = 40.0
	nodeRadius = 14.0
	labelDy    = 30.0

	nodeFill       = "#ffffff"
	nodeStroke     = "#4a5568"
	currentFill    = "#3182ce"
	edgeStroke     = "#a0aec0"
	emphasisStroke = "#3182ce"
	fontFamily     = "Helvetica, Arial, sans-serif"
)

// SVG renders layout nodes and edges as a standalone SVG document. Output
// is deterministic for identical layouts.
func SVG(nodes []layout.Node, edges []layout.Edge) []byte {
	var width, height float64
	for _, n := range nodes {
		if n.X > width {
			width = n.X
		}
		if n.Y > height {
			height = n.Y
		}
	}
	width += 2 * margin
	height += 2*margin + labelDy

	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`+"\n",
		width, height, width, height)

	// Edges first so nodes draw on top.
	pos := make(map[string]layout.Node, len(nodes))
	for _, n := range nodes {
		pos[n.ID] = n
	}
	for _, e := range edges {
		from, to := pos[e.From], pos[e.To]
		stroke := edgeStroke
		strokeWidth := 2.0
		if e.Emphasized {
			stroke = emphasisStroke
			strokeWidth = 3.5
		}
		fmt.Fprintf(&b,
			`  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f"/>`+"\n",
			from.X+margin, from.Y+margin, to.X+margin, to.Y+margin, stroke, strokeWidth)
	}

	for _, n := range nodes {
		fill := nodeFill
		if n.Current {
			fill = currentFill
		}
		fmt.Fprintf(&b,
			`  <circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" stroke="%s" stroke-width="2"/>`+"\n",
			n.X+margin, n.Y+margin, nodeRadius, fill, nodeStroke)
		fmt.Fprintf(&b,
			`  <text x="%.1f" y="%.1f" font-family="%s" font-size="12" text-anchor="middle">%s</text>`+"\n",
			n.X+margin, n.Y+margin+labelDy, fontFamily, escape(n.Label))
	}

	b.WriteString("</svg>\n")
	return []byte(b.String())
}

func escape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
