// Package chaingraph draws how a final image is walked back to the original through the
// inverse of each transformation step.
package chaingraph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"imgrev-go/pkg/transform"
)

const header = `digraph G {
    graph [fontname = "monospace" rankdir=LR];
    node [fontname = "courier new" shape=box style=rounded];
    edge [fontname = "courier new"];
    bgcolor=transparent;
`

// DOT renders seq as a left-to-right pipeline from "final" to "original".
func DOT(seq transform.Sequence) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("    \"final\" [shape=note color=\"#FFB0B0\" label=\"final\\nimage\"];\n")
	b.WriteString("    \"original\" [shape=note color=\"#B0FFB0\" label=\"original\\nimage\"];\n")

	prev := "final"
	for i := len(seq) - 1; i >= 0; i-- {
		id := fmt.Sprintf("step%d", i)
		inv := seq[i].Inverse()
		color := "grey"
		if seq[i].NeedsKey() {
			color = "orange"
		}
		fmt.Fprintf(&b, "    %q [color=%s label=\"undo step %d: %s\\napply %s\"];\n", id, color, i+1, seq[i], inv)
		fmt.Fprintf(&b, "    %q -> %q;\n", prev, id)
		prev = id
	}
	fmt.Fprintf(&b, "    %q -> \"original\";\n", prev)
	if seq.NeedsKey() {
		b.WriteString("    \"key\" [shape=cylinder color=orange label=\"key\\nimage\"];\n")
		for i, t := range seq {
			if t.NeedsKey() {
				fmt.Fprintf(&b, "    \"key\" -> \"step%d\" [style=dashed color=orange arrowhead=none];\n", i)
			}
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Render lays out the DOT graph of seq in format (graphviz.SVG, graphviz.PNG, ...).
func Render(ctx context.Context, seq transform.Sequence, format graphviz.Format) ([]byte, error) {
	graph, err := graphviz.ParseBytes([]byte(DOT(seq)))
	if err != nil {
		return nil, fmt.Errorf("chaingraph: parse: %w", err)
	}
	defer graph.Close()
	g, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("chaingraph: %w", err)
	}
	defer g.Close()
	var buf bytes.Buffer
	if err := g.Render(ctx, graph, format, &buf); err != nil {
		return nil, fmt.Errorf("chaingraph: render: %w", err)
	}
	return buf.Bytes(), nil
}

// SVG is Render with graphviz.SVG.
func SVG(ctx context.Context, seq transform.Sequence) ([]byte, error) {
	return Render(ctx, seq, graphviz.SVG)
}
