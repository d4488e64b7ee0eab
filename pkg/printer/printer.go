// Package printer writes decompiled functions as text.
//
// Each function is a heading line with its identifier followed by one line
// per root expression. Jump labels are not roots and are never rendered as
// expressions, but each label also gets a line of its own, holding the label
// text, at its position among the roots. Code before the first function
// marker has no heading. Functions are separated by a blank
// line and always appear in input order.
package printer

import (
	"bufio"
	"io"
	"strings"

	"github.com/chazu/destack/pkg/function"
)

// Config controls rendering.
type Config struct {
	Order           function.Order
	ShowStackOutput bool
}

// Write prints fns to w.
func Write(w io.Writer, fns []*function.Function, cfg Config) error {
	bw := bufio.NewWriter(w)
	for i, fn := range fns {
		if i > 0 {
			bw.WriteString("\n")
		}
		writeFunction(bw, fn, cfg)
	}
	return bw.Flush()
}

// String returns what Write would print.
func String(fns []*function.Function, cfg Config) string {
	var sb strings.Builder
	_ = Write(&sb, fns, cfg)
	return sb.String()
}

// Lines returns the rendered lines of one function, without its heading.
func Lines(fn *function.Function, cfg Config) []string {
	lines := fn.Lines(cfg.Order)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Render(cfg.ShowStackOutput)
	}
	return out
}

func writeFunction(bw *bufio.Writer, fn *function.Function, cfg Config) {
	if !fn.IsTopLevel() {
		bw.WriteString(fn.Name())
		bw.WriteString("\n")
	}
	for _, line := range Lines(fn, cfg) {
		bw.WriteString(line)
		bw.WriteString("\n")
	}
}
