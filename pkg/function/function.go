// Package function splits a classified token stream into functions and
// selects the tokens of each function that are printed as expressions.
package function

import (
	"github.com/chazu/destack/pkg/stack"
	"github.com/chazu/destack/pkg/token"
)

// Function is one unit of bytecode. Binding and root selection never look
// across function boundaries.
type Function struct {
	ID    *token.Token // nil for code before the first function marker
	Body  []*token.Token
	Stack *stack.Stack // set by Bind
}

// Name returns the identifier text, or "" for the implicit top-level
// function.
func (f *Function) Name() string {
	if f.ID == nil {
		return ""
	}
	return f.ID.Text
}

// IsTopLevel reports whether f holds the code before the first marker.
func (f *Function) IsTopLevel() bool {
	return f.ID == nil
}

// Bind resolves the operands of the function body.
func (f *Function) Bind() error {
	s, err := stack.Bind(f.Name(), f.Body)
	f.Stack = s
	return err
}

// Segment splits tokens into functions. Every function marker starts a new
// function and becomes its identifier; the function runs until the next
// marker or the end of the stream. Return instructions do not end a
// function. Tokens before the first marker form a top-level function, which
// is left out when there are none.
func Segment(tokens []*token.Token) []*Function {
	var fns []*Function
	cur := &Function{}

	for _, t := range tokens {
		if t.Category == token.FunctionMarker {
			if cur.ID != nil || len(cur.Body) > 0 {
				fns = append(fns, cur)
			}
			cur = &Function{ID: t}
			continue
		}
		cur.Body = append(cur.Body, t)
	}

	if cur.ID != nil || len(cur.Body) > 0 {
		fns = append(fns, cur)
	}
	return fns
}
