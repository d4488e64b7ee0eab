// Package stack binds instruction operands without executing anything.
//
// A Stack is an append-only log of the tokens of one function. Nothing is
// ever popped: when an instruction needs n operands it references the n most
// recently produced entries, and those entries stay in the log so that other
// instructions may reference them too. The result is a DAG of shared token
// pointers rather than a consumed stack.
package stack

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/destack/pkg/token"
)

var log = commonlog.GetLogger("destack.stack")

// Stack is the append-only log of one function.
type Stack struct {
	entries []*token.Token
	data    []int // indexes into entries of value-producing tokens
}

// New returns an empty stack with room for n entries.
func New(n int) *Stack {
	return &Stack{
		entries: make([]*token.Token, 0, n),
		data:    make([]int, 0, n),
	}
}

// Push appends t to the log.
func (s *Stack) Push(t *token.Token) {
	if t.IsData() {
		s.data = append(s.data, len(s.entries))
	}
	s.entries = append(s.entries, t)
}

// Len returns the number of entries, labels included.
func (s *Stack) Len() int {
	return len(s.entries)
}

// Available returns the number of entries an instruction may consume.
func (s *Stack) Available() int {
	return len(s.data)
}

// At returns the i-th entry in program order.
func (s *Stack) At(i int) *token.Token {
	return s.entries[i]
}

// Tokens returns the log in program order. The slice must not be modified.
func (s *Stack) Tokens() []*token.Token {
	return s.entries
}

// Top returns the n most recently produced values, most recent first.
// It returns nil if fewer than n are available.
func (s *Stack) Top(n int) []*token.Token {
	if n > len(s.data) {
		return nil
	}
	out := make([]*token.Token, n)
	for i := 0; i < n; i++ {
		out[i] = s.entries[s.data[len(s.data)-1-i]]
	}
	return out
}

// Bind walks body in order, binding every opcode call to the values
// produced before it, and returns the resulting log. fn names the function
// in errors.
//
// Operand 0 is the most recently produced value, operand 1 the one before
// it, and so on. An instruction that needs more values than have been
// produced so far is a *StructuralError.
func Bind(fn string, body []*token.Token) (*Stack, error) {
	s := New(len(body))
	for pos, t := range body {
		if t.IsOpcode() {
			need := t.Spec.Pops
			if need > s.Available() {
				return s, &StructuralError{
					Function:  fn,
					Position:  pos,
					Index:     t.Index,
					Mnemonic:  t.Text,
					Pops:      need,
					Available: s.Available(),
				}
			}
			t.Operands = s.Top(need)
		}
		s.Push(t)
	}
	log.Debugf("bound %s: %d entries, %d labels", displayName(fn), s.Len(), s.Len()-s.Available())
	return s, nil
}
