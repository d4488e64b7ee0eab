package stack

import (
	"errors"
	"fmt"
)

// ErrUnderflow matches every *StructuralError with errors.Is.
var ErrUnderflow = errors.New("arity underflow")

// StructuralError reports an instruction that needs more produced values
// than its function has at that point.
type StructuralError struct {
	Function  string // function identifier, empty for top-level code
	Position  int    // position of the instruction inside the function body
	Index     int    // position of the instruction in the whole input
	Mnemonic  string
	Pops      int
	Available int
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s at position %d (word %d) needs %d value(s), %d available: %v",
		displayName(e.Function), e.Mnemonic, e.Position, e.Index, e.Pops, e.Available, ErrUnderflow)
}

// Is reports whether target is ErrUnderflow.
func (e *StructuralError) Is(target error) bool {
	return target == ErrUnderflow
}

func displayName(fn string) string {
	if fn == "" {
		return "<top-level>"
	}
	return fn
}
