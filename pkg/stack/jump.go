package stack

import (
	"strings"

	"github.com/chazu/destack/pkg/token"
)

// Label is a jump label kept in the log.
type Label struct {
	Name     string // label text without the trailing colon
	Position int    // position in the log
	Token    *token.Token
}

// Labels returns the jump labels of the log in program order. Labels take
// part in positions only; they are never operands and never satisfy an
// instruction's arity.
func (s *Stack) Labels() []Label {
	var labels []Label
	for i, t := range s.entries {
		if t.Category != token.JumpLabel {
			continue
		}
		labels = append(labels, Label{
			Name:     strings.TrimSuffix(t.Text, token.JumpLabelSuffix),
			Position: i,
			Token:    t,
		})
	}
	return labels
}

// IsLabel reports whether the i-th entry is a jump label.
func (s *Stack) IsLabel(i int) bool {
	return s.entries[i].Category == token.JumpLabel
}
