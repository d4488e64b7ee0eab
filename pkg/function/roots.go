package function

import (
	"fmt"
	"strings"

	"github.com/chazu/destack/pkg/token"
)

// Order is the order in which a function's lines are emitted.
type Order uint8

const (
	Left  Order = iota // program order
	Right              // reverse program order
)

func (o Order) String() string {
	switch o {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// ParseOrder parses "left" or "right". The empty string is Left.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return Left, fmt.Errorf("unknown stack order %q (want left or right)", s)
	}
}

// Line is one emitted entry of a function: either a root expression or a
// jump label kept in position.
type Line struct {
	Token *token.Token
	Label bool
}

// Render returns the text of the line.
func (l Line) Render(showStackOutput bool) string {
	if l.Label {
		return l.Token.Text
	}
	return l.Token.Render(showStackOutput)
}

// consumed marks every token used directly as an operand in the body.
func (f *Function) consumed() map[*token.Token]bool {
	used := make(map[*token.Token]bool)
	for _, t := range f.Body {
		for _, op := range t.Operands {
			used[op] = true
		}
	}
	return used
}

// Roots returns the tokens no other token of the function consumes, in
// program order. Jump labels are never roots.
func (f *Function) Roots() []*token.Token {
	used := f.consumed()
	var roots []*token.Token
	for _, t := range f.Body {
		if t.Category == token.JumpLabel || used[t] {
			continue
		}
		roots = append(roots, t)
	}
	return roots
}

// Lines returns the roots together with the jump labels, in program order
// for Left and reversed for Right.
func (f *Function) Lines(order Order) []Line {
	used := f.consumed()
	var lines []Line
	for _, t := range f.Body {
		switch {
		case t.Category == token.JumpLabel:
			lines = append(lines, Line{Token: t, Label: true})
		case !used[t]:
			lines = append(lines, Line{Token: t})
		}
	}

	if order == Right {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}
	return lines
}
