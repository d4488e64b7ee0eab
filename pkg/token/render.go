package token

import (
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("destack.token")

// Render returns the expression text for t.
//
// Infix operands are joined with " <sign> " and never parenthesised, so
// "0x3 * 0x2 + 0x1" reads as nested substitution, not precedence. The sign
// only appears between operands: one operand renders alone and none renders
// as the empty string. With
// showStackOutput set, an opcode's alternate literal replaces the whole
// expression and its operands are not rendered.
func (t *Token) Render(showStackOutput bool) string {
	var sb strings.Builder
	t.render(&sb, showStackOutput)
	return sb.String()
}

func (t *Token) render(sb *strings.Builder, showStackOutput bool) {
	if !t.IsOpcode() {
		sb.WriteString(t.Text)
		return
	}

	spec := t.Spec
	if showStackOutput && spec.HasOutput() {
		sb.WriteString(spec.Output)
		return
	}

	if spec.IsInfix() {
		for i, op := range t.Operands {
			if i > 0 {
				sb.WriteString(" ")
				sb.WriteString(spec.Sign)
				sb.WriteString(" ")
			}
			op.render(sb, showStackOutput)
		}
		return
	}

	name := spec.Name
	if name == "" {
		name = t.Text
	}
	sb.WriteString(strings.ToLower(name))
	sb.WriteString("(")
	for i, op := range t.Operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		op.render(sb, showStackOutput)
	}
	sb.WriteString(")")
}
