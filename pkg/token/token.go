// Package token classifies disassembly words and renders bound tokens as
// expressions.
package token

import (
	"fmt"
	"strings"

	"github.com/chazu/destack/pkg/opcode"
)

// Word prefixes and suffixes recognised by Classify.
const (
	ConstantPrefix  = "0x"
	ReferencePrefix = "["
	VariablePrefix  = "<"
	FunctionPrefix  = "_"
	JumpLabelSuffix = ":"
)

// Category is the lexical class of a token.
type Category uint8

const (
	Unknown Category = iota
	Constant
	Reference
	Variable
	FunctionMarker
	Return
	JumpLabel
	OpcodeCall
)

var categoryNames = [...]string{
	Unknown:        "Unknown",
	Constant:       "Constant",
	Reference:      "Reference",
	Variable:       "Variable",
	FunctionMarker: "FunctionMarker",
	Return:         "Return",
	JumpLabel:      "JumpLabel",
	OpcodeCall:     "OpcodeCall",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// Token is one classified word. Operands are only set on OpcodeCall tokens,
// by the binder, and point at earlier tokens of the same function.
type Token struct {
	Text     string
	Category Category
	Index    int         // position of the word in the whole input
	Spec     opcode.Spec // OpcodeCall only
	Operands []*Token
}

// Classify turns a word into a token. It never fails: anything that is not
// a constant, reference, variable, function marker or label is an opcode
// call, and mnemonics missing from reg get opcode.Unknown.
func Classify(word string, index int, reg *opcode.Registry) *Token {
	word = strings.TrimSpace(word)
	t := &Token{Text: word, Index: index}

	switch {
	case strings.HasPrefix(word, ConstantPrefix):
		t.Category = Constant
	case strings.HasPrefix(word, ReferencePrefix):
		t.Category = Reference
	case strings.HasPrefix(word, VariablePrefix):
		t.Category = Variable
	case strings.HasPrefix(word, FunctionPrefix):
		t.Category = FunctionMarker
	case strings.HasSuffix(word, JumpLabelSuffix):
		t.Category = JumpLabel
	default:
		t.Category = OpcodeCall
		t.Spec = reg.Lookup(word)
		if t.Spec.IsUnknown() {
			log.Debugf("unknown mnemonic %q at word %d", word, index)
		}
	}

	return t
}

// ClassifyAll classifies words in order, numbering them from zero.
func ClassifyAll(words []string, reg *opcode.Registry) []*Token {
	tokens := make([]*Token, len(words))
	for i, w := range words {
		tokens[i] = Classify(w, i, reg)
	}
	return tokens
}

// IsOpcode reports whether t is an opcode call.
func (t *Token) IsOpcode() bool {
	return t.Category == OpcodeCall
}

// IsData reports whether t produces a value that later instructions may
// consume. Labels and function markers are structural, not data.
func (t *Token) IsData() bool {
	return t.Category != JumpLabel && t.Category != FunctionMarker
}

// Pops returns the number of operands t consumes.
func (t *Token) Pops() int {
	if !t.IsOpcode() {
		return 0
	}
	return t.Spec.Pops
}

// String is for debugging; use Render for output.
func (t *Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Category, t.Text)
}
