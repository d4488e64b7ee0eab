package stack

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/destack/pkg/opcode"
	"github.com/chazu/destack/pkg/token"
)

var testRegistry = opcode.New(
	opcode.Spec{Mnemonic: "ADD", Pops: 2, Sign: "+"},
	opcode.Spec{Mnemonic: "SUB", Pops: 2, Sign: "-"},
	opcode.Spec{Mnemonic: "MUL", Pops: 2, Sign: "*"},
	opcode.Spec{Mnemonic: "STORE", Pops: 1, Output: "STORE"},
	opcode.Spec{Mnemonic: "JUMP", Pops: 1, Output: "JUMP"},
)

func tokens(src string) []*token.Token {
	return token.ClassifyAll(strings.Fields(src), testRegistry)
}

func TestBindOperandOrder(t *testing.T) {
	body := tokens("0x1 0x2 ADD")
	s, err := Bind("", body)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	add := body[2]
	if len(add.Operands) != 2 {
		t.Fatalf("ADD has %d operands, want 2", len(add.Operands))
	}
	if add.Operands[0] != body[1] || add.Operands[1] != body[0] {
		t.Errorf("ADD operands = %v, want [0x2 0x1]", add.Operands)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestBindNeverPops(t *testing.T) {
	// SUB sees ADD and 0x2 because nothing was removed by ADD
	body := tokens("0x1 0x2 ADD SUB")
	if _, err := Bind("", body); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	sub := body[3]
	if sub.Operands[0] != body[2] || sub.Operands[1] != body[1] {
		t.Errorf("SUB operands = %v, want [ADD 0x2]", sub.Operands)
	}
	if got := sub.Render(false); got != "0x2 + 0x1 - 0x2" {
		t.Errorf("Render = %q", got)
	}
}

func TestBindOperandCountMatchesPops(t *testing.T) {
	body := tokens("0x1 <x [y] ADD MUL STORE FOO loop: 0x2 SUB")
	if _, err := Bind("_f", body); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	for _, tok := range body {
		if tok.IsOpcode() && len(tok.Operands) != tok.Spec.Pops {
			t.Errorf("%s has %d operands, want %d", tok.Text, len(tok.Operands), tok.Spec.Pops)
		}
		if !tok.IsOpcode() && len(tok.Operands) != 0 {
			t.Errorf("%s is not an opcode but has operands", tok.Text)
		}
	}
}

func TestBindOperandsPointBackwards(t *testing.T) {
	body := tokens("0x1 0x2 ADD 0x3 MUL <x STORE 0x4 ADD")
	if _, err := Bind("", body); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	pos := make(map[*token.Token]int)
	for i, tok := range body {
		pos[tok] = i
	}
	for i, tok := range body {
		for _, op := range tok.Operands {
			if pos[op] >= i {
				t.Errorf("%s at %d references %s at %d", tok.Text, i, op.Text, pos[op])
			}
		}
	}
}

func TestBindUnderflow(t *testing.T) {
	_, err := Bind("_main", tokens("ADD"))
	if err == nil {
		t.Fatal("Bind(ADD) succeeded, want StructuralError")
	}

	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a *StructuralError", err)
	}
	if se.Function != "_main" || se.Position != 0 || se.Pops != 2 || se.Available != 0 {
		t.Errorf("StructuralError = %+v", se)
	}
	if !errors.Is(err, ErrUnderflow) {
		t.Error("errors.Is(err, ErrUnderflow) = false")
	}
	if !strings.Contains(err.Error(), "_main") {
		t.Errorf("error %q does not name the function", err)
	}
}

func TestBindUnderflowPartial(t *testing.T) {
	_, err := Bind("", tokens("0x1 ADD"))
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StructuralError", err)
	}
	if se.Position != 1 || se.Available != 1 {
		t.Errorf("StructuralError = %+v", se)
	}
	if !strings.Contains(se.Error(), "<top-level>") {
		t.Errorf("error %q should name the top-level function", se)
	}
}

func TestBindUnknownMnemonicConsumesNothing(t *testing.T) {
	body := tokens("0x1 0x2 FOO")
	if _, err := Bind("", body); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if len(body[2].Operands) != 0 {
		t.Errorf("FOO has %d operands, want 0", len(body[2].Operands))
	}
}

func TestTop(t *testing.T) {
	s := New(0)
	for _, tok := range tokens("0x1 a: 0x2") {
		s.Push(tok)
	}
	top := s.Top(2)
	if len(top) != 2 || top[0].Text != "0x2" || top[1].Text != "0x1" {
		t.Errorf("Top(2) = %v", top)
	}
	if s.Top(3) != nil {
		t.Error("Top(3) should be nil with two values")
	}
}
