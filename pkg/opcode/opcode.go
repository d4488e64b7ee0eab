// Package opcode holds the opcode metadata registry: for every mnemonic of
// the bytecode dialect, how many produced values it consumes and how it
// should be rendered.
//
// A Registry is immutable once built. Lookups never fail: mnemonics that are
// not in the table resolve to Unknown, so partially understood bytecode still
// renders.
package opcode

import (
	"sort"
	"strings"
)

// Spec describes a single opcode.
type Spec struct {
	Mnemonic string `toml:"mnemonic" yaml:"mnemonic" json:"mnemonic"`

	// Name is the call name used for call-style rendering. It defaults to
	// the mnemonic.
	Name string `toml:"name" yaml:"name" json:"name,omitempty"`

	// Pops is the number of produced values consumed as operands.
	Pops int `toml:"pops" yaml:"pops" json:"pops"`

	// Sign is the infix symbol; empty means call-style rendering.
	Sign string `toml:"sign" yaml:"sign" json:"sign,omitempty"`

	// Output replaces the rendered expression in stack-output mode.
	Output string `toml:"output" yaml:"output" json:"output,omitempty"`
}

// Unknown is the sentinel returned for mnemonics missing from the table.
var Unknown = Spec{}

// IsUnknown reports whether s is the sentinel spec.
func (s Spec) IsUnknown() bool {
	return s == Unknown
}

// IsInfix reports whether the opcode renders with an infix symbol.
func (s Spec) IsInfix() bool {
	return s.Sign != ""
}

// HasOutput reports whether the opcode has an alternate literal.
func (s Spec) HasOutput() bool {
	return s.Output != ""
}

// Registry maps mnemonics to their Spec.
type Registry struct {
	specs map[string]Spec
}

// New builds a registry from specs. Mnemonics are stored upper case and a
// missing Name defaults to the mnemonic. Later duplicates replace earlier
// ones; use Parse for validated tables.
func New(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		s.Mnemonic = strings.ToUpper(strings.TrimSpace(s.Mnemonic))
		if s.Name == "" {
			s.Name = s.Mnemonic
		}
		r.specs[s.Mnemonic] = s
	}
	return r
}

// Lookup returns the spec for mnemonic, or Unknown if there is none.
// Matching is case-insensitive.
func (r *Registry) Lookup(mnemonic string) Spec {
	if r == nil {
		return Unknown
	}
	if s, ok := r.specs[strings.ToUpper(mnemonic)]; ok {
		return s
	}
	return Unknown
}

// Has reports whether mnemonic is in the table.
func (r *Registry) Has(mnemonic string) bool {
	if r == nil {
		return false
	}
	_, ok := r.specs[strings.ToUpper(mnemonic)]
	return ok
}

// All returns every spec sorted by mnemonic.
func (r *Registry) All() []Spec {
	if r == nil {
		return nil
	}
	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mnemonic < out[j].Mnemonic })
	return out
}

// Count returns the number of opcodes in the table.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	return len(r.specs)
}
