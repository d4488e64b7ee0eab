// Package export encodes the bound token forest as CBOR so other tools can
// consume the operand graph without re-running the binder.
//
// Tokens become nodes in a per-function arena and operands become indexes
// into it, so shared operands stay shared after decoding.
package export

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/destack/pkg/function"
	"github.com/chazu/destack/pkg/printer"
	"github.com/chazu/destack/pkg/token"
)

// Version is the document format version.
const Version = 1

// Document is one decompiled input.
type Document struct {
	Version   uint8      `cbor:"1,keyasint"`
	Functions []Function `cbor:"2,keyasint"`
}

// Function is one function's arena. Roots and Labels index Nodes and follow
// the configured print order.
type Function struct {
	Name   string `cbor:"1,keyasint,omitempty"` // empty for top-level code
	Nodes  []Node `cbor:"2,keyasint"`
	Roots  []int  `cbor:"3,keyasint"`
	Labels []int  `cbor:"4,keyasint,omitempty"`
}

// Node is one token.
type Node struct {
	Text     string         `cbor:"1,keyasint"`
	Category token.Category `cbor:"2,keyasint"`
	Word     int            `cbor:"3,keyasint"`           // index of the word in the input
	Operands []int          `cbor:"4,keyasint,omitempty"` // indexes into Nodes, operand 0 first
	Expr     string         `cbor:"5,keyasint,omitempty"` // rendered expression, roots only
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Build converts bound functions into a Document.
func Build(fns []*function.Function, cfg printer.Config) *Document {
	doc := &Document{Version: Version, Functions: make([]Function, 0, len(fns))}
	for _, fn := range fns {
		doc.Functions = append(doc.Functions, buildFunction(fn, cfg))
	}
	return doc
}

func buildFunction(fn *function.Function, cfg printer.Config) Function {
	index := make(map[*token.Token]int, len(fn.Body))
	for i, t := range fn.Body {
		index[t] = i
	}

	out := Function{Name: fn.Name(), Nodes: make([]Node, len(fn.Body))}
	for i, t := range fn.Body {
		n := Node{Text: t.Text, Category: t.Category, Word: t.Index}
		for _, op := range t.Operands {
			n.Operands = append(n.Operands, index[op])
		}
		out.Nodes[i] = n
	}

	out.Roots = []int{}
	for _, line := range fn.Lines(cfg.Order) {
		i := index[line.Token]
		if line.Label {
			out.Labels = append(out.Labels, i)
			continue
		}
		out.Roots = append(out.Roots, i)
		out.Nodes[i].Expr = line.Render(cfg.ShowStackOutput)
	}
	return out
}

// Marshal serializes a Document to canonical CBOR.
func Marshal(doc *Document) ([]byte, error) {
	return cborEncMode.Marshal(doc)
}

// Unmarshal deserializes a Document.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("export: unmarshal document: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("export: unsupported document version %d", doc.Version)
	}
	return &doc, nil
}

// Write builds a Document from fns and writes it to w.
func Write(w io.Writer, fns []*function.Function, cfg printer.Config) error {
	data, err := Marshal(Build(fns, cfg))
	if err != nil {
		return fmt.Errorf("export: marshal document: %w", err)
	}
	_, err = w.Write(data)
	return err
}
