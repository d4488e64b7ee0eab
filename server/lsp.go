// Package server exposes destack to editors over the Language Server
// Protocol. Opened disassembly documents are decompiled on every change:
// arity underflows and unknown mnemonics become diagnostics, hover shows the
// expression a word renders to, definition jumps to the producers of an
// instruction's operands and references lists the instructions that consume
// a value.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/destack/pkg/decompile"
	"github.com/chazu/destack/pkg/printer"
	"github.com/chazu/destack/pkg/reader"
	"github.com/chazu/destack/pkg/stack"
	"github.com/chazu/destack/pkg/token"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "destack-lsp"

var log = commonlog.GetLogger("destack.server")

// document is the decompiled state of one open file.
type document struct {
	uri    protocol.DocumentUri
	words  []reader.Word
	result *decompile.Result
	err    error
}

// LspServer bridges LSP editor features to the decompiler.
type LspServer struct {
	opts decompile.Options
	cfg  printer.Config

	mu   sync.Mutex
	docs map[string]*document // URI → decompiled document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP(opts decompile.Options, cfg printer.Config) *LspServer {
	s := &LspServer{
		opts:    opts,
		cfg:     cfg,
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "destack LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := s.update(params.TextDocument.URI, params.TextDocument.Text)
	s.publishDiagnostics(ctx, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(params.TextDocument.URI, whole.Text)
			s.publishDiagnostics(ctx, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return s.hover(doc, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	locations := s.definition(doc, params.Position)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return s.references(doc, params.Position), nil
}

// --- Decompiler-backed logic ---

// update decompiles text and stores it as the current state of uri.
func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := s.analyze(uri, text)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	return doc
}

func (s *LspServer) lookup(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

func (s *LspServer) analyze(uri protocol.DocumentUri, text string) *document {
	doc := &document{uri: uri}
	words, err := reader.Read(strings.NewReader(text))
	if err != nil {
		doc.err = err
		return doc
	}
	doc.words = words
	doc.result, doc.err = decompile.Run(context.Background(), reader.Texts(words), s.opts)
	if doc.err != nil {
		log.Debugf("%s: %v", uri, doc.err)
	}
	return doc
}

// tokenAt returns the token under pos, or nil.
func (doc *document) tokenAt(pos protocol.Position) *token.Token {
	if doc.result == nil {
		return nil
	}
	return doc.result.TokenAt(reader.AtChar(doc.words, int(pos.Line), int(pos.Character)))
}

func (doc *document) rangeOf(index int) protocol.Range {
	if index < 0 || index >= len(doc.words) {
		return protocol.Range{}
	}
	w := doc.words[index]
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(w.Line), Character: protocol.UInteger(w.Char)},
		End:   protocol.Position{Line: protocol.UInteger(w.Line), Character: protocol.UInteger(w.CharEnd())},
	}
}

func (doc *document) location(t *token.Token) protocol.Location {
	return protocol.Location{URI: doc.uri, Range: doc.rangeOf(t.Index)}
}

func (s *LspServer) diagnostics(doc *document) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	source := lspName

	if doc.err != nil {
		severity := protocol.DiagnosticSeverityError
		d := protocol.Diagnostic{
			Severity: &severity,
			Source:   &source,
			Message:  doc.err.Error(),
		}
		var se *stack.StructuralError
		if errors.As(doc.err, &se) {
			d.Range = doc.rangeOf(se.Index)
		}
		diagnostics = append(diagnostics, d)
	}

	if doc.result != nil {
		severity := protocol.DiagnosticSeverityInformation
		for _, t := range doc.result.Tokens {
			if !t.IsOpcode() || !t.Spec.IsUnknown() {
				continue
			}
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range:    doc.rangeOf(t.Index),
				Severity: &severity,
				Source:   &source,
				Message:  fmt.Sprintf("unknown mnemonic %s: rendered as a call with no operands", t.Text),
			})
		}
	}

	return diagnostics
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         doc.uri,
		Diagnostics: s.diagnostics(doc),
	})
}

func (s *LspServer) hover(doc *document, pos protocol.Position) *protocol.Hover {
	t := doc.tokenAt(pos)
	if t == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s`", t.Category, t.Text)
	if t.IsOpcode() {
		if t.Spec.IsUnknown() {
			b.WriteString(" (unknown mnemonic)")
		} else {
			fmt.Fprintf(&b, " pops %d", t.Spec.Pops)
		}
	}
	if t.Category != token.FunctionMarker && t.Category != token.JumpLabel {
		fmt.Fprintf(&b, "\n\n```\n%s\n```", t.Render(s.cfg.ShowStackOutput))
	}
	if fn := doc.result.FunctionOf(t); fn != nil && !fn.IsTopLevel() && fn.ID != t {
		fmt.Fprintf(&b, "\n\nin %s", fn.Name())
	}

	r := doc.rangeOf(t.Index)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &r,
	}
}

// definition returns the producers of the operands of the instruction under
// pos, operand 0 first.
func (s *LspServer) definition(doc *document, pos protocol.Position) []protocol.Location {
	t := doc.tokenAt(pos)
	if t == nil {
		return nil
	}
	var locations []protocol.Location
	for _, op := range t.Operands {
		locations = append(locations, doc.location(op))
	}
	return locations
}

// references returns the instructions that consume the value under pos.
func (s *LspServer) references(doc *document, pos protocol.Position) []protocol.Location {
	t := doc.tokenAt(pos)
	if t == nil {
		return nil
	}
	fn := doc.result.FunctionOf(t)
	if fn == nil {
		return nil
	}
	var locations []protocol.Location
	for _, b := range fn.Body {
		for _, op := range b.Operands {
			if op == t {
				locations = append(locations, doc.location(b))
				break
			}
		}
	}
	return locations
}

func boolPtr(b bool) *bool {
	return &b
}
