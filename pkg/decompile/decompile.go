// Package decompile runs the whole word-to-expression pipeline: classify,
// segment, then bind every function. Functions share nothing, so binding
// runs on a bounded pool of workers; results always come back in
// segmentation order.
package decompile

import (
	"context"
	"runtime"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/destack/pkg/function"
	"github.com/chazu/destack/pkg/opcode"
	"github.com/chazu/destack/pkg/token"
)

var log = commonlog.GetLogger("destack.decompile")

// Options configures Run.
type Options struct {
	// Registry resolves mnemonics. nil means opcode.Default().
	Registry *opcode.Registry

	// Workers bounds concurrent binding. Zero or less means GOMAXPROCS.
	Workers int
}

// Result is the bound token forest of one input.
type Result struct {
	Tokens    []*token.Token // every token in input order
	Functions []*function.Function
}

// Run decompiles words.
//
// If a function fails to bind, Run still binds the others and returns the
// result together with the error of the earliest failing function, so that
// the reported error does not depend on scheduling.
func Run(ctx context.Context, words []string, opts Options) (*Result, error) {
	reg := opts.Registry
	if reg == nil {
		reg = opcode.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	tokens := token.ClassifyAll(words, reg)
	fns := function.Segment(tokens)
	log.Debugf("%d words, %d functions, %d workers", len(tokens), len(fns), workers)

	errs := make([]error, len(fns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, fn := range fns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			errs[i] = fn.Bind()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Tokens: tokens, Functions: fns}
	for _, err := range errs {
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// TokenAt returns the token for the word at index, or nil.
func (r *Result) TokenAt(index int) *token.Token {
	if r == nil || index < 0 || index >= len(r.Tokens) {
		return nil
	}
	return r.Tokens[index]
}

// FunctionOf returns the function whose identifier or body holds t.
func (r *Result) FunctionOf(t *token.Token) *function.Function {
	if r == nil || t == nil {
		return nil
	}
	for _, fn := range r.Functions {
		if fn.ID == t {
			return fn
		}
		for _, b := range fn.Body {
			if b == t {
				return fn
			}
		}
	}
	return nil
}
