// destack CLI - turns stack-machine disassembly into nested expressions
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"

	"github.com/chazu/destack/manifest"
	"github.com/chazu/destack/pkg/decompile"
	"github.com/chazu/destack/pkg/export"
	"github.com/chazu/destack/pkg/function"
	"github.com/chazu/destack/pkg/opcode"
	"github.com/chazu/destack/pkg/printer"
	"github.com/chazu/destack/pkg/reader"
	"github.com/chazu/destack/pkg/store"
	"github.com/chazu/destack/server"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("destack")

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string {
	return fmt.Sprint(int(*v))
}

func (v *verbosity) IsBoolFlag() bool {
	return true
}

func (v *verbosity) Set(string) error {
	*v++
	return nil
}

// options are the command-line settings. Pointer fields are nil when the
// flag was not given, so the manifest value applies.
type options struct {
	right       *bool
	stackOutput *bool
	format      *string
	table       string
	database    string
	workers     int
	lsp         bool

	input  string
	output string
}

func main() {
	var verbose verbosity
	var o options
	right := flag.Bool("right", false, "Print roots in reverse program order")
	stackOutput := flag.Bool("stack-output", false, "Print the alternate output of opcodes that define one")
	format := flag.String("format", "", "Output format: text or cbor (default from destack.toml, else text)")
	flag.StringVar(&o.table, "opcodes", "", "Opcode table (.toml, .yaml or .yml) replacing the built-in one")
	flag.StringVar(&o.database, "db", "", "Also store the rendered lines in this SQLite database")
	flag.IntVar(&o.workers, "j", 0, "Functions bound in parallel (default GOMAXPROCS)")
	flag.BoolVar(&o.lsp, "lsp", false, "Start the language server on stdio")
	flag.Var(&verbose, "v", "Verbose output (repeat for more)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: destack [options] <input> [output]\n\n")
		fmt.Fprintf(os.Stderr, "Decompiles whitespace-separated stack-machine words into expressions.\n")
		fmt.Fprintf(os.Stderr, "Without an output path the result is written to stdout.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  destack prog.asm                    # Print expressions\n")
		fmt.Fprintf(os.Stderr, "  destack --right prog.asm out.txt    # Reverse order, write to out.txt\n")
		fmt.Fprintf(os.Stderr, "  destack -format cbor prog.asm out.cbor\n")
		fmt.Fprintf(os.Stderr, "  destack -db runs.db prog.asm        # Also record the listing\n")
		fmt.Fprintf(os.Stderr, "  destack -lsp                        # Language server for editors\n")
	}
	flag.Parse()

	commonlog.Configure(int(verbose), nil)

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "right":
			o.right = right
		case "stack-output":
			o.stackOutput = stackOutput
		case "format":
			o.format = format
		}
	})

	args := flag.Args()
	if !o.lsp && (len(args) < 1 || len(args) > 2) {
		flag.Usage()
		atexit.Exit(2)
	}
	if len(args) > 0 {
		o.input = args[0]
	}
	if len(args) > 1 {
		o.output = args[1]
	}

	if err := run(context.Background(), o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// resources holds what run opened. They are closed when run returns, or by
// the atexit handler when the process leaves through atexit.Exit first.
type resources struct {
	mu      sync.Mutex
	closers []io.Closer
}

func newResources() *resources {
	r := &resources{}
	atexit.Register(r.release)
	return r
}

func (r *resources) add(c io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, c)
}

// close closes c now and forgets it.
func (r *resources) close(c io.Closer) error {
	r.mu.Lock()
	for i, rc := range r.closers {
		if rc == c {
			r.closers = append(r.closers[:i], r.closers[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return c.Close()
}

// release closes everything still open, most recent first.
func (r *resources) release() {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warningf("release: %v", err)
		}
	}
}

// settings is the merged view of destack.toml and the command line.
type settings struct {
	cfg      printer.Config
	format   string
	opts     decompile.Options
	database string
}

func resolve(o options) (*settings, error) {
	dir := "."
	if o.input != "" {
		dir = filepath.Dir(o.input)
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}

	cfg, err := m.PrinterConfig()
	if err != nil {
		return nil, err
	}
	if o.right != nil {
		cfg.Order = function.Left
		if *o.right {
			cfg.Order = function.Right
		}
	}
	if o.stackOutput != nil {
		cfg.ShowStackOutput = *o.stackOutput
	}

	format := m.Output.Format
	if o.format != nil {
		format = strings.ToLower(*o.format)
	}
	switch format {
	case manifest.FormatText, manifest.FormatCBOR:
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or cbor)", format)
	}

	var reg *opcode.Registry
	if o.table != "" {
		reg, err = opcode.Load(o.table)
	} else {
		reg, err = m.Registry()
	}
	if err != nil {
		return nil, err
	}

	workers := m.Run.Workers
	if o.workers > 0 {
		workers = o.workers
	}

	database := m.DatabasePath()
	if o.database != "" {
		database = o.database
	}

	return &settings{
		cfg:      cfg,
		format:   format,
		opts:     decompile.Options{Registry: reg, Workers: workers},
		database: database,
	}, nil
}

func run(ctx context.Context, o options, stdout io.Writer) error {
	s, err := resolve(o)
	if err != nil {
		return err
	}

	if o.lsp {
		return server.NewLSP(s.opts, s.cfg).Run()
	}

	words, err := reader.ReadFile(o.input)
	if err != nil {
		return err
	}
	result, err := decompile.Run(ctx, reader.Texts(words), s.opts)
	if err != nil {
		return err
	}

	res := newResources()
	defer res.release()

	w := stdout
	var out *os.File
	if o.output != "" {
		out, err = os.Create(o.output)
		if err != nil {
			return fmt.Errorf("cannot create %s: %w", o.output, err)
		}
		res.add(out)
		w = out
	}

	switch s.format {
	case manifest.FormatCBOR:
		err = export.Write(w, result.Functions, s.cfg)
	default:
		err = printer.Write(w, result.Functions, s.cfg)
	}
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if out != nil {
		if err := res.close(out); err != nil {
			return fmt.Errorf("closing %s: %w", o.output, err)
		}
	}

	if s.database != "" {
		db, err := store.Open(s.database)
		if err != nil {
			return err
		}
		res.add(db)
		if _, err := db.Save(ctx, o.input, result.Functions, s.cfg); err != nil {
			return err
		}
	}
	return nil
}
