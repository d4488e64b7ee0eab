// Package manifest handles destack.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/destack/pkg/function"
	"github.com/chazu/destack/pkg/opcode"
	"github.com/chazu/destack/pkg/printer"
)

// FileName is the name of the project configuration file.
const FileName = "destack.toml"

// Output formats.
const (
	FormatText = "text"
	FormatCBOR = "cbor"
)

// Manifest represents a destack.toml configuration.
type Manifest struct {
	Output  Output  `toml:"output"`
	Opcodes Opcodes `toml:"opcodes"`
	Run     Run     `toml:"run"`

	// Dir is the directory containing the destack.toml file (set at load time).
	Dir string `toml:"-"`
}

// Output configures rendering.
type Output struct {
	StackOrder  string `toml:"stack-order"`
	StackOutput bool   `toml:"stack-output"`
	Format      string `toml:"format"`
	Database    string `toml:"database"`
}

// Opcodes selects the opcode table.
type Opcodes struct {
	Table string `toml:"table"`
}

// Run configures the pipeline.
type Run struct {
	Workers int `toml:"workers"`
}

// Default returns the configuration used when there is no destack.toml.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a destack.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a destack.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.Output.StackOrder == "" {
		m.Output.StackOrder = function.Left.String()
	}
	if m.Output.Format == "" {
		m.Output.Format = FormatText
	}
}

func (m *Manifest) validate() error {
	if _, err := function.ParseOrder(m.Output.StackOrder); err != nil {
		return err
	}
	switch m.Output.Format {
	case FormatText, FormatCBOR:
	default:
		return fmt.Errorf("unknown output format %q", m.Output.Format)
	}
	if m.Run.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", m.Run.Workers)
	}
	return nil
}

// PrinterConfig returns the rendering configuration.
func (m *Manifest) PrinterConfig() (printer.Config, error) {
	order, err := function.ParseOrder(m.Output.StackOrder)
	if err != nil {
		return printer.Config{}, err
	}
	return printer.Config{Order: order, ShowStackOutput: m.Output.StackOutput}, nil
}

// TablePath returns the absolute path of the opcode table, or "" when the
// default table should be used.
func (m *Manifest) TablePath() string {
	return m.resolve(m.Opcodes.Table)
}

// DatabasePath returns the absolute path of the output database, or "".
func (m *Manifest) DatabasePath() string {
	return m.resolve(m.Output.Database)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// Registry loads the configured opcode table.
func (m *Manifest) Registry() (*opcode.Registry, error) {
	path := m.TablePath()
	if path == "" {
		return opcode.Default(), nil
	}
	return opcode.Load(path)
}
