package opcode

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidTable is wrapped by every error caused by table contents.
var ErrInvalidTable = errors.New("invalid opcode table")

// Format selects the table encoding.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatForPath picks the format from a file extension. Anything that is not
// .yaml or .yml is treated as TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// table is the on-disk shape of an opcode table.
type table struct {
	Opcodes []Spec `toml:"opcode" yaml:"opcodes" json:"opcodes"`
}

//go:embed opcodes.toml
var defaultTable []byte

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry built from the embedded default table.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Parse(defaultTable, FormatTOML)
		if err != nil {
			panic(fmt.Sprintf("opcode: embedded table: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Load reads and validates an opcode table file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	r, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded %d opcodes from %s", r.Count(), path)
	return r, nil
}

// Parse decodes and validates an opcode table.
func Parse(data []byte, format Format) (*Registry, error) {
	var t table
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported table format %s", format)
	}

	if err := validate(t); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(t.Opcodes))
	for _, s := range t.Opcodes {
		if seen[s.Mnemonic] {
			return nil, fmt.Errorf("%w: duplicate mnemonic %q", ErrInvalidTable, s.Mnemonic)
		}
		seen[s.Mnemonic] = true
	}

	return New(t.Opcodes...), nil
}
