package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/destack/pkg/function"
	"github.com/chazu/destack/pkg/opcode"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[output]
stack-order = "right"
stack-output = true
format = "cbor"
database = "out/listing.db"

[opcodes]
table = "vm.toml"

[run]
workers = 3
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Output.StackOrder != "right" {
		t.Errorf("stack-order = %q, want right", m.Output.StackOrder)
	}
	if !m.Output.StackOutput {
		t.Error("stack-output = false, want true")
	}
	if m.Output.Format != FormatCBOR {
		t.Errorf("format = %q, want cbor", m.Output.Format)
	}
	if m.Run.Workers != 3 {
		t.Errorf("workers = %d, want 3", m.Run.Workers)
	}
	if got, want := m.TablePath(), filepath.Join(m.Dir, "vm.toml"); got != want {
		t.Errorf("TablePath() = %q, want %q", got, want)
	}
	if got, want := m.DatabasePath(), filepath.Join(m.Dir, "out", "listing.db"); got != want {
		t.Errorf("DatabasePath() = %q, want %q", got, want)
	}

	cfg, err := m.PrinterConfig()
	if err != nil {
		t.Fatalf("PrinterConfig: %v", err)
	}
	if cfg.Order != function.Right || !cfg.ShowStackOutput {
		t.Errorf("PrinterConfig() = %+v", cfg)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Output.StackOrder != "left" {
		t.Errorf("default stack-order = %q, want left", m.Output.StackOrder)
	}
	if m.Output.StackOutput {
		t.Error("default stack-output = true, want false")
	}
	if m.Output.Format != FormatText {
		t.Errorf("default format = %q, want text", m.Output.Format)
	}
	if m.TablePath() != "" {
		t.Errorf("default TablePath() = %q, want empty", m.TablePath())
	}
	reg, err := m.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if reg != opcode.Default() {
		t.Error("Registry() without a table should be the default registry")
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad order", "[output]\nstack-order = \"up\"\n", "stack order"},
		{"bad format", "[output]\nformat = \"xml\"\n", "output format"},
		{"negative workers", "[run]\nworkers = -2\n", "workers"},
		{"syntax", "[output\n", "parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestManifestRegistryFromTable(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[opcodes]\ntable = \"ops.yaml\"\n")
	table := "opcodes:\n  - mnemonic: PUSH1\n    pops: 0\n  - mnemonic: EXP\n    pops: 2\n    sign: \"**\"\n"
	if err := os.WriteFile(filepath.Join(dir, "ops.yaml"), []byte(table), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	reg, err := m.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if reg.Lookup("EXP").Sign != "**" {
		t.Errorf("EXP = %+v", reg.Lookup("EXP"))
	}
	if reg.Has("ADD") {
		t.Error("custom table should replace the default table")
	}
}

func TestManifestRegistryMissingTable(t *testing.T) {
	m := &Manifest{Dir: t.TempDir(), Opcodes: Opcodes{Table: "missing.toml"}}
	if _, err := m.Registry(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Registry error = %v, want os.ErrNotExist", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[output]\nstack-order = \"right\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Output.StackOrder != "right" {
		t.Errorf("stack-order = %q, want right", m.Output.StackOrder)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no destack.toml exists")
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	cfg, err := m.PrinterConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Order != function.Left || cfg.ShowStackOutput {
		t.Errorf("Default().PrinterConfig() = %+v", cfg)
	}
}
