// Package store keeps decompiled output in a SQLite database so that large
// disassemblies can be searched with SQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/destack/pkg/function"
	"github.com/chazu/destack/pkg/printer"
)

var log = commonlog.GetLogger("destack.store")

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source       TEXT NOT NULL,
	stack_order  TEXT NOT NULL,
	stack_output INTEGER NOT NULL,
	created_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS lines (
	run_id        INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	function_ord  INTEGER NOT NULL,
	function_name TEXT NOT NULL,
	line_ord      INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	word          INTEGER NOT NULL,
	text          TEXT NOT NULL,
	PRIMARY KEY (run_id, function_ord, line_ord)
);
CREATE INDEX IF NOT EXISTS lines_text ON lines(text);
`

// Line kinds stored in lines.kind.
const (
	KindRoot  = "root"
	KindLabel = "label"
)

// Line is one stored output line.
type Line struct {
	FunctionOrd  int
	FunctionName string
	LineOrd      int
	Kind         string
	Word         int
	Text         string
}

// Store handles SQLite storage of decompiled output.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the printed lines of fns as a new run and returns its id.
func (s *Store) Save(ctx context.Context, source string, fns []*function.Function, cfg printer.Config) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO runs (source, stack_order, stack_output) VALUES (?, ?, ?)",
		source, cfg.Order.String(), cfg.ShowStackOutput)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO lines (run_id, function_ord, function_name, line_ord, kind, word, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for fi, fn := range fns {
		for li, line := range fn.Lines(cfg.Order) {
			kind := KindRoot
			if line.Label {
				kind = KindLabel
			}
			if _, err := stmt.ExecContext(ctx, runID, fi, fn.Name(), li, kind,
				line.Token.Index, line.Render(cfg.ShowStackOutput)); err != nil {
				return 0, fmt.Errorf("inserting line: %w", err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	log.Infof("saved run %d (%d lines) to %s", runID, count, s.path)
	return runID, nil
}

// Lines returns the stored lines of a run in print order.
func (s *Store) Lines(ctx context.Context, runID int64) ([]Line, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.query(ctx,
		`SELECT function_ord, function_name, line_ord, kind, word, text
		 FROM lines WHERE run_id = ? ORDER BY function_ord, line_ord`, runID)
}

// Search returns the lines of a run whose text contains substr.
func (s *Store) Search(ctx context.Context, runID int64, substr string) ([]Line, error) {
	if err := s.checkRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.query(ctx,
		`SELECT function_ord, function_name, line_ord, kind, word, text
		 FROM lines WHERE run_id = ? AND instr(text, ?) > 0
		 ORDER BY function_ord, line_ord`, runID, substr)
}

func (s *Store) checkRun(ctx context.Context, runID int64) error {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&n)
	if err != nil {
		return fmt.Errorf("looking up run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Line, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.FunctionOrd, &l.FunctionName, &l.LineOrd, &l.Kind, &l.Word, &l.Text); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
