// Package storage exports a finished crawl graph to a SQLite file.
//
// The export is an output artifact for offline analysis. It is rewritten on
// every run and never read back by the crawler.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/amosWeiskopf/rankcrawl/internal/models"
	"github.com/amosWeiskopf/rankcrawl/pkg/graph"
)

// DB wraps the export database
type DB struct {
	db   *sql.DB
	path string
}

// Run is everything written by Export
type Run struct {
	RunID    string
	Seed     string
	Mode     string
	Started  time.Time
	Finished time.Time
	Partial  bool
	Snapshot *graph.Snapshot
	Visits   []models.Visit
	// Scores is nil when the run did not rank
	Scores map[string]float64
}

// NodeRow is one row of the nodes table
type NodeRow struct {
	Key     string
	Visited bool
	Status  string
	Title   string
	Score   sql.NullFloat64
}

// EdgeRow is one row of the edges table
type EdgeRow struct {
	From string
	To   string
}

// Open creates (or reuses) the database at path and ensures the schema
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open export database: %w", err)
	}
	// one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db, path: path}
	if err := d.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return d, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

func (d *DB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		partial INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS nodes (
		key TEXT PRIMARY KEY,
		visited INTEGER NOT NULL,
		status TEXT,
		title TEXT,
		score REAL
	);

	CREATE TABLE IF NOT EXISTS edges (
		from_key TEXT NOT NULL,
		to_key TEXT NOT NULL,
		PRIMARY KEY (from_key, to_key)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_key);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Export replaces the database contents with run in one transaction
func (d *DB) Export(ctx context.Context, run Run) (err error) {
	if run.Snapshot == nil {
		return fmt.Errorf("export %s: no graph snapshot", d.path)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"edges", "nodes", "runs"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, seed, mode, started_at, finished_at, partial) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Seed, run.Mode, run.Started.UTC(), run.Finished.UTC(), run.Partial); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	visits := make(map[string]models.Visit, len(run.Visits))
	for _, v := range run.Visits {
		visits[v.URL] = v
	}

	nodeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (key, visited, status, title, score) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare nodes: %w", err)
	}
	defer nodeStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (from_key, to_key) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edges: %w", err)
	}
	defer edgeStmt.Close()

	snap := run.Snapshot
	for i := 0; i < snap.Len(); i++ {
		key := snap.Key(i)
		v := visits[key]

		var status, title sql.NullString
		if v.Status != "" {
			status = sql.NullString{String: string(v.Status), Valid: true}
		}
		if v.Title != "" {
			title = sql.NullString{String: v.Title, Valid: true}
		}
		var score sql.NullFloat64
		if s, ok := run.Scores[key]; ok {
			score = sql.NullFloat64{Float64: s, Valid: true}
		}

		if _, err = nodeStmt.ExecContext(ctx, key, snap.Visited(i), status, title, score); err != nil {
			return fmt.Errorf("insert node %s: %w", key, err)
		}
		for _, j := range snap.Out(i) {
			if _, err = edgeStmt.ExecContext(ctx, key, snap.Key(j)); err != nil {
				return fmt.Errorf("insert edge %s -> %s: %w", key, snap.Key(j), err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

// Nodes returns every exported node ordered by key
func (d *DB) Nodes(ctx context.Context) ([]NodeRow, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT key, visited, COALESCE(status, ''), COALESCE(title, ''), score FROM nodes ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var out []NodeRow
	for rows.Next() {
		var r NodeRow
		if err := rows.Scan(&r.Key, &r.Visited, &r.Status, &r.Title, &r.Score); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Edges returns every exported edge ordered by source then target
func (d *DB) Edges(ctx context.Context) ([]EdgeRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT from_key, to_key FROM edges ORDER BY from_key, to_key`)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var out []EdgeRow
	for rows.Next() {
		var r EdgeRow
		if err := rows.Scan(&r.From, &r.To); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
