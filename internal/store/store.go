// Package store is the SQLite persistence layer for citation graphs and
// their spanning decomposition.
//
// The node table name is injected at construction because upstream
// embedding pipelines publish datasets under different table names.
// Identifiers cannot go through parameter binding, so the name is
// validated against a strict pattern once at Open; every variable input
// after that, including node-id batches, is bound with placeholders.
//
// Writes happen only during decomposition, which runs with exclusive
// access; the serving path is read-only and safe for concurrent queries
// under WAL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/citetree/citetree/pkg/errors"
	"github.com/citetree/citetree/pkg/graph"
)

// batchSize bounds the placeholder count of one IN clause; SQLite's
// default variable limit is 999.
const batchSize = 500

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store wraps the SQLite database holding nodes, citation edges, and the
// persisted decomposition tables.
type Store struct {
	db        *sql.DB
	nodeTable string
}

// Open opens or creates the database at path. nodeTable is the node table
// identifier and must match [A-Za-z_][A-Za-z0-9_]*.
func Open(path, nodeTable string) (*Store, error) {
	if !identPattern.MatchString(nodeTable) {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "node table name %q is not a valid identifier", nodeTable)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "opening database %s", path)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(errors.ErrCodeStore, err, "applying %s", pragma)
		}
	}

	return &Store{db: db, nodeTable: nodeTable}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// NodeTable returns the configured node table name.
func (s *Store) NodeTable() string { return s.nodeTable }

// EnsureSchema creates the node and edge input tables if they do not
// exist. Datasets published by the embedding pipeline already carry them;
// this covers fresh databases and tests.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			x REAL NOT NULL,
			y REAL NOT NULL,
			cluster INTEGER NOT NULL DEFAULT 0,
			degree INTEGER NOT NULL DEFAULT 0,
			year INTEGER NOT NULL DEFAULT 0,
			topo_level INTEGER
		);

		CREATE TABLE IF NOT EXISTS edges (
			src TEXT NOT NULL,
			dst TEXT NOT NULL,
			PRIMARY KEY (src, dst)
		) WITHOUT ROWID;
	`, s.nodeTable)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "creating schema")
	}
	return nil
}

// ImportNodes inserts or replaces nodes in one transaction.
func (s *Store) ImportNodes(ctx context.Context, nodes []graph.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "beginning import")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO %s (id, x, y, cluster, degree, year) VALUES (?, ?, ?, ?, ?, ?)`,
		s.nodeTable))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "preparing node insert")
	}
	defer stmt.Close()

	for _, n := range nodes {
		if _, err := stmt.ExecContext(ctx, n.ID, n.X, n.Y, n.Cluster, n.Degree, n.Year); err != nil {
			return errors.Wrap(errors.ErrCodeStore, err, "inserting node %s", n.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "committing node import")
	}
	return nil
}

// ImportEdges inserts or replaces citation edges in one transaction.
func (s *Store) ImportEdges(ctx context.Context, edges []graph.Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "beginning import")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO edges (src, dst) VALUES (?, ?)`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "preparing edge insert")
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.Src, e.Dst); err != nil {
			return errors.Wrap(errors.ErrCodeStore, err, "inserting edge %s→%s", e.Src, e.Dst)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "committing edge import")
	}
	return nil
}

// placeholders returns "?, ?, ..." for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// args converts an id batch to driver arguments.
func args(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// chunks splits ids into batches of at most batchSize.
func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > batchSize {
		out = append(out, ids[:batchSize])
		ids = ids[batchSize:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
