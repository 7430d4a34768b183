package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/citetree/citetree/pkg/errors"
	"github.com/citetree/citetree/pkg/graph"
	"github.com/citetree/citetree/pkg/graph/decompose"
)

// LoadGraph reads the full node and edge set into memory. A dangling edge
// (an endpoint with no node row) fails the load immediately; decomposing
// a graph with missing nodes would silently drop citations.
func (s *Store) LoadGraph(ctx context.Context) (*graph.Directed, error) {
	g := graph.New()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, x, y, cluster, degree, year, topo_level FROM %s`, s.nodeTable))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "loading nodes")
	}
	defer rows.Close()
	for rows.Next() {
		var n graph.Node
		var level sql.NullInt64
		if err := rows.Scan(&n.ID, &n.X, &n.Y, &n.Cluster, &n.Degree, &n.Year, &level); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "scanning node")
		}
		if level.Valid {
			n.Level = int(level.Int64)
		}
		if err := g.AddNode(n); err != nil {
			return nil, errors.Wrap(errors.ErrCodeIntegrity, err, "adding node %s", n.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "reading nodes")
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT src, dst FROM edges`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "loading edges")
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e graph.Edge
		if err := edgeRows.Scan(&e.Src, &e.Dst); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "scanning edge")
		}
		if err := g.AddEdge(e); err != nil {
			return nil, errors.Wrap(errors.ErrCodeIntegrity, err, "dangling edge %s→%s", e.Src, e.Dst)
		}
	}
	if err := edgeRows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "reading edges")
	}
	return g, nil
}

// SaveDecomposition replaces the persisted decomposition in one
// transaction: tree_edges and extra_edges are recreated wholesale, node
// topo_level values are rewritten, and the src/dst indexes rebuilt. A
// reader sees either the previous decomposition or the new one, never a
// mix. Extra edges carry edge_type "feedback" and a priority equal to the
// combined endpoint degree, which drives enrichment ordering.
func (s *Store) SaveDecomposition(ctx context.Context, g *graph.Directed, d *decompose.Decomposition, levels map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "beginning decomposition save")
	}
	defer tx.Rollback()

	ddl := `
		DROP TABLE IF EXISTS tree_edges;
		DROP TABLE IF EXISTS extra_edges;

		CREATE TABLE tree_edges (
			src TEXT NOT NULL,
			dst TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1.0,
			PRIMARY KEY (src, dst)
		) WITHOUT ROWID;

		CREATE TABLE extra_edges (
			src TEXT NOT NULL,
			dst TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1.0,
			edge_type TEXT NOT NULL DEFAULT 'feedback',
			priority INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (src, dst)
		) WITHOUT ROWID;

		CREATE INDEX idx_tree_edges_src ON tree_edges(src);
		CREATE INDEX idx_tree_edges_dst ON tree_edges(dst);
		CREATE INDEX idx_extra_edges_src ON extra_edges(src);
		CREATE INDEX idx_extra_edges_dst ON extra_edges(dst);
	`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "recreating edge tables")
	}

	treeStmt, err := tx.PrepareContext(ctx, `INSERT INTO tree_edges (src, dst, weight) VALUES (?, ?, 1.0)`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "preparing tree insert")
	}
	defer treeStmt.Close()
	for _, e := range d.TreeEdges {
		if _, err := treeStmt.ExecContext(ctx, e.Src, e.Dst); err != nil {
			return errors.Wrap(errors.ErrCodeStore, err, "inserting tree edge %s→%s", e.Src, e.Dst)
		}
	}

	extraStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO extra_edges (src, dst, weight, edge_type, priority) VALUES (?, ?, 1.0, 'feedback', ?)`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "preparing extra insert")
	}
	defer extraStmt.Close()
	for _, e := range d.ExtraEdges {
		priority := 0
		if src, ok := g.Node(e.Src); ok {
			priority += src.Degree
		}
		if dst, ok := g.Node(e.Dst); ok {
			priority += dst.Degree
		}
		if _, err := extraStmt.ExecContext(ctx, e.Src, e.Dst, priority); err != nil {
			return errors.Wrap(errors.ErrCodeStore, err, "inserting extra edge %s→%s", e.Src, e.Dst)
		}
	}

	levelStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`UPDATE %s SET topo_level = ? WHERE id = ?`, s.nodeTable))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "preparing level update")
	}
	defer levelStmt.Close()
	for id, level := range levels {
		if _, err := levelStmt.ExecContext(ctx, level, id); err != nil {
			return errors.Wrap(errors.ErrCodeStore, err, "updating level of %s", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "committing decomposition")
	}
	return nil
}
