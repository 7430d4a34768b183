package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/citetree/citetree/pkg/errors"
	"github.com/citetree/citetree/pkg/graph"
)

// ExtraEdge is a persisted feedback edge with its enrichment metadata.
type ExtraEdge struct {
	Src      string  `json:"src"`
	Dst      string  `json:"dst"`
	Weight   float64 `json:"weight"`
	EdgeType string  `json:"edgeType"`
	Priority int     `json:"priority"`
}

// Stats summarizes the stored graph and decomposition.
type Stats struct {
	Nodes      int         `json:"nodes"`
	Edges      int         `json:"edges"`
	TreeEdges  int         `json:"treeEdges"`
	ExtraEdges int         `json:"extraEdges"`
	Levels     map[int]int `json:"levels"`
}

const nodeColumns = `id, x, y, cluster, degree, year, topo_level`

func scanNode(rows *sql.Rows) (graph.Node, error) {
	var n graph.Node
	var level sql.NullInt64
	if err := rows.Scan(&n.ID, &n.X, &n.Y, &n.Cluster, &n.Degree, &n.Year, &level); err != nil {
		return n, err
	}
	if level.Valid {
		n.Level = int(level.Int64)
	}
	return n, nil
}

// NodesByIDs returns the node rows for the given ids, batched to respect
// SQLite's bound-variable limit. Unknown ids are silently absent from the
// result.
func (s *Store) NodesByIDs(ctx context.Context, ids []string) ([]graph.Node, error) {
	nodes := make([]graph.Node, 0, len(ids))
	for _, batch := range chunks(ids) {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE id IN (%s)`,
			nodeColumns, s.nodeTable, placeholders(len(batch)))
		rows, err := s.db.QueryContext(ctx, query, args(batch)...)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "querying nodes")
		}
		for rows.Next() {
			n, err := scanNode(rows)
			if err != nil {
				rows.Close()
				return nil, errors.Wrap(errors.ErrCodeStore, err, "scanning node")
			}
			nodes = append(nodes, n)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.Wrap(errors.ErrCodeStore, err, "reading nodes")
		}
		rows.Close()
	}
	return nodes, nil
}

// TreeEdgesTouching returns every tree edge with at least one endpoint in
// ids. Callers split the result into in-page edges and broken edges.
func (s *Store) TreeEdgesTouching(ctx context.Context, ids []string) ([]graph.Edge, error) {
	seen := make(map[graph.Edge]bool)
	var edges []graph.Edge
	for _, batch := range chunks(ids) {
		ph := placeholders(len(batch))
		query := fmt.Sprintf(`SELECT src, dst FROM tree_edges WHERE src IN (%s) OR dst IN (%s)`, ph, ph)
		bound := append(args(batch), args(batch)...)
		rows, err := s.db.QueryContext(ctx, query, bound...)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "querying tree edges")
		}
		for rows.Next() {
			var e graph.Edge
			if err := rows.Scan(&e.Src, &e.Dst); err != nil {
				rows.Close()
				return nil, errors.Wrap(errors.ErrCodeStore, err, "scanning tree edge")
			}
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.Wrap(errors.ErrCodeStore, err, "reading tree edges")
		}
		rows.Close()
	}
	return edges, nil
}

// ExtraEdgesForNodes returns extra edges touching any of the given ids,
// highest priority first, capped at max.
func (s *Store) ExtraEdgesForNodes(ctx context.Context, ids []string, max int) ([]ExtraEdge, error) {
	seen := make(map[string]bool)
	var edges []ExtraEdge
	for _, batch := range chunks(ids) {
		ph := placeholders(len(batch))
		query := fmt.Sprintf(
			`SELECT src, dst, weight, edge_type, priority FROM extra_edges
			 WHERE src IN (%s) OR dst IN (%s)
			 ORDER BY priority DESC, src ASC, dst ASC LIMIT ?`, ph, ph)
		bound := append(args(batch), args(batch)...)
		bound = append(bound, max)
		rows, err := s.db.QueryContext(ctx, query, bound...)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "querying extra edges")
		}
		for rows.Next() {
			var e ExtraEdge
			if err := rows.Scan(&e.Src, &e.Dst, &e.Weight, &e.EdgeType, &e.Priority); err != nil {
				rows.Close()
				return nil, errors.Wrap(errors.ErrCodeStore, err, "scanning extra edge")
			}
			key := e.Src + "\x00" + e.Dst
			if !seen[key] {
				seen[key] = true
				edges = append(edges, e)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errors.Wrap(errors.ErrCodeStore, err, "reading extra edges")
		}
		rows.Close()
	}

	// Batching can interleave priorities; restore global order and cap.
	sortExtraEdges(edges)
	if len(edges) > max {
		edges = edges[:max]
	}
	return edges, nil
}

// NodesByLevel returns nodes at the given topological level, highest
// degree first, capped at limit.
func (s *Store) NodesByLevel(ctx context.Context, level, limit int) ([]graph.Node, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE topo_level = ? ORDER BY degree DESC, id ASC LIMIT ?`,
		nodeColumns, s.nodeTable)
	rows, err := s.db.QueryContext(ctx, query, level, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "querying level %d", level)
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "scanning node")
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "reading level %d", level)
	}
	return nodes, nil
}

// Stats reads row counts and the level distribution.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Levels: make(map[int]int)}

	counts := map[string]*int{
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.nodeTable): &stats.Nodes,
		`SELECT COUNT(*) FROM edges`:                        &stats.Edges,
		`SELECT COUNT(*) FROM tree_edges`:                   &stats.TreeEdges,
		`SELECT COUNT(*) FROM extra_edges`:                  &stats.ExtraEdges,
	}
	for query, dest := range counts {
		if err := s.db.QueryRowContext(ctx, query).Scan(dest); err != nil {
			// Decomposition tables may not exist before the first run.
			if isMissingTable(err) {
				continue
			}
			return nil, errors.Wrap(errors.ErrCodeStore, err, "counting rows")
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT topo_level, COUNT(*) FROM %s WHERE topo_level IS NOT NULL GROUP BY topo_level`,
		s.nodeTable))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "querying level distribution")
	}
	defer rows.Close()
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStore, err, "scanning level distribution")
		}
		stats.Levels[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "reading level distribution")
	}
	return stats, nil
}
