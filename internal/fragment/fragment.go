// Package fragment composes spatial, degree, cluster, and level
// predicates with tree and extra edge retrieval into paginated,
// LOD-aware viewport fragments.
package fragment

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/citetree/citetree/internal/executor"
	"github.com/citetree/citetree/internal/store"
	"github.com/citetree/citetree/pkg/graph"
	"github.com/citetree/citetree/pkg/spatial"
)

// Endpoint classes for executor timeout selection.
const (
	ClassViewport   = "viewport"
	ClassExtraEdges = "extra_edges"
	ClassOverview   = "overview"
)

// Broken edge roles: the external node is either a parent (it cites into
// the fragment) or a child (a fragment node cites it).
const (
	RoleParent = "parent"
	RoleChild  = "child"
)

// Filters restrict the candidate node set of a viewport query.
type Filters struct {
	// MinDegree drops nodes below this citation degree.
	MinDegree int `json:"minDegree"`

	// Clusters restricts results to the given cluster ids. Values arrive
	// untyped from the wire; a list containing anything non-numeric is
	// logged and ignored rather than failing the request.
	Clusters []any `json:"clusters"`

	// MaxLevel drops nodes deeper than this topological level when set.
	MaxLevel *int `json:"maxLevel"`
}

// ViewportRequest asks for one paginated fragment of the tree.
type ViewportRequest struct {
	RequestID string      `json:"requestId,omitempty"`
	Box       spatial.Box `json:"box"`
	Filters   Filters     `json:"filters"`
	Offset    int         `json:"offset"`
	Limit     int         `json:"limit"`
}

// NodePayload is a node as served to clients.
type NodePayload struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Cluster int     `json:"cluster"`
	Degree  int     `json:"degree"`
	Year    int     `json:"year,omitempty"`
	Level   int     `json:"level"`
}

// EdgePayload is a tree edge with both endpoints inside the fragment.
type EdgePayload struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

// BrokenEdge records a tree edge leaving the fragment. The client uses
// the external id and priority to decide which adjoining fragment to
// request next, keeping every fragment connected back to its roots.
type BrokenEdge struct {
	Src      string `json:"src"`
	Dst      string `json:"dst"`
	External string `json:"external"`
	Role     string `json:"role"`
	Priority int    `json:"priority"`
}

// Fragment is the viewport query response. Slices are always non-nil so
// an empty viewport serializes as empty lists, not null.
type Fragment struct {
	Nodes       []NodePayload `json:"nodes"`
	TreeEdges   []EdgePayload `json:"treeEdges"`
	BrokenEdges []BrokenEdge  `json:"brokenEdges"`
	HasMore     bool          `json:"hasMore"`
}

// ExtraEdgesResponse is the enrichment call response.
type ExtraEdgesResponse struct {
	ExtraEdges []store.ExtraEdge `json:"extraEdges"`
}

// Overview is the coarse top-of-tree response.
type Overview struct {
	Nodes []NodePayload `json:"nodes"`
}

// Options configures the service.
type Options struct {
	// Margin is the fractional viewport expansion before spatial lookup.
	Margin float64

	// DefaultLimit applies when a request omits its page size.
	DefaultLimit int

	// MaxLimit caps the page size a request may ask for.
	MaxLimit int

	// MaxExtraEdges caps one enrichment response.
	MaxExtraEdges int
}

// Service answers fragment queries. All store reads run through the
// bounded executor; the service itself holds no mutable state.
type Service struct {
	store  *store.Store
	index  *spatial.Index
	exec   *executor.Executor
	opts   Options
	logger *log.Logger
}

// NewService wires the service. logger may be nil.
func NewService(st *store.Store, index *spatial.Index, exec *executor.Executor, opts Options, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 1000
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.MaxExtraEdges <= 0 {
		opts.MaxExtraEdges = 2000
	}
	return &Service{store: st, index: index, exec: exec, opts: opts, logger: logger}
}

// Viewport returns one paginated fragment for the request.
func (s *Service) Viewport(ctx context.Context, req ViewportRequest) (*Fragment, error) {
	description := fmt.Sprintf("viewport [%g,%g %g,%g] offset=%d limit=%d",
		req.Box.MinX, req.Box.MinY, req.Box.MaxX, req.Box.MaxY, req.Offset, req.Limit)

	value, err := s.exec.Submit(ctx,
		executor.Request{ID: req.RequestID, Class: ClassViewport, Description: description},
		func(ctx context.Context) (any, error) {
			return s.viewport(ctx, req)
		})
	if err != nil {
		return nil, err
	}
	return value.(*Fragment), nil
}

func (s *Service) viewport(ctx context.Context, req ViewportRequest) (*Fragment, error) {
	fragment := &Fragment{
		Nodes:       []NodePayload{},
		TreeEdges:   []EdgePayload{},
		BrokenEdges: []BrokenEdge{},
	}

	ids := s.index.Search(req.Box.Expand(s.opts.Margin))
	if len(ids) == 0 {
		return fragment, nil
	}

	nodes, err := s.store.NodesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	matched := s.filter(nodes, req.Filters)

	// Stable LOD ordering: citation importance first, id as tiebreaker.
	slices.SortFunc(matched, func(a, b graph.Node) int {
		if a.Degree != b.Degree {
			return b.Degree - a.Degree
		}
		return strings.Compare(a.ID, b.ID)
	})

	offset, limit := req.Offset, req.Limit
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	if offset >= len(matched) {
		return fragment, nil
	}
	page := matched[offset:min(offset+limit, len(matched))]
	fragment.HasMore = offset+len(page) < len(matched)

	inPage := make(map[string]bool, len(page))
	for _, n := range page {
		fragment.Nodes = append(fragment.Nodes, payload(n))
		inPage[n.ID] = true
	}

	pageIDs := make([]string, 0, len(page))
	for _, n := range page {
		pageIDs = append(pageIDs, n.ID)
	}
	touching, err := s.store.TreeEdgesTouching(ctx, pageIDs)
	if err != nil {
		return nil, err
	}

	var externalIDs []string
	externalSeen := make(map[string]bool)
	var broken []graph.Edge
	for _, e := range touching {
		if inPage[e.Src] && inPage[e.Dst] {
			fragment.TreeEdges = append(fragment.TreeEdges, EdgePayload{Src: e.Src, Dst: e.Dst})
			continue
		}
		broken = append(broken, e)
		external := e.Src
		if inPage[e.Src] {
			external = e.Dst
		}
		if !externalSeen[external] {
			externalSeen[external] = true
			externalIDs = append(externalIDs, external)
		}
	}

	// Priority of a broken edge is the external node's degree: the client
	// fetches the most connected neighbors first.
	degrees := make(map[string]int, len(externalIDs))
	if len(externalIDs) > 0 {
		externals, err := s.store.NodesByIDs(ctx, externalIDs)
		if err != nil {
			return nil, err
		}
		for _, n := range externals {
			degrees[n.ID] = n.Degree
		}
	}
	for _, e := range broken {
		external, role := e.Src, RoleParent
		if inPage[e.Src] {
			external, role = e.Dst, RoleChild
		}
		fragment.BrokenEdges = append(fragment.BrokenEdges, BrokenEdge{
			Src:      e.Src,
			Dst:      e.Dst,
			External: external,
			Role:     role,
			Priority: degrees[external],
		})
	}
	return fragment, nil
}

// ExtraEdges returns the feedback edges touching the given nodes, highest
// priority first, bounded by maxEdges and the service cap.
func (s *Service) ExtraEdges(ctx context.Context, requestID string, nodeIDs []string, maxEdges int) (*ExtraEdgesResponse, error) {
	if maxEdges <= 0 || maxEdges > s.opts.MaxExtraEdges {
		maxEdges = s.opts.MaxExtraEdges
	}
	description := fmt.Sprintf("extra edges for %d nodes max=%d", len(nodeIDs), maxEdges)

	value, err := s.exec.Submit(ctx,
		executor.Request{ID: requestID, Class: ClassExtraEdges, Description: description},
		func(ctx context.Context) (any, error) {
			edges, err := s.store.ExtraEdgesForNodes(ctx, nodeIDs, maxEdges)
			if err != nil {
				return nil, err
			}
			if edges == nil {
				edges = []store.ExtraEdge{}
			}
			return &ExtraEdgesResponse{ExtraEdges: edges}, nil
		})
	if err != nil {
		return nil, err
	}
	return value.(*ExtraEdgesResponse), nil
}

// TopologicalOverview returns up to maxNodesPerLevel highest-degree nodes
// for each level in [0, maxLevels).
func (s *Service) TopologicalOverview(ctx context.Context, requestID string, maxLevels, maxNodesPerLevel int) (*Overview, error) {
	description := fmt.Sprintf("overview levels=%d perLevel=%d", maxLevels, maxNodesPerLevel)

	value, err := s.exec.Submit(ctx,
		executor.Request{ID: requestID, Class: ClassOverview, Description: description},
		func(ctx context.Context) (any, error) {
			overview := &Overview{Nodes: []NodePayload{}}
			for level := 0; level < maxLevels; level++ {
				nodes, err := s.store.NodesByLevel(ctx, level, maxNodesPerLevel)
				if err != nil {
					return nil, err
				}
				for _, n := range nodes {
					overview.Nodes = append(overview.Nodes, payload(n))
				}
			}
			return overview, nil
		})
	if err != nil {
		return nil, err
	}
	return value.(*Overview), nil
}

// filter applies degree, cluster, and level predicates. A malformed
// cluster list disables only that predicate, with a warning.
func (s *Service) filter(nodes []graph.Node, f Filters) []graph.Node {
	clusterSet, ok := clusterFilter(f.Clusters)
	if !ok {
		s.logger.Warn("ignoring malformed cluster filter", "clusters", f.Clusters)
		clusterSet = nil
	}

	matched := make([]graph.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Degree < f.MinDegree {
			continue
		}
		if clusterSet != nil && !clusterSet[n.Cluster] {
			continue
		}
		if f.MaxLevel != nil && n.Level > *f.MaxLevel {
			continue
		}
		matched = append(matched, n)
	}
	return matched
}

// clusterFilter coerces the untyped cluster list to integer ids. JSON
// numbers arrive as float64; anything else, or a fractional value, marks
// the list malformed.
func clusterFilter(raw []any) (map[int]bool, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	set := make(map[int]bool, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok || f != float64(int(f)) {
			return nil, false
		}
		set[int(f)] = true
	}
	return set, true
}

func payload(n graph.Node) NodePayload {
	return NodePayload{
		ID:      n.ID,
		X:       n.X,
		Y:       n.Y,
		Cluster: n.Cluster,
		Degree:  n.Degree,
		Year:    n.Year,
		Level:   n.Level,
	}
}
