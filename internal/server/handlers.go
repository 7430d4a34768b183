package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/citetree/citetree/internal/fragment"
	cterrors "github.com/citetree/citetree/pkg/errors"
)

// Overview defaults when query parameters are omitted.
const (
	defaultOverviewLevels        = 5
	defaultOverviewNodesPerLevel = 200
)

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req fragment.ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, string(cterrors.ErrCodeInvalidViewport), "malformed request body", false)
		return
	}

	// Cache key excludes the request id; identical viewports share one
	// entry.
	id := req.RequestID
	req.RequestID = ""
	key := s.keyer.FragmentKey(req)
	req.RequestID = id

	s.cached(w, r, key, func() (any, error) {
		return s.service.Viewport(r.Context(), req)
	})
}

type extraEdgesRequest struct {
	RequestID string   `json:"requestId,omitempty"`
	NodeIDs   []string `json:"nodeIds"`
	MaxEdges  int      `json:"maxEdges"`
}

func (s *Server) handleExtraEdges(w http.ResponseWriter, r *http.Request) {
	var req extraEdgesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, string(cterrors.ErrCodeInvalidInput), "malformed request body", false)
		return
	}
	if len(req.NodeIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, string(cterrors.ErrCodeInvalidInput), "nodeIds cannot be empty", false)
		return
	}

	resp, err := s.service.ExtraEdges(r.Context(), req.RequestID, req.NodeIDs, req.MaxEdges)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	maxLevels := queryInt(r, "maxLevels", defaultOverviewLevels)
	maxNodesPerLevel := queryInt(r, "maxNodesPerLevel", defaultOverviewNodesPerLevel)
	if maxLevels < 1 || maxNodesPerLevel < 1 {
		s.writeError(w, http.StatusBadRequest, string(cterrors.ErrCodeInvalidInput), "maxLevels and maxNodesPerLevel must be positive", false)
		return
	}

	key := s.keyer.OverviewKey(map[string]int{"levels": maxLevels, "perLevel": maxNodesPerLevel})
	s.cached(w, r, key, func() (any, error) {
		return s.service.TopologicalOverview(r.Context(), "", maxLevels, maxNodesPerLevel)
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled := s.exec.Cancel(id)
	if !cancelled {
		s.writeError(w, http.StatusNotFound, string(cterrors.ErrCodeQueryNotFound), "no outstanding query with that id", false)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	count := s.exec.CancelAll()
	s.logger.Info("cancelled all queries", "count", count)
	s.writeJSON(w, http.StatusOK, map[string]int{"cancelled": count})
}

type activeQueryBody struct {
	Description string  `json:"description"`
	ElapsedMs   float64 `json:"elapsedMs"`
	Status      string  `json:"status"`
}

func (s *Server) handleActiveQueries(w http.ResponseWriter, r *http.Request) {
	queries := make(map[string]activeQueryBody)
	for _, q := range s.exec.Active() {
		queries[q.ID] = activeQueryBody{
			Description: q.Description,
			ElapsedMs:   float64(q.Elapsed) / float64(time.Millisecond),
			Status:      q.Status,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"queries": queries})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, string(cterrors.ErrCodeStore), cterrors.UserMessage(err), false)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"queries": s.counters.Snapshot(),
		"store":   storeStats,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}
