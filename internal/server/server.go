// Package server exposes the fragment query surface over HTTP.
//
// Timeouts map to 504 with a retryable error body so clients can
// distinguish them from hard failures; cancellations map to the
// non-standard 499 used for abandoned requests. Viewport and overview
// responses are optionally cached behind a request-hash key.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/citetree/citetree/internal/executor"
	"github.com/citetree/citetree/internal/fragment"
	"github.com/citetree/citetree/internal/store"
	"github.com/citetree/citetree/pkg/cache"
	cterrors "github.com/citetree/citetree/pkg/errors"
	"github.com/citetree/citetree/pkg/observability"
)

// statusClientClosedRequest reports a cancelled query; 499 is the
// conventional code for requests the client walked away from.
const statusClientClosedRequest = 499

// Options configures the server.
type Options struct {
	// Addr is the listen address.
	Addr string

	// Cache holds serialized viewport and overview responses. Nil
	// disables caching.
	Cache cache.Cache

	// Keyer builds cache keys. Nil means the default keyer.
	Keyer cache.Keyer

	// CacheTTL is the cache entry lifetime.
	CacheTTL time.Duration

	// Logger may be nil.
	Logger *log.Logger
}

// Server wires the HTTP routes to the fragment service and executor.
type Server struct {
	service  *fragment.Service
	exec     *executor.Executor
	store    *store.Store
	counters *executor.Counters
	cache    cache.Cache
	keyer    cache.Keyer
	cacheTTL time.Duration
	logger   *log.Logger
}

// New creates the server.
func New(service *fragment.Service, exec *executor.Executor, st *store.Store, counters *executor.Counters, opts Options) *Server {
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Server{
		service:  service,
		exec:     exec,
		store:    st,
		counters: counters,
		cache:    opts.Cache,
		keyer:    opts.Keyer,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(recoverer(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/fragments/viewport", s.handleViewport)
		r.Post("/edges/extra", s.handleExtraEdges)
		r.Get("/overview", s.handleOverview)
		r.Get("/queries", s.handleActiveQueries)
		r.Delete("/queries", s.handleCancelAll)
		r.Delete("/queries/{id}", s.handleCancel)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("serving fragments", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// Response helpers
// =============================================================================

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encoding response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string, message string, retryable bool) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Retryable = retryable
	s.writeJSON(w, status, body)
}

// writeQueryError maps executor outcomes to HTTP statuses. Timeouts are
// retryable 504s; cancellations are 499 and logged below error severity.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, executor.ErrTimeout):
		s.writeError(w, http.StatusGatewayTimeout, string(cterrors.ErrCodeTimeout), "query timed out, retry with a smaller viewport or later", true)
	case errors.Is(err, executor.ErrCancelled):
		s.writeError(w, statusClientClosedRequest, string(cterrors.ErrCodeCancelled), "query cancelled", false)
	case errors.Is(err, executor.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, string(cterrors.ErrCodeOverload), "server shutting down", true)
	case errors.Is(err, executor.ErrDuplicateID):
		s.writeError(w, http.StatusBadRequest, string(cterrors.ErrCodeInvalidInput), "a query with that requestId is already running", false)
	default:
		s.logger.Error("query failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, string(cterrors.ErrCodeInternal), cterrors.UserMessage(err), false)
	}
}

// =============================================================================
// Middleware
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func recoverer(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic serving request", "path", r.URL.Path, "panic", rec)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Cache helpers
// =============================================================================

// cached serves a response from cache or computes, stores, and serves it.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, key string, compute func() (any, error)) {
	if data, hit, err := s.cache.Get(r.Context(), key); err == nil && hit {
		observability.Cache().OnCacheHit(r.Context(), "fragment")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	observability.Cache().OnCacheMiss(r.Context(), "fragment")

	payload, err := compute()
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, string(cterrors.ErrCodeInternal), "encoding response", false)
		return
	}
	if err := s.cache.Set(r.Context(), key, data, s.cacheTTL); err != nil {
		s.logger.Warn("caching response", "err", err)
	} else {
		observability.Cache().OnCacheSet(r.Context(), "fragment", len(data))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
