package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-collector/internal/catalog"
	"github.com/JakeFAU/realtime-news-collector/internal/collector"
	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

const defaultRequestTimeout = 60 * time.Second

// Collector is the collection surface the server drives.
type Collector interface {
	Collect(ctx context.Context, req collector.Request) (collector.Result, error)
	Start(ctx context.Context, req collector.Request) error
	CollectBatch(ctx context.Context, req collector.BatchRequest) (collector.BatchResult, error)
	Status() collector.RunState
	Defaults() collector.Request
}

// Catalog is the read surface the server exposes.
type Catalog interface {
	List(ctx context.Context, q catalog.ListQuery) (catalog.ListResult, error)
	Stats(ctx context.Context) (catalog.Stats, error)
}

// Counter reports how many records are stored.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Options tunes server behavior.
type Options struct {
	Service          string
	RequestTimeout   time.Duration
	BatchQueries     []string
	SourceConfigured bool
}

// Deps are the services behind the routes. Nil services leave their routes unregistered.
type Deps struct {
	Collector Collector
	Catalog   Catalog
	Store     Counter
}

// Server wires HTTP handlers to the collector and catalog.
type Server struct {
	router chi.Router
	opts   Options
	deps   Deps
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{opts: opts, deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(corsMiddleware)
	r.Use(metrics.Middleware)

	// Synchronous collection routes run to completion and are not bounded by
	// the request timeout.
	timeout := timeoutMiddleware(opts.RequestTimeout)

	r.With(timeout).Get("/healthz", s.healthz)
	r.With(timeout).Get("/readyz", s.readyz)
	r.With(timeout).Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if deps.Collector != nil {
			r.Route("/collect", func(r chi.Router) {
				r.With(timeout).Post("/start", s.startCollection)
				r.Post("/now", s.collectNow)
				r.Post("/batch", s.collectBatch)
				r.With(timeout).Get("/status", s.collectionStatus)
			})
		}
		if deps.Catalog != nil {
			r.With(timeout).Get("/news", s.listNews)
			r.With(timeout).Get("/news/stats", s.newsStats)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	source := "not_configured"
	if s.opts.SourceConfigured {
		source = "configured"
	}
	store := "not_connected"
	if s.deps.Store != nil {
		store = "connected"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.opts.Service,
		"source":  source,
		"store":   store,
	})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if _, err := s.deps.Store.Count(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, collector.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, collector.ErrEmptyQuery),
		errors.Is(err, catalog.ErrInvalidQuery),
		errors.Is(err, errBadParam):
		return http.StatusBadRequest
	case errors.Is(err, news.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
