// Package api exposes the HTTP interface for the job-posting fetch service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentwire/jobfetch/internal/cache"
	"github.com/talentwire/jobfetch/internal/config"
	"github.com/talentwire/jobfetch/internal/platform"
	"github.com/talentwire/jobfetch/internal/scrape"
	"github.com/talentwire/jobfetch/internal/telemetry"
)

// BatchRunner is the slice of the executor the API needs.
type BatchRunner interface {
	RunBatch(ctx context.Context, targets []string, opts scrape.BatchOptions) ([]scrape.ItemResult, error)
	CacheKey(raw string) (string, error)
}

// SessionAdmin exposes session introspection and forced refresh.
type SessionAdmin interface {
	Stats() scrape.SessionStats
	Refresh(ctx context.Context) error
}

// Server wires HTTP handlers to the executor, cache, sessions and the audit
// record store.
type Server struct {
	router   chi.Router
	executor BatchRunner
	cache    *cache.Cache[scrape.Posting]
	sessions map[scrape.Platform]SessionAdmin
	registry *platform.Registry
	records  scrape.RecordStore
	cfg      config.Config
	log      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	executor BatchRunner,
	postingCache *cache.Cache[scrape.Posting],
	sessions map[scrape.Platform]SessionAdmin,
	registry *platform.Registry,
	records scrape.RecordStore,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		executor: executor,
		cache:    postingCache,
		sessions: sessions,
		registry: registry,
		records:  records,
		cfg:      cfg,
		log:      logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))
	r.Use(recoverMiddleware(s.log))
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(10 * time.Minute))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/scrape", s.scrapeOne)
		r.Post("/batch", s.scrapeBatch)
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.cacheStats)
			r.Get("/items", s.cacheItems)
			r.Delete("/", s.cacheClear)
			r.Delete("/item", s.cacheInvalidate)
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/stats", s.sessionStats)
			r.Post("/refresh", s.sessionRefresh)
		})
		r.Get("/records/recent", s.recentRecords)
		r.Get("/supported-sites", s.supportedSites)
		r.Get("/config", s.configView)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Sessions initialize lazily on first use, so readiness only requires
	// that at least one platform is wired.
	if len(s.sessions) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no platform sessions configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) supportedSites(w http.ResponseWriter, _ *http.Request) {
	platforms := s.registry.Supported()
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, string(p))
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"sites": names})
}

// configView returns the non-sensitive knobs. Auth keys and DSNs stay out.
func (s *Server) configView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cache": map[string]any{
			"capacity":    s.cfg.Cache.Capacity,
			"ttl_seconds": s.cfg.Cache.TTLSeconds,
		},
		"ratelimit": map[string]any{
			"max_permits":    s.cfg.RateLimit.MaxPermits,
			"window_seconds": s.cfg.RateLimit.WindowSeconds,
		},
		"executor": map[string]any{
			"workers":               s.cfg.Executor.Workers,
			"batch_max":             s.cfg.Executor.BatchMax,
			"batch_timeout_seconds": s.cfg.Executor.BatchTimeoutSeconds,
		},
		"session": map[string]any{
			"max_attempts":      s.cfg.Session.MaxAttempts,
			"staleness_seconds": s.cfg.Session.StalenessSeconds,
			"proxy_configured":  s.cfg.Session.ProxyURL != "",
		},
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
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
