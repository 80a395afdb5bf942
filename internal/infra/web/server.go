package web

import (
	"context"
	"net/http"
	"time"

	"son1k-dispatch/internal/infra/logging"
	"son1k-dispatch/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RateLimiter is satisfied by the redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	jobUC        *usecase.JobUseCase
	capacityUC   *usecase.CapacityUseCase
	store        *usecase.AccountStore
	auth         *AuthManager
	limiter      RateLimiter
	apiKey       string
	submitLimit  int
	submitWindow time.Duration
	log          *zerolog.Logger
}

func NewServer(
	jobUC *usecase.JobUseCase,
	capacityUC *usecase.CapacityUseCase,
	store *usecase.AccountStore,
	auth *AuthManager,
	limiter RateLimiter,
	apiKey string,
	submitLimit int,
	submitWindow time.Duration,
	logger *zerolog.Logger,
) *Server {
	if submitLimit <= 0 {
		submitLimit = 10
	}
	if submitWindow <= 0 {
		submitWindow = time.Minute
	}
	webLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		jobUC:        jobUC,
		capacityUC:   capacityUC,
		store:        store,
		auth:         auth,
		limiter:      limiter,
		apiKey:       apiKey,
		submitLimit:  submitLimit,
		submitWindow: submitWindow,
		log:          &webLog,
	}
}

func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.traceMiddleware)

		r.Post("/jobs", s.submitJobHandler())
		r.Get("/jobs/{id}", s.getJobHandler())
		r.Get("/capacity", s.capacityHandler())

		r.Post("/admin/login", s.loginHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.operatorMiddleware)
			r.Get("/accounts", s.listAccountsHandler())
			r.Post("/accounts/reset-usage", s.resetUsageHandler())
			r.Post("/accounts/{id}/reset", s.resetHealthHandler())
		})
	})

	return r
}

// traceMiddleware tags every API request with a trace id so log lines from
// one request can be stitched together. An inbound X-Trace-ID is honored,
// otherwise a fresh id is minted and echoed back.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Trace-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Trace-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), id)))
	})
}

// operatorMiddleware gates the fleet-management endpoints behind a valid
// operator session.
func (s *Server) operatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			s.log.Error().Msg("operator auth is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}
