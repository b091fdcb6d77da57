// Package api exposes the solver over HTTP: problem storage, sync and
// async solves, and event streaming.
package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"cartage/internal/config"
	"cartage/internal/events"
	"cartage/internal/jobs"
	"cartage/internal/metrics"
	"cartage/internal/store"
)

type Server struct {
	Store   store.Store
	Broker  events.Broker
	Runner  *jobs.Runner
	Cfg     *config.Config
	limiter *rate.Limiter
}

// NewServer wires the store and broker from config. No DATABASE_URL
// means in-memory storage; no REDIS_URL means an in-process broker.
func NewServer(cfg *config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s = sp
	}
	var broker events.Broker
	if cfg.RedisURL != "" {
		rb, err := events.NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = events.NewMemory()
	}
	return &Server{
		Store:   s,
		Broker:  broker,
		Runner:  jobs.NewRunner(s, cfg.Solver),
		Cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
	}, nil
}

// NewSolveWorker creates the background worker for queued solves.
func (s *Server) NewSolveWorker() *jobs.Worker {
	return jobs.NewWorker(s.Store, s.Runner, s.Broker, s.Cfg.Worker)
}

// Routes builds the HTTP handler with logging and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Problems
	mux.HandleFunc("/v1/problems", s.ProblemsHandler)
	mux.HandleFunc("/v1/problems/", s.ProblemByIDHandler) // includes /derive, /metrics

	// Solves
	mux.HandleFunc("/v1/solve", s.SolveHandler)
	mux.HandleFunc("/v1/solves", s.SolvesHandler)
	mux.HandleFunc("/v1/solves/", s.SolveByIDHandler) // includes /events/stream
	mux.HandleFunc("/v1/solves/ws", s.WSHandler)
	mux.HandleFunc("/v1/solver/config", s.SolverConfigHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)

	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return withRequestLog(withMetrics(mux))
}

// allow gates solve endpoints on the shared rate limiter.
func (s *Server) allow(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter.Allow() {
		return true
	}
	writeProblem(w, http.StatusTooManyRequests, "Rate limited", "solve rate limit exceeded", r.URL.Path)
	return false
}
