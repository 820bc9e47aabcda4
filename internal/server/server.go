package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/llm"
	"github.com/lazypower/claimgate/internal/model"
)

// Backend is the store a Server reads from.
type Backend interface {
	gatekeeper.Source
	ListUsers(ctx context.Context) ([]model.User, error)
	Ping(ctx context.Context) error
}

// Options tunes a Server. Zero values disable auth and rate limiting.
type Options struct {
	Version       string
	Backend       string // name reported by /api/health
	MinConfidence float64
	MinTrusted    float64
	TopK          int
	BatchWorkers  int
	JWTSecret     string
	RatePerSecond float64
	RateBurst     int
	Logger        *slog.Logger
	Metrics       *Metrics
	LLM           llm.Client // nil disables /api/answer
	Caveats       llm.Caveats
	Now           func() time.Time
}

// Server is the claimgate HTTP API server.
type Server struct {
	backend  Backend
	pipeline *gatekeeper.Pipeline
	opts     Options
	limiter  *Limiter
	metrics  *Metrics
	log      *slog.Logger
	router   chi.Router
	started  time.Time
}

// New creates a new Server over backend.
func New(backend Backend, pipeline *gatekeeper.Pipeline, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Caveats = opts.Caveats.OrDefault()
	s := &Server{
		backend:  backend,
		pipeline: pipeline,
		opts:     opts,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		started:  time.Now(),
	}
	if opts.RatePerSecond > 0 {
		s.limiter = NewLimiter(opts.RatePerSecond, opts.RateBurst)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/users", s.handleListUsers)
			r.Post("/retrieve", s.handleRetrieve)
			r.Post("/retrieve/batch", s.handleRetrieveBatch)
			r.Post("/context", s.handleContext)
			r.Post("/answer", s.handleAnswer)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.backend.Ping(r.Context()); err != nil {
		dbOK = false
		s.log.Warn("health ping failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.opts.Version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"backend": s.opts.Backend,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
