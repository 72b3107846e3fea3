// Package server is the HTTP surface of the service: scan lifecycle,
// quiz generation, quiz persistence and the public catalogue, served
// over a chi router with CORS locked to the configured frontends.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/codeclinic/codeclinic/pkg/database"
	"github.com/codeclinic/codeclinic/pkg/jobstore"
	"github.com/codeclinic/codeclinic/pkg/metrics"
	"github.com/codeclinic/codeclinic/pkg/orchestrator"
	"github.com/codeclinic/codeclinic/pkg/quiz"
)

// Config tunes the HTTP server.
type Config struct {
	Addr            string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server wires the HTTP handlers to the service components. The
// database is optional; persistence endpoints answer 503 without it.
type Server struct {
	cfg     Config
	router  chi.Router
	orch    *orchestrator.Orchestrator
	store   jobstore.Store
	quizzes *quiz.Generator
	db      *database.DB
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New assembles the server. db and m may be nil.
func New(cfg Config, orch *orchestrator.Orchestrator, store jobstore.Store,
	quizzes *quiz.Generator, db *database.DB, m *metrics.Metrics, log zerolog.Logger) *Server {

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		orch:    orch,
		store:   store,
		quizzes: quizzes,
		db:      db,
		metrics: m,
		log:     log.With().Str("component", "server").Logger(),
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware())
	r.Use(s.logRequests)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/scan", func(r chi.Router) {
		r.Post("/start", s.handleScanStart)
		r.Route("/{scanID}", func(r chi.Router) {
			r.Get("/status", s.handleScanStatus)
			r.Get("/pages", s.handleScanPages)
			r.Post("/select-pages", s.handleSelectPages)
			r.Get("/results", s.handleScanResults)
			r.Post("/cancel", s.handleScanCancel)
		})
	})

	r.Post("/generate-game", s.handleGenerateGame)
	r.Post("/quiz/attempts", s.handleQuizAttempt)
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/scans/public", s.handlePublicScans)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return cors.Handler(opts)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
