// Package server exposes projects, endpoints and prompt rendering over a JSON
// HTTP API, plus a small preview page.
package server

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/yourorg/apiprompt/internal/config"
	"github.com/yourorg/apiprompt/internal/logging"
	"github.com/yourorg/apiprompt/internal/metrics"
	"github.com/yourorg/apiprompt/internal/prompt"
	"github.com/yourorg/apiprompt/internal/store"
)

var (
	//go:embed ui.html
	uiHTML string

	uiTemplate = template.Must(template.New("ui").Parse(uiHTML))
)

const shutdownTimeout = 10 * time.Second

// Server wires the API handlers to a store and a prompt generator.
type Server struct {
	cfg     *config.Config
	store   store.Store
	gen     *prompt.Generator
	metrics *metrics.Collector
	log     *slog.Logger
	tokens  *tokenSet
	router  chi.Router
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

func WithGenerator(g *prompt.Generator) Option {
	return func(s *Server) { s.gen = g }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// New constructs a Server with routes registered.
func New(cfg *config.Config, st store.Store, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	s := &Server{cfg: cfg, store: st}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector()
	}
	if s.gen == nil {
		s.gen = prompt.New(prompt.WithDefaultPersona(cfg.Prompt.DefaultPersona), prompt.WithRecorder(s.metrics))
	}
	s.tokens = newTokenSet(cfg.Server.APITokens)
	s.router = s.routes()
	return s, nil
}

// Handler returns the http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)
	if d := s.cfg.Server.RequestTimeout; d > 0 {
		r.Use(middleware.Timeout(d))
	}
	r.Use(s.authenticate)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/personas", s.handlePersonas)
		r.Post("/prompt/preview", s.handlePreview)
		r.Post("/schema/infer", s.handleInfer)

		r.Get("/projects", s.handleListProjects)
		r.Get("/projects/{projectID}", s.handleGetProject)
		r.Get("/projects/{projectID}/endpoints", s.handleListEndpoints)
		r.Get("/projects/{projectID}/openapi.yaml", s.handleOpenAPI)
		r.Get("/endpoints/{endpointID}", s.handleGetEndpoint)
		r.Get("/endpoints/{endpointID}/prompt", s.handlePrompt)
		r.Post("/endpoints/{endpointID}/schema/{section}/check", s.handleCheckSample)

		r.Group(func(r chi.Router) {
			r.Use(s.requirePrincipal)
			r.Post("/projects", s.handleCreateProject)
			r.Delete("/projects/{projectID}", s.handleDeleteProject)
			r.Post("/projects/{projectID}/endpoints", s.handleCreateEndpoint)
			r.Put("/endpoints/{endpointID}", s.handleUpdateEndpoint)
			r.Delete("/endpoints/{endpointID}", s.handleDeleteEndpoint)
			r.Post("/endpoints/{endpointID}/schema/{section}", s.handleSchemaOp)
			r.Put("/endpoints/{endpointID}/responses/{status}", s.handlePutResponse)
			r.Delete("/endpoints/{endpointID}/responses/{status}", s.handleDeleteResponse)
		})
	})
	return r
}

// observe logs each request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			s.metrics.ObserveRequest(route, r.Method, ww.Status())
			s.log.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

type uiData struct {
	Personas       []prompt.Persona
	DefaultPersona string
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = uiTemplate.Execute(w, uiData{
		Personas:       prompt.Personas(),
		DefaultPersona: s.gen.ResolvePersona(""),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
