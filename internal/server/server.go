// Package server exposes the export pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz                 liveness probe
//	GET  /api/v1/themes           built-in themes as JSON
//	POST /api/v1/preview          PNG at preview scale
//	POST /api/v1/export/{format}  PNG or JPEG download
//	POST /api/v1/print            print document (?paper=a4|letter)
//
// POST bodies are JSON: {"request": {...}, "name": "...", "theme": "..."}.
// Errors are JSON {"code": "...", "error": "..."}; invalid input maps to 400
// and everything else to 5xx. Every response carries an X-Request-ID.
//
// Footer flag URLs come from clients, so the runner behind a Server should
// load them with [NewFlagLoader]. It never reads the server's own files.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dotspan/dotspan/pkg/config"
	"github.com/dotspan/dotspan/pkg/httputil"
	"github.com/dotspan/dotspan/pkg/imageload"
	"github.com/dotspan/dotspan/pkg/pipeline"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// FlagSchemes are the footer flag URL schemes the API loads.
var FlagSchemes = []string{"data", "https"}

// NewFlagLoader returns an image loader for client supplied flag URLs. It
// accepts only [FlagSchemes] and dials only public addresses; opts may add a
// cache or a logger.
func NewFlagLoader(opts ...imageload.Option) *imageload.Loader {
	return imageload.New(append(opts,
		imageload.WithSchemes(FlagSchemes...),
		imageload.WithHTTPClient(httputil.NewPublicClient(0)),
	)...)
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger for request and error lines.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// Server serves the export API. It is safe for concurrent use.
type Server struct {
	runner  *pipeline.Runner
	logger  *log.Logger
	maxBody int64
	router  chi.Router
}

// New creates a Server backed by runner.
func New(runner *pipeline.Runner, opts ...Option) *Server {
	s := &Server{
		runner:  runner,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/themes", s.handleThemes)
		r.Post("/preview", s.handlePreview)
		r.Post("/export/{format}", s.handleExport)
		r.Post("/print", s.handlePrint)
	})
	return r
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.Server) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg config.Server) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
