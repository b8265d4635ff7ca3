package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/oiliness-w4v0/canvas-application/internal/canvas"
	"github.com/oiliness-w4v0/canvas-application/internal/clock/system"
	"github.com/oiliness-w4v0/canvas-application/internal/logging"
	"github.com/oiliness-w4v0/canvas-application/internal/metrics"
	"github.com/oiliness-w4v0/canvas-application/internal/space"
)

const (
	defaultRequestTimeout = 60 * time.Second
	readyTimeout          = 3 * time.Second
	rootMessage           = "Canvas application API"
)

// Saver runs the save-to-space pipeline.
type Saver interface {
	Save(ctx context.Context, rawURL string) (space.Result, error)
}

// Config wires a Server. UploadsDir, when set, is served at UploadsPrefix.
type Config struct {
	Store          canvas.Store
	Saver          Saver
	Clock          canvas.Clock
	Logger         *zap.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
	UploadsDir     string
	UploadsPrefix  string
}

// Server wires HTTP handlers to the canvas store and the save service.
type Server struct {
	router chi.Router
	store  canvas.Store
	saver  Saver
	clock  canvas.Clock
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:  cfg.Store,
		saver:  cfg.Saver,
		clock:  cfg.Clock,
		logger: logging.OrNop(cfg.Logger).Named("api"),
	}
	if s.clock == nil {
		s.clock = system.New()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/", s.root)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/canvas", func(r chi.Router) {
			r.Get("/", s.getCanvas)
			r.Post("/", s.createCanvas)
			r.Put("/{id}", s.updateCanvas)
		})
		r.Post("/space/save", s.saveToSpace)
	})

	if cfg.UploadsDir != "" {
		prefix := "/" + strings.Trim(cfg.UploadsPrefix, "/")
		if prefix == "/" {
			prefix = "/uploads"
		}
		files := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.UploadsDir)))
		r.Handle(prefix+"/*", files)
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(rootMessage)); err != nil {
		s.logger.Error("root write failed", zap.Error(err))
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
