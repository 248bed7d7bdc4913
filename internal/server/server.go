// Package server exposes the local HTTP interface that tag pages are
// rendered and captured from.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kokosalah45/html-to-image/internal/arabic"
	"github.com/Kokosalah45/html-to-image/internal/metrics"
	"github.com/Kokosalah45/html-to-image/internal/render"
	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Options configures the tag page server.
type Options struct {
	// Addr is the host:port listen address.
	Addr string
	// Products is the full loaded collection; pages are addressed by index.
	Products []tag.Product
	// ImagesDir is the directory served under /images.
	ImagesDir string
	// StaticDir is the directory served at the root for fonts and styles.
	// Defaults to the working directory.
	StaticDir string
	// Logger receives request logs. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Server renders product tag pages for the capture workers. Every product in
// the collection is addressable by its index, captured or not.
type Server struct {
	addr     string
	products []tag.Product
	router   chi.Router
	logger   *zap.Logger

	srv *http.Server
	ln  net.Listener
}

// New constructs a Server with middleware and routes.
func New(opts Options) *Server {
	metrics.Init()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	staticDir := opts.StaticDir
	if staticDir == "" {
		staticDir = "."
	}
	s := &Server{
		addr:     opts.Addr,
		products: opts.Products,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/product/{index}", s.productPage)
	if opts.ImagesDir != "" {
		r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(opts.ImagesDir))))
	}
	r.Handle("/*", http.FileServer(http.Dir(staticDir)))

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background. It returns
// once the listener is accepting, so callers may navigate immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	s.logger.Info("tag page server started", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound listen address. Valid only after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tag page server: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

// productPage renders the tag for the product at the given collection index.
// Unknown or malformed indexes yield a 404 with an empty body.
func (s *Server) productPage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 || idx >= len(s.products) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p := s.products[idx]
	page, err := render.Render(render.TagData{
		ImageURL: "/images/" + p.ImageName(tag.SourceImageExt),
		Price:    arabic.Format(p.CurrentPrice.Display()),
	})
	if err != nil {
		s.logger.Error("render tag page failed", zap.Int("index", idx), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(page)); err != nil {
		s.logger.Error("write tag page failed", zap.Error(err))
	}
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
			logger.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", requestIDFrom(r.Context())),
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
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
