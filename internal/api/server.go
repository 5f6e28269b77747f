// Package api serves recommendations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/abdulachik/bookrec/internal/recommender"
	"github.com/abdulachik/bookrec/internal/resolver"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Recommender answers queries. *recommender.Engine implements it.
type Recommender interface {
	Recommend(query string) (*recommender.Result, error)
	Suggest(query string, maxResults int) ([]string, error)
	Stats() (recommender.Stats, error)
	Ready() bool
}

var _ Recommender = (*recommender.Engine)(nil)

// MaxSuggestLimit bounds the limit query parameter of autocomplete.
const MaxSuggestLimit = 50

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	engine Recommender
	health *Health
	logger *slog.Logger
}

// NewServer creates a server. A nil health tracker starts empty and a nil
// logger uses the default slog logger.
func NewServer(engine Recommender, health *Health, logger *slog.Logger) *Server {
	if health == nil {
		health = NewHealth()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, health: health, logger: logger}
}

// Health returns the server's health tracker.
func (s *Server) Health() *Health {
	return s.health
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/recommend", s.handleRecommend)
		r.Get("/autocomplete", s.handleAutocomplete)
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, resolver.ErrNoMatch):
		return http.StatusNotFound, "NO_MATCH"
	case errors.Is(err, recommender.ErrUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
