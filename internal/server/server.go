// Package server exposes the aggregation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/discussed/internal/metrics"
	"github.com/ppiankov/discussed/internal/model"
	"github.com/ppiankov/discussed/internal/pipeline"
	"github.com/ppiankov/discussed/internal/render"
	"github.com/ppiankov/discussed/internal/urlnorm"
)

// maxRequestBytes bounds aggregate request bodies
const maxRequestBytes = 64 << 10

// Engine is the part of the pipeline the server drives
type Engine interface {
	Aggregate(ctx context.Context, rawURL, title string) (*model.AggregateResult, error)
	Comments(ctx context.Context, providerName, threadURL string) (*model.Thread, error)
}

// AggregateRequest is the POST /v1/aggregate payload
type AggregateRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Server serves aggregation requests
type Server struct {
	engine Engine
	srv    *http.Server
}

// New creates a server for engine listening on addr
func New(engine Engine, addr string) *Server {
	s := &Server{engine: engine}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /v1/comments", s.handleComments)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("Server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

// POST /v1/aggregate {"url": "...", "title": "..."}; ?format=rss|atom switches the encoding
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	result, err := s.engine.Aggregate(r.Context(), req.URL, req.Title)
	if errors.Is(err, urlnorm.ErrInvalidURL) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("url", req.URL).Msg("Aggregation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "aggregation failed"})
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", render.FormatJSON:
		writeJSON(w, http.StatusOK, result)
	case render.FormatRSS:
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		if err := render.RSS(w, result); err != nil {
			log.Warn().Err(err).Msg("Failed to write RSS response")
		}
	case render.FormatAtom:
		w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
		if err := render.Atom(w, result); err != nil {
			log.Warn().Err(err).Msg("Failed to write Atom response")
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown format: " + format})
	}
}

// GET /v1/comments?provider=hackernews&url=https://news.ycombinator.com/item?id=1
func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	providerName := r.URL.Query().Get("provider")
	threadURL := r.URL.Query().Get("url")
	if providerName == "" || threadURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "provider and url are required"})
		return
	}

	thread, err := s.engine.Comments(r.Context(), providerName, threadURL)
	switch {
	case errors.Is(err, pipeline.ErrUnknownProvider):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		log.Warn().Err(err).Str("provider", providerName).Str("url", threadURL).Msg("Comment fetch failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, thread)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := render.JSON(w, v); err != nil {
		log.Warn().Err(err).Msg("Failed to write JSON response")
	}
}
