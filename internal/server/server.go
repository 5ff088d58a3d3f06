// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the review pipeline over HTTP for the web frontend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/pipeline"
	"github.com/pdiddy/litreview/internal/protocol"
	"github.com/pdiddy/litreview/pkg/types"
)

const errBlankQuery = "Please provide a search query"

// Server serves the review API.
type Server struct {
	runner Runner
	router chi.Router
}

// New returns a server that runs reviews with runner and accepts browser
// requests from origins.
func New(runner Runner, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{runner: runner, router: chi.NewRouter()}

	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "server is running"})
		})
		r.Post("/search", s.handleSearch)
		r.Post("/filters", s.handleFilters)
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type searchRequest struct {
	Query string `json:"query"`
}

type filtersRequest struct {
	Query     string   `json:"query"`
	Include   []string `json:"include"`
	Exclude   []string `json:"exclude"`
	MaxPapers int      `json:"maxPapers"`
	YearFrom  int      `json:"yearFrom"`
	YearTo    int      `json:"yearTo"`
}

type searchResponse struct {
	Error          string         `json:"error,omitempty"`
	Query          string         `json:"query"`
	FormattedQuery string         `json:"formattedQuery,omitempty"`
	QueryTime      float64        `json:"queryTime"`
	TotalResults   int            `json:"totalResults"`
	FinalReport    string         `json:"finalReport,omitempty"`
	Papers         []*types.Paper `json:"papers"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body", "", 0)
		return
	}
	s.review(w, r, pipeline.Request{Topic: req.Query})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body", "", 0)
		return
	}
	s.review(w, r, pipeline.Request{
		Topic:         req.Query,
		Include:       req.Include,
		Exclude:       req.Exclude,
		MaxPapers:     req.MaxPapers,
		YearFrom:      req.YearFrom,
		YearTo:        req.YearTo,
		Deterministic: true,
		ClassifyOnly:  true,
	})
}

func (s *Server) review(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	query := req.Topic
	if strings.TrimSpace(query) == "" {
		writeFailure(w, http.StatusBadRequest, errBlankQuery, query, 0)
		return
	}
	req.Topic = strings.TrimSpace(query)

	start := time.Now()
	res, err := s.runner.Run(r.Context(), req)
	elapsed := time.Since(start)
	if err != nil {
		zap.L().Error("review request failed", zap.String("query", query), zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, err.Error(), query, elapsed)
		return
	}

	papers := res.Papers
	if papers == nil {
		papers = []*types.Paper{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:          query,
		FormattedQuery: `(("` + query + `"))`,
		QueryTime:      protocol.Seconds(elapsed),
		TotalResults:   len(papers),
		FinalReport:    res.Report,
		Papers:         papers,
	})
}

func writeFailure(w http.ResponseWriter, status int, msg, query string, elapsed time.Duration) {
	writeJSON(w, status, searchResponse{
		Error:     msg,
		Query:     query,
		QueryTime: protocol.Seconds(elapsed),
		Papers:    []*types.Paper{},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writing response", zap.Error(err))
	}
}

// requestLogger tags each request with an ID and logs it on completion.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
