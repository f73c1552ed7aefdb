// Package server exposes the MyCase client as a small read-only HTTP proxy.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/mycase-client/pkg/client"
	"github.com/Sternrassler/mycase-client/pkg/logging"
	"github.com/Sternrassler/mycase-client/pkg/metrics"
	"github.com/Sternrassler/mycase-client/pkg/mycase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// ReadyFunc reports whether upstream dependencies are usable.
type ReadyFunc func(ctx context.Context) error

// Server routes proxy requests to a mycase.Service.
type Server struct {
	router  chi.Router
	service *mycase.Service
	ready   ReadyFunc
	server  *http.Server
	logger  zerolog.Logger
}

// ListResponse is the body of a collection request.
type ListResponse struct {
	Items []json.RawMessage `json:"items"`
	Count int               `json:"count"`
	Pages int               `json:"pages"`
	Stop  string            `json:"stop"`
}

// New creates a server. ready may be nil.
func New(service *mycase.Service, ready ReadyFunc) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		ready:   ready,
		logger:  logging.NewLogger(logging.ComponentServer),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", healthHandler)
	s.router.Get("/ready", s.readyHandler)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/firm", s.firmHandler)
		r.Get("/{resource}", s.listHandler)
		r.Get("/{resource}/{id}", s.getHandler)
	})

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Walks over large collections take minutes.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting MyCase proxy server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down MyCase proxy server")
	return s.server.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) firmHandler(w http.ResponseWriter, r *http.Request) {
	firm, err := s.service.Firm(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, firm)
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	resource, err := mycase.ParseResource(chi.URLParam(r, "resource"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// Query parameters are forwarded as filters.
	opts := mycase.ListOptions{Extra: map[string]string{}}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			opts.Extra[key] = values[0]
		}
	}

	result, err := s.service.List(r.Context(), resource, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := result.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Items: items,
		Count: len(items),
		Pages: result.Pages,
		Stop:  result.Stop.String(),
	})
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	resource, err := mycase.ParseResource(chi.URLParam(r, "resource"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	raw, err := s.service.Get(r.Context(), resource, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// writeError maps client errors onto proxy responses: upstream 4xx pass
// through, everything else is a bad gateway.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway

	var apiErr *client.APIError
	switch {
	case errors.Is(err, mycase.ErrUnsupported):
		status = http.StatusMethodNotAllowed
	case errors.Is(err, client.ErrContextCancelled), errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	case errors.As(err, &apiErr) && apiErr.ErrorClass == client.ErrorClassClient:
		status = apiErr.StatusCode
	case client.IsAuthError(err):
		status = http.StatusUnauthorized
	}

	s.logger.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status", status).
		Msg("MyCase request failed")

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
