// Package server exposes the quote retrieval core over HTTP.
//
// Routes:
//
//	GET /         - one random quote, filtered by c / min_length / max_length,
//	                encoded per the encode parameter (json|text)
//	GET /{uuid}   - point lookup by uuid
//	GET /stats    - sliding-window request counters
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitokoto-go/hitokoto/internal/admission"
	"github.com/hitokoto-go/hitokoto/internal/observability"
	"github.com/hitokoto-go/hitokoto/internal/pool"
	"github.com/hitokoto-go/hitokoto/internal/quote"
	"github.com/hitokoto-go/hitokoto/internal/selector"
	"github.com/hitokoto-go/hitokoto/internal/store"
)

// Server serves quotes from the immutable active backend chosen at startup.
type Server struct {
	addr     string
	backend  store.Backend
	selector *selector.Selector
	admit    *admission.Controller
	stats    *observability.RequestStats
	log      *observability.Logger
	srv      *http.Server
}

// New wires a Server over the active backend.
func New(addr string, backend store.Backend, admit *admission.Controller, log *observability.Logger) *Server {
	if admit == nil {
		admit = admission.Disabled()
	}
	if log == nil {
		log = observability.NewLogger("hitokoto", nil)
	}
	return &Server{
		addr:     addr,
		backend:  backend,
		selector: selector.New(backend),
		admit:    admit,
		stats:    observability.NewRequestStats(),
		log:      log,
	}
}

// Handler returns the full route set, wrapped in the stats middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRandom)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /{uuid}", s.handleByUUID)
	return s.countRequests(mux)
}

// Start launches the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.Increment()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	if !s.admit.TryAdmit() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q, err := s.selector.Pick(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeQuote(w, q, r.URL.Query().Get("encode"))
}

func (s *Server) handleByUUID(w http.ResponseWriter, r *http.Request) {
	if !s.admit.TryAdmit() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	q, err := s.backend.GetByUUID(r.Context(), r.PathValue("uuid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeQuote(w, q, r.URL.Query().Get("encode"))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stats.Snapshot())
}

// writeError maps the core taxonomy onto HTTP statuses. NoMatch and NotFound
// are expected outcomes and never logged as errors.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, quote.ErrNoMatch), errors.Is(err, quote.ErrNotFound):
		http.Error(w, "no hitokoto found", http.StatusNotFound)
	case errors.Is(err, pool.ErrTimeout):
		http.Error(w, "backend busy, retry later", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		// Caller went away mid-request; nothing useful to write.
	default:
		s.log.Error("backend failure", "path", r.URL.Path, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// quoteResponse is the JSON wire shape. from_who is null when absent.
type quoteResponse struct {
	UUID      string  `json:"uuid"`
	Text      string  `json:"text"`
	Type      string  `json:"type"`
	From      string  `json:"from"`
	FromWho   *string `json:"from_who"`
	Length    int     `json:"length"`
	CreatedAt string  `json:"created_at"`
}

func writeQuote(w http.ResponseWriter, q quote.Quote, encode string) {
	if encode == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(q.Text))
		return
	}

	resp := quoteResponse{
		UUID:      q.UUID,
		Text:      q.Text,
		Type:      string(q.Category),
		From:      q.Source,
		Length:    q.Length,
		CreatedAt: q.CreatedAt.UTC().Format(time.RFC3339),
	}
	if q.FromWho != "" {
		resp.FromWho = &q.FromWho
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// parseFilter builds a FilterSpec from the query string. Category codes are
// validated here so an unknown code is a 400, not a silent empty result.
func parseFilter(r *http.Request) (quote.FilterSpec, error) {
	var f quote.FilterSpec
	params := r.URL.Query()

	if raw := params.Get("c"); raw != "" {
		for _, code := range strings.Split(raw, ",") {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			c, err := quote.ParseCategory(code)
			if err != nil {
				return quote.FilterSpec{}, fmt.Errorf("unknown category %q", code)
			}
			f.Categories = append(f.Categories, c)
		}
	}

	var err error
	if f.MinLength, err = intParam(params.Get("min_length")); err != nil {
		return quote.FilterSpec{}, fmt.Errorf("bad min_length: %w", err)
	}
	if f.MaxLength, err = intParam(params.Get("max_length")); err != nil {
		return quote.FilterSpec{}, fmt.Errorf("bad max_length: %w", err)
	}
	return f, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}
