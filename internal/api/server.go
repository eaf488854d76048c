package api

import (
	"bufio"
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

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/ledger"
	"github.com/JakeFAU/campus-kg-crawler/internal/metrics"
)

const (
	defaultLedgerLimit = 100
	maxLedgerLimit     = 1000
	lookupTimeout      = 3 * time.Second
	requestTimeout     = 30 * time.Second
)

// StatusCounter summarizes the status file.
type StatusCounter interface {
	Counts() map[crawler.RoutingStatus]int
}

// ReadyFunc reports whether downstream dependencies are usable.
type ReadyFunc func(ctx context.Context) error

// Server serves health, metrics and read-only run state.
type Server struct {
	router chi.Router
	ledger crawler.Ledger
	status StatusCounter
	ready  ReadyFunc
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. Any dependency
// may be nil; the matching routes then answer 503.
func NewServer(ledgerStore crawler.Ledger, status StatusCounter, ready ReadyFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ledger: ledgerStore,
		status: status,
		ready:  ready,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/ledger", s.listLedger)
		r.Get("/ledger/{category}", s.listLedger)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "status file unavailable")
		return
	}
	counts := s.status.Counts()
	writeJSON(w, http.StatusOK, map[string]int{
		"completed": counts[crawler.RoutingSuccess],
		"skipped":   counts[crawler.RoutingSkipped],
		"failed":    counts[crawler.RoutingFailed],
	})
}

// listLedger handles GET /api/ledger[/{category}]?limit=&offset=. Without a
// category every category is listed in display order.
func (s *Server) listLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable")
		return
	}
	categories := crawler.FailureCategories
	if raw := chi.URLParam(r, "category"); raw != "" {
		category := crawler.FailureCategory(raw)
		if err := ledger.CheckCategory(category); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		categories = []crawler.FailureCategory{category}
	}
	limit, offset, err := parseLimitOffset(r, defaultLedgerLimit, maxLedgerLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	entries := make([]ledgerEntry, 0)
	for _, category := range categories {
		records, err := s.ledger.List(ctx, category)
		if err != nil {
			s.logger.Error("list ledger failed", zap.String("category", string(category)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list ledger")
			return
		}
		for _, rec := range records {
			entries = append(entries, ledgerEntry{Category: string(category), SiteFailureRecord: rec})
		}
	}
	total := len(entries)
	entries = entries[min(offset, total):min(offset+limit, total)]
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "entries": entries})
}

type ledgerEntry struct {
	Category string `json:"category"`
	crawler.SiteFailureRecord
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and latency by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.status, time.Since(start))
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
