package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"

	"ara/internal/logging"
	"ara/internal/store"
	"ara/internal/ui"
)

type reportStore interface {
	CreatePlaybook(ctx context.Context, path string) (*store.Playbook, error)
	CompletePlaybook(ctx context.Context, id string) error
	GetPlaybook(ctx context.Context, id string) (*store.Playbook, error)
	ListPlaybooks(ctx context.Context) ([]store.Playbook, error)
	AddResult(ctx context.Context, in store.NewResult) (int64, error)
	ListResults(ctx context.Context, playbookID string) ([]store.Result, error)
}

type rateLimiter interface {
	Allow(key string) bool
}

// New returns an http.Handler with routes and middleware wired.
func New(st reportStore, pages ui.PageRenderer) http.Handler {
	rl := newIPRateLimiter(120, time.Minute) // 120 req/min/IP
	mux := http.NewServeMux()

	// Report pages
	index := with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/playbooks" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not found"))
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		playbooks, err := st.ListPlaybooks(r.Context())
		if err != nil {
			internalError(w, "list playbooks", err)
			return
		}
		writeHTML(w, r, ui.Index(pages, playbooks))
	})
	mux.HandleFunc("/", index)
	mux.HandleFunc("/playbooks", index)

	mux.HandleFunc("/playbook/", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/playbook/"), "/")
		if id == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not found"))
			return
		}
		p, err := st.GetPlaybook(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("playbook not found"))
			return
		}
		if err != nil {
			internalError(w, "get playbook", err)
			return
		}
		results, err := st.ListResults(r.Context(), id)
		if err != nil {
			internalError(w, "list results", err)
			return
		}
		writeHTML(w, r, ui.PlaybookDetail(pages, p, results))
	}))

	// JSON API
	mux.HandleFunc("/api/playbooks", with(rl, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			playbooks, err := st.ListPlaybooks(r.Context())
			if err != nil {
				internalError(w, "list playbooks", err)
				return
			}
			if playbooks == nil {
				playbooks = []store.Playbook{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "playbooks": playbooks})
		case http.MethodPost:
			var req struct {
				Path string `json:"path"`
			}
			if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid_request"})
				return
			}
			p, err := st.CreatePlaybook(r.Context(), req.Path)
			if errors.Is(err, store.ErrEmptyPath) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "empty_path"})
				return
			}
			if err != nil {
				internalError(w, "create playbook", err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "playbook": p})
		default:
			methodNotAllowed(w)
		}
	}))

	mux.HandleFunc("/api/playbooks/complete", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil || req.ID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid_request"})
			return
		}
		err := st.CompletePlaybook(r.Context(), req.ID)
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": "not_found"})
			return
		}
		if err != nil {
			internalError(w, "complete playbook", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "id": req.ID})
	}))

	mux.HandleFunc("/api/results", with(rl, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			id := r.URL.Query().Get("playbook_id")
			if id == "" {
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "missing_playbook_id"})
				return
			}
			results, err := st.ListResults(r.Context(), id)
			if err != nil {
				internalError(w, "list results", err)
				return
			}
			if results == nil {
				results = []store.Result{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "results": results})
		case http.MethodPost:
			var req store.NewResult
			if err := json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(&req); err != nil || req.PlaybookID == "" {
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid_request"})
				return
			}
			id, err := st.AddResult(r.Context(), req)
			switch {
			case errors.Is(err, store.ErrNotFound):
				writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": "not_found"})
			case errors.Is(err, store.ErrInvalidStatus):
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid_status"})
			case errors.Is(err, store.ErrEmptyPath):
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "empty_path"})
			case errors.Is(err, store.ErrInvalidPayload):
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid_payload"})
			case err != nil:
				internalError(w, "add result", err)
			default:
				writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "id": id})
			}
		default:
			methodNotAllowed(w)
		}
	}))

	// Healthcheck
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Add logging + recover
	return recoverer(logger(mux))
}

// Utilities

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"status": "error", "message": "method_not_allowed"})
}

func internalError(w http.ResponseWriter, op string, err error) {
	logging.LogDBOperation(op, nil, err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "internal_error"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeHTML renders c fully before writing so a failed render still yields a 500.
func writeHTML(w http.ResponseWriter, r *http.Request, c templ.Component) {
	var buf strings.Builder
	if err := c.Render(r.Context(), &buf); err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("render error"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, buf.String())
}

// Middleware

func with(rl rateLimiter, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"status": "error", "message": "rate_limited"})
			return
		}
		h(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		// Skip noisy healthcheck lines
		if r.URL.Path == "/healthz" {
			return
		}
		logging.LogHTTPRequest(r.Method, r.URL.Path, r.RemoteAddr, time.Since(start), rec.status, rec.bytes)
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logging.LogPanic(r.URL.Path, v)
				writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "internal_error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// Respect common proxy headers, then fall back to RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return strings.TrimSpace(xr)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// Simple token bucket per IP with fixed refill interval and capacity.
type ipRateLimiter struct {
	cap     int
	refill  time.Duration
	buckets map[string]*bucket
	// protect buckets
	mu sync.Mutex
}

type bucket struct {
	tokens int
	last   time.Time
}

func newIPRateLimiter(cap int, refill time.Duration) *ipRateLimiter {
	return &ipRateLimiter{cap: cap, refill: refill, buckets: make(map[string]*bucket)}
}

func (rl *ipRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{tokens: rl.cap - 1, last: now}
		rl.buckets[key] = b
		return true
	}
	// refill if interval passed
	if d := now.Sub(b.last); d >= rl.refill {
		// reset once per interval
		b.tokens = rl.cap
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
