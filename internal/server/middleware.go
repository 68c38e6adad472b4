package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Expose-Headers", "X-QR-Attempts, X-QR-Strategy, Retry-After")
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// instrument records request count and latency under a fixed route label.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	}
}

// rateLimitMiddleware enforces the per-client request rate.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if s.rateLimiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.rateLimiter.CheckRequest(getClientIP(r)); err != nil {
			s.handleRateLimitError(w, err)
			return
		}
		next(w, r)
	}
}

// checkGeneration charges one generation to the requesting client.
func (s *Server) checkGeneration(r *http.Request) error {
	if s.rateLimiter == nil {
		return nil
	}
	return s.rateLimiter.CheckGeneration(getClientIP(r))
}

// LimitResponse is the body of a 429 response.
type LimitResponse struct {
	Success    bool    `json:"success"`
	Error      string  `json:"error"`
	Type       string  `json:"type"`
	Limit      int64   `json:"limit"`
	Used       int64   `json:"used,omitempty"`
	RetryAfter float64 `json:"retry_after,omitempty"`
	Resets     string  `json:"resets,omitempty"`
	Message    string  `json:"message"`
}

// handleRateLimitError answers a rejected request. Errors that are neither a
// rate limit nor a quota become a 500.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var rl *RateLimitError
	var qe *QuotaExceededError
	h := w.Header()

	switch {
	case errors.As(err, &rl):
		rateLimitHits.WithLabelValues(rl.Type).Inc()
		h.Set("X-RateLimit-Type", rl.Type)
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
		h.Set("Retry-After", fmt.Sprintf("%.0f", rl.RetryAfter.Seconds()))
		s.writeJSON(w, http.StatusTooManyRequests, LimitResponse{
			Error:      "rate_limit_exceeded",
			Type:       rl.Type,
			Limit:      int64(rl.Limit),
			RetryAfter: rl.RetryAfter.Seconds(),
			Message:    rl.Error(),
		})
	case errors.As(err, &qe):
		rateLimitHits.WithLabelValues(qe.Type).Inc()
		h.Set("X-Quota-Type", qe.Type)
		h.Set("X-Quota-Limit", strconv.FormatInt(qe.Limit, 10))
		h.Set("X-Quota-Used", strconv.FormatInt(qe.Used, 10))
		h.Set("X-Quota-Resets", qe.Resets.UTC().Format(http.TimeFormat))
		s.writeJSON(w, http.StatusTooManyRequests, LimitResponse{
			Error:   "quota_exceeded",
			Type:    qe.Type,
			Limit:   qe.Limit,
			Used:    qe.Used,
			Resets:  qe.Resets.Format(time.RFC3339),
			Message: qe.Error(),
		})
	default:
		s.writeErrorResponse(w, "Rate limiting check failed", http.StatusInternalServerError)
	}
}

// getClientIP identifies the client by the first forwarded address, then
// X-Real-IP, then the connection's remote host.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
