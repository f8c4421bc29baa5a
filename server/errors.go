package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/jonwraymond/sentimentd/observe"
)

// ErrorResponse is the body of every error answer from the API.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, detail, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Detail: detail, Code: code})
}

// recoverer turns a handler panic into a 500 INTERNAL_ERROR response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error(r.Context(), "unhandled panic",
				observe.F("path", r.URL.Path),
				observe.F("panic", fmt.Sprint(rec)),
				observe.F("stack", string(debug.Stack())),
			)
			writeError(w, http.StatusInternalServerError, "Internal server error", fmt.Sprint(rec), "INTERNAL_ERROR")
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit answers 429 with Retry-After when the limiter is exhausted.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.RateLimiter.Allow() {
			retry := s.config.RateLimiter.RetryAfter()
			secs := int(retry.Seconds())
			if retry > 0 && secs == 0 {
				secs = 1
			}
			w.Header().Set("Retry-After", fmt.Sprint(secs))
			writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded", "RATE_LIMITED")
			return
		}
		next.ServeHTTP(w, r)
	})
}
