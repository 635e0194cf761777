package httpapi

import (
	"net/http"
	"time"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"

	"github.com/google/uuid"
)

// statusRecorder captures the status code a handler wrote so the
// logging middleware can report it after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying ResponseWriter's Flusher, when it has
// one, so wrapping here doesn't hide incremental flushing from streaming
// handlers further down the chain.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withRequestLogging logs method, path, status, elapsed duration, and
// the upstream request-id header (when the handler set one), per the
// error-handling design's logging requirements. Never logs request or
// response bodies, which may carry tokens or message content.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(rec, r)

		logging.Info("request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"upstream_request_id", rec.Header().Get("Anthropic-Request-Id"),
		)
	})
}
