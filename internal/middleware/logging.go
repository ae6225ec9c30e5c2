package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"render-engine/internal/logging"
)

// recorder remembers what a handler sent so the access log and request
// metrics can report it after the fact.
type recorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *recorder) WriteHeader(code int) {
	if rec.wroteHeader {
		return
	}
	rec.status = code
	rec.wroteHeader = true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// Flush keeps output downloads streaming through the middleware.
func (rec *recorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rec *recorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// LoggingConfig selects which requests reach the access log.
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
}

// DefaultLoggingConfig logs every request.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{LogHealthChecks: true}
}

// Logger writes one event per request to the "http" component logger.
// Requests on a job route carry the job id; 4xx log at warn and 5xx at
// error.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	log := logging.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newRecorder(w)
			next.ServeHTTP(rec, r)

			event := levelFor(&log, rec.status).
				Str("client", sanitizeLogField(getClientIP(r))).
				Str("method", sanitizeLogField(r.Method)).
				Str("path", sanitizeLogField(r.URL.Path)).
				Str("query", sanitizeLogField(r.URL.RawQuery))
			if id := mux.Vars(r)["id"]; id != "" {
				event = event.Str("job", sanitizeLogField(id))
			}
			event.
				Int("status", rec.status).
				Int64("bytes", rec.bytes).
				Dur("took", time.Since(start)).
				Str("agent", sanitizeLogField(r.Header.Get("User-Agent"))).
				Msg("request")
		})
	}
}

func levelFor(log *zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status >= http.StatusBadRequest:
		return log.Warn()
	default:
		return log.Info()
	}
}

// sanitizeLogField turns line breaks into spaces and drops other control
// characters, tab excepted, so a header cannot forge log lines or emit
// terminal escapes on the console writer.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20:
			return -1
		}
		return r
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	if !config.LogHealthChecks && (path == "/healthz" || path == "/livez") {
		return true
	}
	for _, prefix := range config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
