package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"render-engine/internal/logging"
	"render-engine/internal/metrics"
)

func TestRecorderWriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newRecorder(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rw.status, http.StatusNotFound)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("recorded code = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRecorderWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newRecorder(rec)

	if _, err := rw.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}

	if rw.bytes != 11 {
		t.Errorf("bytes = %d, want 11", rw.bytes)
	}
	if rw.status != http.StatusOK {
		t.Errorf("implicit status = %d, want 200", rw.status)
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap() should return the wrapped writer")
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "/api/jobs", "/api/jobs"},
		{"newline forging", "a\nfake line", "a fake line"},
		{"carriage return", "a\rb", "a b"},
		{"null byte", "a\x00b", "ab"},
		{"ansi escape", "\x1b[31mred", "[31mred"},
		{"tab kept", "a\tb", "a\tb"},
		{"bell stripped", "a\x07b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.input); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"ipv6 remote addr", nil, "[::1]:5555", "::1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:1", "1.2.3.4"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 1.2.3.4 "}, "10.0.0.1:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.1:1", "5.6.7.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{"default logs health", "/healthz", DefaultLoggingConfig(), false},
		{"health disabled", "/healthz", LoggingConfig{LogHealthChecks: false}, true},
		{"api not a health path", "/api/jobs", LoggingConfig{LogHealthChecks: false}, false},
		{"skip prefix", "/metrics", LoggingConfig{SkipPaths: []string{"/metrics"}, LogHealthChecks: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLoggerMiddleware(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(os.Stderr)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc?x=1", nil)
	req.Header.Set("User-Agent", "curl\nforged")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("access log is not one JSON line: %q (%v)", line, err)
	}

	checks := map[string]any{
		"component": "http",
		"level":     "warn",
		"method":    "GET",
		"path":      "/api/jobs/abc",
		"query":     "x=1",
		"status":    float64(404),
		"bytes":     float64(7),
		"agent":     "curl forged",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("%s = %v, want %v", k, entry[k], want)
		}
	}
}

func TestLoggerRecordsJobID(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(os.Stderr)

	router := mux.NewRouter()
	router.Use(Logger(DefaultLoggingConfig()))
	router.HandleFunc("/api/jobs/{id}/output", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}).Methods(http.MethodGet)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/jobs/42/output", nil))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("access log is not one JSON line: %q (%v)", buf.String(), err)
	}
	if entry["job"] != "42" || entry["level"] != "error" {
		t.Errorf("job = %v, level = %v, want 42 and error", entry["job"], entry["level"])
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/api/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {}).Methods(http.MethodGet)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/jobs/{id}", "202")
	health := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	before := testutil.ToFloat64(counter)
	healthBefore := testutil.ToFloat64(health)

	for _, path := range []string{"/api/jobs/a", "/api/jobs/b", "/healthz"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("templated counter delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(health) - healthBefore; got != 0 {
		t.Errorf("skipped path recorded %v requests", got)
	}
}

func TestRouteTemplateUnmatched(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routeTemplate(r); got != "unmatched" {
		t.Errorf("routeTemplate() = %q, want unmatched", got)
	}
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	logging.SetOutput(&bytes.Buffer{})
	defer logging.SetOutput(os.Stderr)

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
