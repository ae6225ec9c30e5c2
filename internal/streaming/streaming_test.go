package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// stalledWriter blocks every Write until release is closed.
type stalledWriter struct {
	header  http.Header
	release chan struct{}
}

func newStalledWriter(t *testing.T) *stalledWriter {
	w := &stalledWriter{header: http.Header{}, release: make(chan struct{})}
	t.Cleanup(func() { close(w.release) })
	return w
}

func (w *stalledWriter) Header() http.Header { return w.header }
func (w *stalledWriter) WriteHeader(int)     {}
func (w *stalledWriter) Write(p []byte) (int, error) {
	<-w.release
	return len(p), nil
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want 30s", config.WriteTimeout)
	}
	if config.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", config.IdleTimeout)
	}
	if config.MaxDuration != 0 {
		t.Errorf("MaxDuration = %v, want unlimited", config.MaxDuration)
	}
	if config.ChunkSize != 256*1024 {
		t.Errorf("ChunkSize = %d, want 256KiB", config.ChunkSize)
	}
}

func TestWriterWrite(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		size      int
	}{
		{"unchunked", 0, 1000},
		{"smaller than chunk", 4096, 1000},
		{"exact chunks", 100, 1000},
		{"partial last chunk", 300, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			config := DefaultConfig()
			config.ChunkSize = tt.chunkSize
			sw := NewWriter(context.Background(), rec, config)
			defer sw.Close()

			data := bytes.Repeat([]byte("x"), tt.size)
			n, err := sw.Write(data)
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if n != tt.size {
				t.Errorf("Write() = %d, want %d", n, tt.size)
			}
			if rec.Body.Len() != tt.size {
				t.Errorf("body has %d bytes, want %d", rec.Body.Len(), tt.size)
			}
			if written, _ := sw.Stats(); written != int64(tt.size) {
				t.Errorf("Stats() written = %d, want %d", written, tt.size)
			}
		})
	}
}

func TestWriterStopConditions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T) (*Writer, []byte)
		want    error
	}{
		{
			name: "closed",
			prepare: func(_ *testing.T) (*Writer, []byte) {
				sw := NewWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())
				sw.Close()
				return sw, []byte("x")
			},
			want: ErrStreamCanceled,
		},
		{
			name: "client gone",
			prepare: func(_ *testing.T) (*Writer, []byte) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return NewWriter(ctx, httptest.NewRecorder(), DefaultConfig()), []byte("x")
			},
			want: ErrClientGone,
		},
		{
			name: "max duration",
			prepare: func(_ *testing.T) (*Writer, []byte) {
				config := DefaultConfig()
				config.MaxDuration = time.Nanosecond
				sw := NewWriter(context.Background(), httptest.NewRecorder(), config)
				time.Sleep(time.Millisecond)
				return sw, []byte("x")
			},
			want: ErrWriteTimeout,
		},
		{
			name: "stalled client",
			prepare: func(t *testing.T) (*Writer, []byte) {
				config := DefaultConfig()
				config.WriteTimeout = 20 * time.Millisecond
				return NewWriter(context.Background(), newStalledWriter(t), config), []byte("x")
			},
			want: ErrWriteTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw, data := tt.prepare(t)
			defer sw.Close()
			if _, err := sw.Write(data); !errors.Is(err, tt.want) {
				t.Errorf("Write() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriterStaysStoppedAfterTimeout(t *testing.T) {
	config := DefaultConfig()
	config.WriteTimeout = 20 * time.Millisecond
	sw := NewWriter(context.Background(), newStalledWriter(t), config)
	defer sw.Close()

	if _, err := sw.Write([]byte("x")); !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("first Write() error = %v, want ErrWriteTimeout", err)
	}
	if _, err := sw.Write([]byte("x")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("second Write() error = %v, want ErrWriteTimeout", err)
	}
}

func TestWriterIdleTimeout(t *testing.T) {
	config := DefaultConfig()
	config.IdleTimeout = 40 * time.Millisecond
	sw := NewWriter(context.Background(), httptest.NewRecorder(), config)
	defer sw.Close()

	time.Sleep(150 * time.Millisecond)
	if _, err := sw.Write([]byte("x")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write() after idle error = %v, want ErrStreamCanceled", err)
	}
}

func TestWriterOnProgress(t *testing.T) {
	var mu sync.Mutex
	var calls []int64

	config := DefaultConfig()
	config.ChunkSize = 512 * 1024
	config.OnProgress = func(written int64, _ time.Duration) {
		mu.Lock()
		calls = append(calls, written)
		mu.Unlock()
	}
	sw := NewWriter(context.Background(), httptest.NewRecorder(), config)
	defer sw.Close()

	if _, err := sw.Write(make([]byte, 3<<20)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int64{1 << 20, 2 << 20, 3 << 20}
	if len(calls) != len(want) {
		t.Fatalf("OnProgress called %d times (%v), want %d", len(calls), calls, len(want))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d written = %d, want %d", i, calls[i], want[i])
		}
	}
}

func TestWriterCloseIdempotent(t *testing.T) {
	sw := NewWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())
	if err := sw.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestCopy(t *testing.T) {
	rec := httptest.NewRecorder()
	data := bytes.Repeat([]byte("frame"), 100000)

	n, err := Copy(context.Background(), rec, bytes.NewReader(data), DefaultConfig())
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("Copy() = %d, want %d", n, len(data))
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("body differs from source")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	errs := []error{ErrWriteTimeout, ErrClientGone, ErrStreamCanceled}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v matches %v", a, b)
			}
		}
	}
}

func BenchmarkWriterWrite(b *testing.B) {
	sw := NewWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())
	defer sw.Close()
	data := make([]byte, 64*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sw.Write(data); err != nil {
			b.Fatal(err)
		}
	}
}
