package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"render-engine/internal/logging"
)

var (
	// ErrWriteTimeout means a single write or the whole transfer ran too long.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context ended before the transfer did.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled means the writer was closed or went idle.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config bounds a transfer.
type Config struct {
	// WriteTimeout bounds a single write to the client.
	WriteTimeout time.Duration
	// IdleTimeout bounds the gap between successful writes. Zero disables it.
	IdleTimeout time.Duration
	// MaxDuration bounds the whole transfer. Zero is unlimited.
	MaxDuration time.Duration
	// ChunkSize splits large writes and flushes between them. Zero writes
	// as received.
	ChunkSize int
	// OnProgress is called roughly once per MiB written.
	OnProgress func(written int64, elapsed time.Duration)
}

// DefaultConfig suits rendered outputs of a few GiB over a LAN.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    256 * 1024,
	}
}

// Writer guards an http.ResponseWriter against stalled clients.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	config  Config

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	started   time.Time
	lastWrite time.Time
	written   int64
	closed    bool
}

// NewWriter wraps w. The writer stops when ctx ends, when Close is called or
// when it goes idle for longer than config.IdleTimeout.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	wctx, cancel := context.WithCancelCause(ctx)
	now := time.Now()
	sw := &Writer{
		w:         w,
		config:    config,
		ctx:       wctx,
		cancel:    cancel,
		started:   now,
		lastWrite: now,
	}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	if config.IdleTimeout > 0 {
		go sw.watchIdle()
	}
	return sw
}

// Write implements io.Writer.
func (sw *Writer) Write(p []byte) (int, error) {
	sw.mu.Lock()
	closed := sw.closed
	sw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}
	if err := sw.err(); err != nil {
		return 0, err
	}
	if sw.config.MaxDuration > 0 && time.Since(sw.started) > sw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	size := sw.config.ChunkSize
	if size <= 0 {
		return sw.writeOnce(p)
	}

	total := 0
	for len(p) > 0 {
		if err := sw.err(); err != nil {
			return total, err
		}
		n, err := sw.writeOnce(p[:min(size, len(p))])
		total += n
		if err != nil {
			return total, err
		}
		p = p[n:]
		if sw.flusher != nil {
			sw.flusher.Flush()
		}
	}
	return total, nil
}

func (sw *Writer) writeOnce(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := sw.w.Write(p)
		done <- result{n, err}
	}()

	var timeout <-chan time.Time
	if sw.config.WriteTimeout > 0 {
		t := time.NewTimer(sw.config.WriteTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case r := <-done:
		if r.err != nil {
			return r.n, r.err
		}
		sw.mu.Lock()
		before := sw.written
		sw.written += int64(r.n)
		sw.lastWrite = time.Now()
		written := sw.written
		sw.mu.Unlock()
		if sw.config.OnProgress != nil && written>>20 != before>>20 {
			sw.config.OnProgress(written, time.Since(sw.started))
		}
		return r.n, nil
	case <-timeout:
		sw.cancel(ErrWriteTimeout)
		return 0, ErrWriteTimeout
	case <-sw.ctx.Done():
		return 0, sw.err()
	}
}

func (sw *Writer) watchIdle() {
	ticker := time.NewTicker(sw.config.IdleTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sw.mu.Lock()
			idle := time.Since(sw.lastWrite)
			closed := sw.closed
			sw.mu.Unlock()
			if closed {
				return
			}
			if idle > sw.config.IdleTimeout {
				logging.Warn("Output stream idle for %v, dropping client", idle.Round(time.Second))
				sw.cancel(ErrStreamCanceled)
				return
			}
		case <-sw.ctx.Done():
			return
		}
	}
}

// err reports why the writer stopped, or nil while it is live.
func (sw *Writer) err() error {
	if sw.ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(sw.ctx)
	switch {
	case errors.Is(cause, ErrWriteTimeout), errors.Is(cause, ErrStreamCanceled):
		return cause
	case errors.Is(cause, context.Canceled):
		return ErrClientGone
	default:
		return ErrStreamCanceled
	}
}

// Close stops the writer. It is safe to call more than once.
func (sw *Writer) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.closed {
		sw.closed = true
		sw.cancel(ErrStreamCanceled)
	}
	return nil
}

// Stats returns bytes written and time elapsed.
func (sw *Writer) Stats() (int64, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.written, time.Since(sw.started)
}

// Copy streams r to w through a Writer and returns the bytes delivered.
func Copy(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) (int64, error) {
	sw := NewWriter(ctx, w, config)
	defer sw.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, err := io.Copy(sw, r)

	written, elapsed := sw.Stats()
	logging.Debug("Streamed %d bytes in %v", written, elapsed.Round(time.Millisecond))
	return written, err
}
