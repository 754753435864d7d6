package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"reel-server/internal/logging"
)

var (
	// ErrWriteTimeout means the client stopped reading for longer than the
	// configured write or idle timeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context ended before the body was sent.
	ErrClientGone = errors.New("client disconnected")

	// ErrIncomplete means the source ran out before the announced size.
	ErrIncomplete = errors.New("source ended before announced size")

	errClosed = errors.New("writer closed")
)

// Config bounds how long a slow reader may hold a download open.
type Config struct {
	// WriteTimeout caps a single write to the client.
	WriteTimeout time.Duration
	// IdleTimeout caps the gap between successful writes. Zero disables it.
	IdleTimeout time.Duration
	// ChunkSize splits large writes and flushes after each piece.
	ChunkSize int
	// OnProgress, if set, is called after every successful write.
	OnProgress func(written int64)
}

// DefaultConfig suits clip-sized files served to browsers.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer wraps an http.ResponseWriter so that a stalled client cannot block
// the handler goroutine forever.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     Config
	start   time.Time

	mu        sync.Mutex
	lastWrite time.Time
	written   int64
	timedOut  bool
	closed    bool
}

// NewWriter starts the idle watchdog; callers must Close the writer.
func NewWriter(ctx context.Context, w http.ResponseWriter, cfg Config) *Writer {
	wctx, cancel := context.WithCancel(ctx)
	now := time.Now()
	tw := &Writer{
		w:         w,
		parent:    ctx,
		ctx:       wctx,
		cancel:    cancel,
		cfg:       cfg,
		start:     now,
		lastWrite: now,
	}
	if f, ok := w.(http.Flusher); ok {
		tw.flusher = f
	}
	if cfg.IdleTimeout > 0 {
		go tw.watchIdle()
	}
	return tw
}

// Write implements io.Writer.
func (tw *Writer) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, errClosed
	}

	total := 0
	for len(p) > 0 {
		if err := tw.ctx.Err(); err != nil {
			return total, tw.ctxErr()
		}
		n := len(p)
		if tw.cfg.ChunkSize > 0 && n > tw.cfg.ChunkSize {
			n = tw.cfg.ChunkSize
		}
		written, err := tw.writeOnce(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		if tw.flusher != nil && tw.cfg.ChunkSize > 0 {
			tw.flusher.Flush()
		}
		p = p[n:]
	}
	return total, nil
}

func (tw *Writer) writeOnce(p []byte) (int, error) {
	if tw.cfg.WriteTimeout <= 0 {
		n, err := tw.w.Write(p)
		tw.record(n, err)
		return n, err
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := tw.w.Write(p)
		done <- result{n, err}
	}()

	timer := time.NewTimer(tw.cfg.WriteTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		tw.record(res.n, res.err)
		return res.n, res.err
	case <-timer.C:
		tw.expire()
		return 0, ErrWriteTimeout
	case <-tw.ctx.Done():
		return 0, tw.ctxErr()
	}
}

func (tw *Writer) record(n int, err error) {
	if err != nil {
		return
	}
	tw.mu.Lock()
	tw.written += int64(n)
	tw.lastWrite = time.Now()
	written := tw.written
	tw.mu.Unlock()

	if tw.cfg.OnProgress != nil {
		tw.cfg.OnProgress(written)
	}
}

func (tw *Writer) expire() {
	tw.mu.Lock()
	tw.timedOut = true
	tw.mu.Unlock()
	tw.cancel()
}

func (tw *Writer) watchIdle() {
	ticker := time.NewTicker(tw.cfg.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			tw.mu.Unlock()
			if idle > tw.cfg.IdleTimeout {
				logging.Warn("Download idle for %v, aborting", idle.Round(time.Millisecond))
				tw.expire()
				return
			}
		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *Writer) ctxErr() error {
	tw.mu.Lock()
	timedOut := tw.timedOut
	tw.mu.Unlock()
	if timedOut {
		return ErrWriteTimeout
	}
	if tw.parent.Err() != nil {
		return ErrClientGone
	}
	return errClosed
}

// Close stops the watchdog. It is safe to call more than once.
func (tw *Writer) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if !tw.closed {
		tw.closed = true
		tw.cancel()
	}
	return nil
}

// Written reports the bytes accepted by the client so far.
func (tw *Writer) Written() int64 {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written
}

// Result summarises one transfer.
type Result struct {
	Bytes    int64
	Duration time.Duration
}

// Send copies exactly size bytes from r to w. A nil error means the whole
// body reached the client.
func Send(ctx context.Context, w http.ResponseWriter, r io.Reader, size int64, cfg Config) (Result, error) {
	tw := NewWriter(ctx, w, cfg)
	defer tw.Close()

	_, err := io.CopyN(tw, r, size)
	res := Result{Bytes: tw.Written(), Duration: time.Since(tw.start)}

	switch {
	case errors.Is(err, io.EOF):
		return res, fmt.Errorf("%w: sent %d of %d bytes", ErrIncomplete, res.Bytes, size)
	case err != nil:
		return res, err
	}
	logging.Debug("Download sent: %d bytes in %v", res.Bytes, res.Duration.Round(time.Millisecond))
	return res, nil
}
