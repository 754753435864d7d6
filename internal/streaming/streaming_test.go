package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// countingWriter records how the body was split.
type countingWriter struct {
	*httptest.ResponseRecorder
	mu      sync.Mutex
	writes  int
	flushes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.ResponseRecorder.Write(p)
}

func (c *countingWriter) Flush() {
	c.mu.Lock()
	c.flushes++
	c.mu.Unlock()
}

// stalledWriter never completes a write until released.
type stalledWriter struct {
	header  http.Header
	release chan struct{}
}

func (s *stalledWriter) Header() http.Header { return s.header }
func (s *stalledWriter) WriteHeader(int)     {}
func (s *stalledWriter) Write(p []byte) (int, error) {
	<-s.release
	return len(p), nil
}

func TestSendDeliversWholeBody(t *testing.T) {
	body := strings.Repeat("clip", 1000)
	rec := httptest.NewRecorder()

	res, err := Send(context.Background(), rec, strings.NewReader(body), int64(len(body)), DefaultConfig())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Bytes != int64(len(body)) {
		t.Errorf("Bytes = %d, want %d", res.Bytes, len(body))
	}
	if rec.Body.String() != body {
		t.Error("client received a different body")
	}
}

func TestSendShortSource(t *testing.T) {
	rec := httptest.NewRecorder()

	res, err := Send(context.Background(), rec, strings.NewReader("short"), 100, DefaultConfig())
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
	if res.Bytes != 5 {
		t.Errorf("Bytes = %d, want 5", res.Bytes)
	}
}

func TestSendClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Send(ctx, httptest.NewRecorder(), strings.NewReader("data"), 4, DefaultConfig())
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("err = %v, want ErrClientGone", err)
	}
}

func TestWriteTimeout(t *testing.T) {
	sw := &stalledWriter{header: http.Header{}, release: make(chan struct{})}
	t.Cleanup(func() { close(sw.release) })

	cfg := Config{WriteTimeout: 20 * time.Millisecond}
	_, err := Send(context.Background(), sw, strings.NewReader("data"), 4, cfg)
	if !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("err = %v, want ErrWriteTimeout", err)
	}
}

func TestIdleTimeout(t *testing.T) {
	tw := NewWriter(context.Background(), httptest.NewRecorder(), Config{IdleTimeout: 40 * time.Millisecond})
	defer tw.Close()

	select {
	case <-tw.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("idle watchdog never fired")
	}

	if _, err := tw.Write([]byte("late")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Write after idle = %v, want ErrWriteTimeout", err)
	}
}

func TestWriteChunksAndFlushes(t *testing.T) {
	cw := &countingWriter{ResponseRecorder: httptest.NewRecorder()}
	tw := NewWriter(context.Background(), cw, Config{ChunkSize: 4})
	defer tw.Close()

	n, err := tw.Write([]byte("0123456789"))
	if err != nil || n != 10 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if cw.writes != 3 {
		t.Errorf("writes = %d, want 3", cw.writes)
	}
	if cw.flushes != 3 {
		t.Errorf("flushes = %d, want 3", cw.flushes)
	}
	if tw.Written() != 10 {
		t.Errorf("Written = %d, want 10", tw.Written())
	}
}

func TestOnProgress(t *testing.T) {
	var seen []int64
	cfg := Config{ChunkSize: 3, OnProgress: func(n int64) { seen = append(seen, n) }}

	_, err := Send(context.Background(), httptest.NewRecorder(), bytes.NewReader([]byte("abcdefg")), 7, cfg)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(seen) == 0 || seen[len(seen)-1] != 7 {
		t.Fatalf("progress = %v, want to end at 7", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("progress not increasing: %v", seen)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	tw := NewWriter(context.Background(), httptest.NewRecorder(), DefaultConfig())
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
}
