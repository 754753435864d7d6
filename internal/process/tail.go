package process

import (
	"bytes"
	"strings"
	"sync"

	"reel-server/internal/logging"
)

// DefaultTailLines is the number of stderr lines kept for error messages.
const DefaultTailLines = 20

// maxPartial bounds an unterminated line; older bytes are dropped.
const maxPartial = 4 << 10

// Tail is an io.Writer that keeps the last N complete lines written to it,
// optionally echoing each line to a debug logger.
type Tail struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
	log     *logging.Logger
	stream  string
}

// NewTail creates a Tail keeping at most max lines.
func NewTail(max int) *Tail {
	if max <= 0 {
		max = DefaultTailLines
	}
	return &Tail{max: max}
}

// Echo makes the tail log every line at debug level, tagged with stream.
func (t *Tail) Echo(l *logging.Logger, stream string) *Tail {
	t.log = l
	t.stream = stream
	return t
}

func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := len(p)
	data := append(t.partial, p...)
	for {
		idx := bytes.IndexAny(data, "\r\n")
		if idx == -1 {
			break
		}
		t.push(data[:idx])
		data = data[idx+1:]
	}
	if len(data) > maxPartial {
		data = data[len(data)-maxPartial:]
	}
	t.partial = append(t.partial[:0:0], data...)
	return total, nil
}

func (t *Tail) push(raw []byte) {
	line := strings.TrimSpace(string(raw))
	if line == "" {
		return
	}
	if t.log != nil {
		t.log.Debug("[%s] %s", t.stream, line)
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

// Lines returns the retained lines, including an unterminated final line.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.lines)+1)
	out = append(out, t.lines...)
	if last := strings.TrimSpace(string(t.partial)); last != "" {
		out = append(out, last)
		if len(out) > t.max {
			out = out[len(out)-t.max:]
		}
	}
	return out
}

// String joins the retained lines with " | ".
func (t *Tail) String() string {
	return strings.Join(t.Lines(), " | ")
}
