package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reel-server/internal/logging"
	"reel-server/internal/metrics"
)

// ErrEngineUnavailable indicates the media engine or resolver cannot run.
var ErrEngineUnavailable = errors.New("engine unavailable")

// DefaultCacheTTL is how long a probe result is reused.
const DefaultCacheTTL = 5 * time.Second

// ReadyMessage is reported when every check passes.
const ReadyMessage = "Server is running and FFmpeg is installed"

// Check is a named, side-effect-free probe. Hint is the message reported
// when it fails.
type Check struct {
	Name  string
	Hint  string
	Probe func(ctx context.Context) error
}

func (c Check) hint() string {
	if c.Hint != "" {
		return c.Hint
	}
	return c.Name + " is not available"
}

// UnavailableError describes failed checks. It matches ErrEngineUnavailable
// with errors.Is and its message is safe to show to clients.
type UnavailableError struct {
	Message string
	Cause   error
}

func (e *UnavailableError) Error() string {
	return e.Message
}

// Unwrap returns the failed checks' errors.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrEngineUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrEngineUnavailable
}

// Result is the outcome of the most recent probe round.
type Result struct {
	Ready     bool            `json:"ready"`
	Message   string          `json:"message"`
	Checks    map[string]bool `json:"checks"`
	CheckedAt time.Time       `json:"checkedAt"`
	err       error
}

// Err returns nil when ready, otherwise an error wrapping ErrEngineUnavailable.
func (r Result) Err() error {
	return r.err
}

// Reporter runs checks and caches the result for a TTL.
type Reporter struct {
	checks []Check
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	last   Result
	hasRun bool
}

// NewReporter creates a Reporter. A non-positive ttl means DefaultCacheTTL.
func NewReporter(ttl time.Duration, checks ...Check) *Reporter {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Reporter{
		checks: checks,
		ttl:    ttl,
		now:    time.Now,
	}
}

// CheckReady returns nil when every check passes, otherwise an error
// wrapping ErrEngineUnavailable.
func (r *Reporter) CheckReady(ctx context.Context) error {
	return r.Status(ctx).Err()
}

// Status returns the cached result, re-probing once it is older than the TTL.
// Concurrent callers share one probe round.
func (r *Reporter) Status(ctx context.Context) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasRun && r.now().Sub(r.last.CheckedAt) < r.ttl {
		return r.last
	}

	r.last = r.probe(ctx)
	r.hasRun = true
	return r.last
}

// Invalidate forces the next call to probe again.
func (r *Reporter) Invalidate() {
	r.mu.Lock()
	r.hasRun = false
	r.mu.Unlock()
}

func (r *Reporter) probe(ctx context.Context) Result {
	res := Result{
		Ready:     true,
		Message:   ReadyMessage,
		Checks:    make(map[string]bool, len(r.checks)),
		CheckedAt: r.now(),
	}

	var failures []error
	for _, c := range r.checks {
		err := c.Probe(ctx)
		res.Checks[c.Name] = err == nil
		if err != nil {
			logging.Warn("Readiness check %s failed: %v", c.Name, err)
			if len(failures) == 0 {
				res.Message = c.hint()
			}
			failures = append(failures, fmt.Errorf("%s: %w", c.Name, err))
		}
	}

	if len(failures) > 0 {
		res.Ready = false
		res.err = &UnavailableError{Message: res.Message, Cause: errors.Join(failures...)}
		metrics.EngineReady.Set(0)
		metrics.EngineProbesTotal.WithLabelValues("error").Inc()
		return res
	}

	metrics.EngineReady.Set(1)
	metrics.EngineProbesTotal.WithLabelValues("success").Inc()
	return res
}
