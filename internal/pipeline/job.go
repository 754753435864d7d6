package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"reel-server/internal/clip"
	"reel-server/internal/logging"
	"reel-server/internal/metrics"
)

// Job is one clip request moving through the pipeline.
type Job struct {
	ID      string
	Request *clip.Request

	log *logging.Logger

	mu         sync.Mutex
	state      State
	progress   float64
	stagedPath string
	outputName string
	err        error
	createdAt  time.Time
	updatedAt  time.Time
	entered    time.Time
}

func newJob(req *clip.Request) *Job {
	id := uuid.NewString()
	now := time.Now()
	return &Job{
		ID:        id,
		Request:   req,
		log:       logging.With("job " + id[:8]),
		state:     StateQueued,
		createdAt: now,
		updatedAt: now,
		entered:   now,
	}
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure cause of a failed job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// transition moves the job to next and returns how long it spent in the
// previous state.
func (j *Job) transition(next State) (time.Duration, error) {
	j.mu.Lock()
	prev := j.state
	if !CanTransition(prev, next) {
		j.mu.Unlock()
		return 0, &TransitionError{From: prev, To: next}
	}
	now := time.Now()
	spent := now.Sub(j.entered)
	j.state = next
	j.entered = now
	j.updatedAt = now
	j.mu.Unlock()

	metrics.JobTransitionsTotal.WithLabelValues(string(prev), string(next)).Inc()
	j.log.Debug("%s -> %s (%v)", prev, next, spent.Round(time.Millisecond))
	return spent, nil
}

// fail moves the job to Failed unless it already reached a terminal state.
func (j *Job) fail(err error) {
	j.mu.Lock()
	prev := j.state
	if prev.Terminal() {
		j.mu.Unlock()
		return
	}
	j.state = StateFailed
	j.err = err
	j.updatedAt = time.Now()
	j.mu.Unlock()

	metrics.JobTransitionsTotal.WithLabelValues(string(prev), string(StateFailed)).Inc()
	j.log.Warn("failed while %s: %v", prev, err)
}

func (j *Job) setProgress(fraction float64) {
	j.mu.Lock()
	if fraction > j.progress {
		j.progress = fraction
	}
	j.updatedAt = time.Now()
	j.mu.Unlock()
}

// StagedPath returns the job's staged source file, or "" when none exists.
func (j *Job) StagedPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stagedPath
}

func (j *Job) setStagedPath(path string) {
	j.mu.Lock()
	j.stagedPath = path
	j.mu.Unlock()
}

func (j *Job) setOutputName(name string) {
	j.mu.Lock()
	j.outputName = name
	j.mu.Unlock()
}

// Snapshot is a point-in-time view of a job, safe to serialize.
type Snapshot struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Progress  float64   `json:"progress"`
	SourceRef string    `json:"videoUrl"`
	Start     int       `json:"startTime"`
	Duration  int       `json:"duration"`
	Quality   string    `json:"quality"`
	Output    string    `json:"filename,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot returns the job's current view.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Snapshot{
		ID:        j.ID,
		State:     j.state,
		Progress:  j.progress,
		Output:    j.outputName,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
	if j.Request != nil {
		s.SourceRef = j.Request.SourceRef
		s.Start = j.Request.StartOffset
		s.Duration = j.Request.Duration
		s.Quality = string(j.Request.Quality)
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}
