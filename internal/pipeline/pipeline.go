package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"reel-server/internal/artifacts"
	"reel-server/internal/clip"
	"reel-server/internal/filesystem"
	"reel-server/internal/metrics"
	"reel-server/internal/source"
	"reel-server/internal/transcoder"
)

var (
	// ErrAcquire indicates the source could not be staged.
	ErrAcquire = errors.New("failed to download source video")

	// ErrEncode indicates the clip could not be produced.
	ErrEncode = errors.New("failed to process video")

	// ErrClosed is returned by Run after Shutdown.
	ErrClosed = errors.New("pipeline is shutting down")
)

// DefaultJobTimeout bounds a job from submission to finalization.
const DefaultJobTimeout = 15 * time.Minute

// Engine renders a staged source into a clip.
type Engine interface {
	Transcode(ctx context.Context, spec transcoder.Spec, onProgress transcoder.ProgressFunc) error
}

// Config holds pipeline settings.
type Config struct {
	StagingDir       string
	MaxVideoDuration int
	MaxConcurrent    int
	JobTimeout       time.Duration
}

// Pipeline runs clip jobs.
type Pipeline struct {
	cfg      Config
	resolver source.Resolver
	engine   Engine
	store    *artifacts.Store
	slots    *semaphore.Weighted
	jobs     *tracker

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add in Run against Shutdown's Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Pipeline and its staging directory.
func New(cfg Config, resolver source.Resolver, engine Engine, store *artifacts.Store) (*Pipeline, error) {
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.MaxVideoDuration <= 0 {
		cfg.MaxVideoDuration = source.DefaultMaxVideoDuration
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory %s: %w", cfg.StagingDir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cfg:      cfg,
		resolver: resolver,
		engine:   engine,
		store:    store,
		slots:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		jobs:     newTracker(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Jobs returns snapshots of in-flight jobs, oldest first.
func (p *Pipeline) Jobs() []Snapshot {
	return p.jobs.snapshots()
}

// Active returns the number of in-flight jobs.
func (p *Pipeline) Active() int {
	return p.jobs.len()
}

// HoldsStaged reports whether an in-flight job owns the staged file at path.
// The staging sweep uses it so a queued job never loses its input.
func (p *Pipeline) HoldsStaged(path string) bool {
	return p.jobs.holdsStaged(path)
}

// Shutdown cancels running jobs and waits for them to unwind or for ctx to
// expire.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enter registers a running job unless the pipeline is shutting down.
func (p *Pipeline) enter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

// jobContext detaches from the caller, applies the job timeout and follows
// pipeline shutdown.
func (p *Pipeline) jobContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.cfg.JobTimeout)
	stop := context.AfterFunc(p.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Run processes req to completion and returns the registered clip. The
// returned error wraps one of clip.ErrInvalidRequest,
// source.ErrSourceUnavailable, source.ErrSourceTooLong, ErrAcquire or
// ErrEncode.
func (p *Pipeline) Run(ctx context.Context, req *clip.Request) (*artifacts.Artifact, error) {
	if !p.enter() {
		return nil, ErrClosed
	}
	defer p.wg.Done()

	job := newJob(req)
	p.jobs.add(job)
	defer p.jobs.remove(job)

	jobCtx, cancel := p.jobContext(ctx)
	defer cancel()

	job.log.Info("accepted %s [%d+%ds] quality=%s effects=%v", req.SourceRef, req.StartOffset, req.Duration, req.Quality, req.Effects)
	start := time.Now()

	art, err := p.run(jobCtx, job)
	elapsed := time.Since(start)
	if err != nil {
		job.fail(err)
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		metrics.JobFailuresTotal.WithLabelValues(failureKind(err)).Inc()
		metrics.JobDuration.WithLabelValues("failed").Observe(elapsed.Seconds())
		return nil, err
	}

	metrics.JobsTotal.WithLabelValues("finalized").Inc()
	metrics.JobDuration.WithLabelValues("finalized").Observe(elapsed.Seconds())
	job.log.Info("finalized %s (%d bytes) in %v", art.Name, art.Size, elapsed.Round(time.Millisecond))
	return art, nil
}

func (p *Pipeline) run(ctx context.Context, job *Job) (*artifacts.Artifact, error) {
	req := job.Request

	if _, err := job.transition(StateAcquiring); err != nil {
		return nil, err
	}
	meta, err := p.checkSource(ctx, job)
	if err != nil {
		return nil, err
	}

	staged, err := p.stage(ctx, job)
	if err != nil {
		return nil, err
	}
	defer removeStaged(job, staged)

	spent, err := job.transition(StateStaged)
	if err != nil {
		return nil, err
	}
	metrics.JobStageDuration.WithLabelValues("acquire").Observe(spent.Seconds())

	waitStart := time.Now()
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for an encode slot: %w", ErrEncode, err)
	}
	defer func() {
		p.slots.Release(1)
		metrics.AdmissionSlotsInUse.Dec()
	}()
	metrics.AdmissionSlotsInUse.Inc()
	metrics.JobStageDuration.WithLabelValues("admission").Observe(time.Since(waitStart).Seconds())

	if _, err := job.transition(StateTransforming); err != nil {
		return nil, err
	}
	res, err := p.store.Reserve()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	job.setOutputName(res.Name)
	spec := transcoder.SpecFor(req, staged, res.Path).Within(meta.DurationSeconds)
	if spec.Duration < req.Duration {
		job.log.Info("source ends at %ds, clip shortened to %ds", meta.DurationSeconds, spec.Duration)
	}

	if _, err := job.transition(StateEncoding); err != nil {
		p.store.Discard(res)
		return nil, err
	}
	job.log.Debug("encoding %s with %s", res.Name, req.Preset)
	if err := p.engine.Transcode(ctx, spec, job.setProgress); err != nil {
		p.store.Discard(res)
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	finalizeStart := time.Now()
	art, err := p.store.Register(res)
	if err != nil {
		p.store.Discard(res)
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	spent, err = job.transition(StateFinalized)
	if err != nil {
		return nil, err
	}
	metrics.JobStageDuration.WithLabelValues("encode").Observe(spent.Seconds())
	metrics.JobStageDuration.WithLabelValues("finalize").Observe(time.Since(finalizeStart).Seconds())
	job.setProgress(1)
	return art, nil
}

// checkSource fetches metadata and rejects sources that are too long or
// shorter than the requested start offset.
func (p *Pipeline) checkSource(ctx context.Context, job *Job) (*source.Metadata, error) {
	req := job.Request

	start := time.Now()
	meta, err := p.resolver.FetchMetadata(ctx, req.SourceRef)
	metrics.SourceRequestDuration.WithLabelValues("metadata").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues("metadata", "error").Inc()
		return nil, err
	}

	if err := source.CheckDuration(meta, p.cfg.MaxVideoDuration); err != nil {
		metrics.SourceRequestsTotal.WithLabelValues("metadata", "too_long").Inc()
		return nil, err
	}
	metrics.SourceRequestsTotal.WithLabelValues("metadata", "success").Inc()

	if meta.DurationSeconds > 0 && req.StartOffset >= meta.DurationSeconds {
		return nil, &clip.ValidationError{
			Field:   "startTime",
			Message: fmt.Sprintf("Start time must be less than the video duration (%d seconds)", meta.DurationSeconds),
		}
	}

	job.log.Debug("source %q is %ds", meta.Title, meta.DurationSeconds)
	return meta, nil
}

// stage copies the source stream into a private file in the staging
// directory. On failure nothing is left behind.
func (p *Pipeline) stage(ctx context.Context, job *Job) (string, error) {
	f, err := os.CreateTemp(p.cfg.StagingDir, "stage-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	path := f.Name()
	job.setStagedPath(path)

	start := time.Now()
	n, err := p.copySource(ctx, job.Request.SourceRef, f)
	metrics.SourceRequestDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues("stream", "error").Inc()
		removeStaged(job, path)
		return "", fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	if n == 0 {
		metrics.SourceRequestsTotal.WithLabelValues("stream", "error").Inc()
		removeStaged(job, path)
		return "", fmt.Errorf("%w: source stream was empty", ErrAcquire)
	}

	metrics.SourceRequestsTotal.WithLabelValues("stream", "success").Inc()
	metrics.StagedBytesTotal.Add(float64(n))
	job.log.Debug("staged %d bytes", n)
	return path, nil
}

func (p *Pipeline) copySource(ctx context.Context, ref string, w io.Writer) (int64, error) {
	rc, err := p.resolver.Open(ctx, ref, source.Selector{})
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return n, err
}

func removeStaged(job *Job, path string) {
	if _, err := filesystem.Remove(path); err != nil {
		job.log.Warn("failed to remove staged file %s: %v", path, err)
		return
	}
	job.setStagedPath("")
}

// failureKind labels an error for metrics.
func failureKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, clip.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, source.ErrSourceTooLong):
		return "source_too_long"
	case errors.Is(err, ErrAcquire):
		return "acquire"
	case errors.Is(err, source.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrEncode):
		return "encode"
	default:
		return "other"
	}
}
