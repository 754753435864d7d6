package artifacts

import (
	"sync"
	"time"

	"reel-server/internal/logging"
	"reel-server/internal/metrics"
)

// Reaper runs Store.Sweep on a fixed interval until stopped. It also sweeps
// any extra directories, such as staging, with the same retention age.
type Reaper struct {
	store    *Store
	interval time.Duration
	extra    []string
	inUse    func(path string) bool

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewReaper creates a Reaper sweeping every interval.
func NewReaper(store *Store, interval time.Duration, extraDirs ...string) *Reaper {
	if interval <= 0 {
		interval = store.MaxAge()
	}
	return &Reaper{
		store:    store,
		interval: interval,
		extra:    extraDirs,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SkipInUse makes sweeps of the extra directories keep every file for which
// inUse returns true, whatever its age. Call it before Start.
func (r *Reaper) SkipInUse(inUse func(path string) bool) *Reaper {
	r.inUse = inUse
	return r
}

// Start begins the sweep loop.
func (r *Reaper) Start() {
	go r.loop()
}

// Stop ends the sweep loop and waits for an in-progress sweep to finish.
// It must only be called after Start.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	<-r.done
}

func (r *Reaper) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.RunOnce(now)
		case <-r.stopChan:
			return
		}
	}
}

// RunOnce performs a single sweep pass at now.
func (r *Reaper) RunOnce(now time.Time) SweepResult {
	start := time.Now()

	total, err := r.store.Sweep(now)
	for _, dir := range r.extra {
		res, derr := sweepUntracked(dir, r.store.MaxAge(), now, r.inUse)
		total.Scanned += res.Scanned
		total.Removed += res.Removed
		total.FreedBytes += res.FreedBytes
		if derr != nil && err == nil {
			err = derr
		}
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	metrics.SweepLastRunTimestamp.Set(float64(now.Unix()))
	metrics.SweepRemovedTotal.Add(float64(total.Removed))
	metrics.SweepFreedBytesTotal.Add(float64(total.FreedBytes))

	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("error").Inc()
		logging.Error("Cleanup sweep failed: %v", err)
		return total
	}
	metrics.SweepRunsTotal.WithLabelValues("success").Inc()

	if total.Removed > 0 {
		logging.Info("Cleanup sweep removed %d of %d file(s), freed %d bytes", total.Removed, total.Scanned, total.FreedBytes)
	} else {
		logging.Debug("Cleanup sweep scanned %d file(s), nothing expired", total.Scanned)
	}
	return total
}
