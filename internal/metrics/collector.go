package metrics

import (
	"sync"
	"time"

	"reel-server/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	StoredArtifacts   int
	StoredBytes       int64
	ActiveJobs        int
	EncodeProcesses   int
	ResolverProcesses int
}

// Collector periodically collects and updates gauge metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit.
// It must only be called after Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	ArtifactsStored.Set(float64(stats.StoredArtifacts))
	ArtifactsStoredBytes.Set(float64(stats.StoredBytes))
	JobsInFlight.Set(float64(stats.ActiveJobs))
	EngineProcesses.WithLabelValues("ffmpeg").Set(float64(stats.EncodeProcesses))
	EngineProcesses.WithLabelValues("yt-dlp").Set(float64(stats.ResolverProcesses))

	logging.Debug("Metrics collected: artifacts=%d (%d bytes), jobs=%d, ffmpeg=%d, yt-dlp=%d",
		stats.StoredArtifacts, stats.StoredBytes, stats.ActiveJobs, stats.EncodeProcesses, stats.ResolverProcesses)
}
