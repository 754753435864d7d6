package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_server_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_server_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_jobs_total",
			Help: "Total number of clip jobs by terminal state",
		},
		[]string{"result"}, // "finalized", "failed"
	)

	JobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_job_failures_total",
			Help: "Total number of failed clip jobs by failure kind",
		},
		[]string{"kind"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_server_job_duration_seconds",
			Help:    "End-to-end clip job duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600, 900},
		},
		[]string{"result"},
	)

	JobStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_server_job_stage_duration_seconds",
			Help:    "Time spent in each clip job stage in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"}, // "acquire", "admission", "encode", "finalize"
	)

	JobTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_job_transitions_total",
			Help: "Total number of clip job state transitions",
		},
		[]string{"from", "to"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_server_jobs_in_flight",
			Help: "Number of clip jobs currently being processed",
		},
	)

	AdmissionSlotsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_server_admission_slots_in_use",
			Help: "Number of encode slots currently held",
		},
	)

	StagedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_server_staged_bytes_total",
			Help: "Total bytes of source media written to staging",
		},
	)
)

// Source resolver metrics
var (
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_source_requests_total",
			Help: "Total number of source resolver requests",
		},
		[]string{"operation", "status"}, // operation: "metadata", "stream"; status: "success", "error", "too_long"
	)

	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_server_source_request_duration_seconds",
			Help:    "Source resolver request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)
)

// Artifact store metrics
var (
	ArtifactsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_server_artifacts_created_total",
			Help: "Total number of clips registered in the artifact store",
		},
	)

	ArtifactDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_artifact_downloads_total",
			Help: "Total number of clip download attempts",
		},
		[]string{"result"}, // "complete", "incomplete", "not_found"
	)

	ArtifactBytesServedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_server_artifact_bytes_served_total",
			Help: "Total bytes of clips delivered to clients",
		},
	)

	ArtifactsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_server_artifacts_stored",
			Help: "Number of clips waiting to be downloaded",
		},
	)

	ArtifactsStoredBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_server_artifacts_stored_bytes",
			Help: "Total size of clips waiting to be downloaded",
		},
	)
)

// Reaper metrics
var (
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_sweep_runs_total",
			Help: "Total number of cleanup sweeps",
		},
		[]string{"status"},
	)

	SweepRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_server_sweep_removed_files_total",
			Help: "Total number of expired files removed by sweeps",
		},
	)

	SweepFreedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_server_sweep_freed_bytes_total",
			Help: "Total bytes freed by sweeps",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reel_server_sweep_duration_seconds",
			Help:    "Cleanup sweep duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	SweepLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_server_sweep_last_run_timestamp",
			Help: "Unix timestamp of the last cleanup sweep",
		},
	)
)

// Engine metrics
var (
	EngineReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_server_engine_ready",
			Help: "Whether the media engine and resolver passed the last readiness probe (1) or not (0)",
		},
	)

	EngineProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_engine_probes_total",
			Help: "Total number of engine readiness probes",
		},
		[]string{"status"},
	)

	EngineProcesses = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reel_server_engine_processes",
			Help: "Number of running external processes",
		},
		[]string{"binary"}, // "ffmpeg", "yt-dlp"
	)
)

// Filesystem operation metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_server_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retries after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_server_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors encountered",
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reel_server_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
