package metrics

// Label values pre-populated by InitializeMetrics.
var (
	JobResults    = []string{"finalized", "failed"}
	FailureKinds  = []string{"invalid_request", "source_unavailable", "source_too_long", "acquire", "encode", "cancelled", "other"}
	JobStages     = []string{"acquire", "admission", "encode", "finalize"}
	Volumes       = []string{"output", "staging", "unknown"}
	fsOperations  = []string{"stat", "open", "remove", "readdir"}
	sourceOps     = []string{"metadata", "stream"}
	sourceResults = []string{"success", "error", "too_long"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, r := range JobResults {
		JobsTotal.WithLabelValues(r)
		JobDuration.WithLabelValues(r)
	}
	for _, k := range FailureKinds {
		JobFailuresTotal.WithLabelValues(k)
	}
	for _, s := range JobStages {
		JobStageDuration.WithLabelValues(s)
	}

	for _, op := range sourceOps {
		SourceRequestDuration.WithLabelValues(op)
		for _, r := range sourceResults {
			SourceRequestsTotal.WithLabelValues(op, r)
		}
	}

	for _, r := range []string{"complete", "incomplete", "not_found"} {
		ArtifactDownloadsTotal.WithLabelValues(r)
	}

	for _, s := range []string{"success", "error"} {
		SweepRunsTotal.WithLabelValues(s)
		EngineProbesTotal.WithLabelValues(s)
	}

	for _, b := range []string{"ffmpeg", "yt-dlp"} {
		EngineProcesses.WithLabelValues(b)
	}

	for _, vol := range Volumes {
		for _, op := range fsOperations {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
