// Package metrics provides Prometheus instrumentation for reel-server.
//
// All metrics are prefixed with "reel_server_" and registered with the
// default registry through promauto, so importing the package is enough to
// expose them on the metrics endpoint.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: requests by method, path and status
//   - HTTPRequestDuration: request duration by method and path
//   - HTTPRequestsInFlight: requests currently being processed
//
// ## Job Metrics
//
//   - JobsTotal, JobDuration: jobs by terminal state
//   - JobFailuresTotal: failures by kind
//   - JobStageDuration: time spent acquiring, waiting for a slot, encoding, finalizing
//   - JobTransitionsTotal: state machine transitions
//   - JobsInFlight, AdmissionSlotsInUse: current load
//
// ## Source, Artifact and Reaper Metrics
//
//   - SourceRequestsTotal, SourceRequestDuration: yt-dlp lookups and downloads
//   - ArtifactsCreatedTotal, ArtifactDownloadsTotal, ArtifactBytesServedTotal
//   - ArtifactsStored, ArtifactsStoredBytes: clips awaiting download
//   - SweepRunsTotal, SweepRemovedTotal, SweepFreedBytesTotal, SweepDuration
//
// ## Engine and Filesystem Metrics
//
//   - EngineReady, EngineProbesTotal, EngineProcesses
//   - Filesystem*: per-volume operation timings and NFS retry counters,
//     recorded through the filesystem.Observer returned by NewFilesystemObserver
//
// # Collector
//
// Collector polls a StatsProvider on an interval and updates the gauges that
// describe current state rather than events.
package metrics
