// Package startup loads configuration and prints the boot and shutdown
// narrative of the clip server.
//
// # Configuration
//
// [LoadConfig] reads .env (or .env.local) through godotenv, then the process
// environment, which always wins:
//
//   - PORT: HTTP port (default: 3000)
//   - CORS_ORIGIN: allowed origins, comma separated, "*" for any (default: *)
//   - MAX_VIDEO_DURATION: longest accepted source in seconds (default: 300)
//   - MAX_OUTPUT_DURATION: longest clip in seconds (default: 60)
//   - CLEANUP_INTERVAL: sweep interval and artifact max age; milliseconds or a
//     Go duration (default: 3600000)
//   - OUTPUT_DIR: finished clips (default: ./uploads)
//   - STAGING_DIR: downloaded sources (default: <OUTPUT_DIR>/.staging)
//   - MAX_CONCURRENT_JOBS: simultaneous encodes (default: CPUs, at most 4)
//   - JOB_TIMEOUT: wall-clock limit per job (default: 15m)
//   - FFMPEG_PATH, YTDLP_PATH: external binaries (default: from PATH)
//   - STATUS_CACHE_TTL: how long a readiness probe result is reused (default: 5s)
//   - METRICS_ENABLED, METRICS_PORT: Prometheus listener (default: true, 9090)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_HEALTH_CHECKS: access-log /status and probes (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// Both directories are created if missing and must be writable; LoadConfig
// fails otherwise.
//
// # Build Information
//
// Version, Commit and BuildTime are set with -ldflags and exposed through
// [GetBuildInfo].
//
// # Lifecycle Logging
//
//	cfg, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	startup.LogEngineInit(ctx, checks...)
//	startup.LogReaperInit(cfg.CleanupInterval, cfg.OutputDir, cfg.StagingDir)
//	startup.LogHTTPRoutes(router, cfg.LogHealthChecks)
//	startup.LogServerStarted(startup.ServerConfig{...})
//
//	startup.LogShutdownInitiated("SIGTERM")
//	startup.LogShutdownComplete()
package startup
