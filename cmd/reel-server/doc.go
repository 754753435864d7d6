// Package main provides the entry point for reel-server.
//
// reel-server cuts short MP4 clips out of remote videos. A client submits a
// source reference (a URL or a bare video ID) with a start offset, duration,
// quality and optional crop; the server fetches the source with yt-dlp,
// re-encodes the requested window with FFmpeg and hands back the name of a
// single-use artifact that can be downloaded exactly once.
//
// # Application Lifecycle
//
//  1. Configuration: reads .env and the environment, sets GOMEMLIMIT and
//     prepares the output and staging directories
//  2. Engine checks: logs the ffmpeg and yt-dlp versions; a missing binary
//     is a warning, not a fatal error
//  3. Components: artifact store, clip pipeline, status reporter, reaper
//     and metrics collector
//  4. HTTP server: routes, middleware chain and the optional metrics server
//  5. Graceful shutdown on SIGINT/SIGTERM: background loops stop, running
//     jobs are cancelled, child processes are killed and the servers drain
//
// # Background Services
//
//   - Reaper: deletes artifacts and staged sources older than the cleanup
//     interval
//   - Metrics Collector: refreshes store and job gauges every minute
//
// # Configuration
//
// See package startup for the full list of environment variables.
package main
