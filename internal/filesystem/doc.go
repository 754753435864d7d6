/*
Package filesystem provides resilient filesystem operations for the clip
output and staging directories.

# Purpose

Output and staging directories are often bind mounts or NFS volumes. This
package wraps the operations the server performs on them (stat, open, remove,
readdir) with retry logic for ESTALE (stale file handle) errors and records
per-volume metrics through an Observer.

# Key Features

  - Automatic retry with exponential backoff for NFS ESTALE errors (errno 116)
  - Configurable retry attempts (default: 3) and backoff timings
  - Remove treats a missing file as success
  - Volume labels ("output", "staging") resolved by longest path prefix

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	removed, err := filesystem.Remove(path)

# Retry Behavior

Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only stale file handle errors trigger retries. All other errors fail
immediately.
*/
package filesystem
