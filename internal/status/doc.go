// Package status reports whether the server can accept clip jobs: the media
// engine and the source resolver binaries must both run. Probe results are
// cached briefly so health endpoints and job submission don't fork
// processes on every request.
package status
