// Package handlers provides the HTTP handlers of the clip server.
//
// It includes handlers for:
//   - Engine status and source metadata previews
//   - Clip job submission and one-time downloads
//   - In-flight job listing and artifact cleanup
//   - Health, liveness, readiness and version
package handlers
