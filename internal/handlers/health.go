package handlers

import (
	"net/http"
	"runtime"
	"time"

	"reel-server/internal/startup"
)

const (
	statusOK       = "ok"
	statusError    = "error"
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// StatusResponse is the body of GET /status, polled by the web client.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// GetStatus reports whether the encoder and resolver can be used.
// GET /status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	res := h.reporter.Status(r.Context())

	resp := StatusResponse{Status: statusOK, Message: res.Message, Version: startup.Version}
	code := http.StatusOK
	if !res.Ready {
		resp.Status = statusError
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, resp)
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string          `json:"status"`
	Ready   bool            `json:"ready"`
	Checks  map[string]bool `json:"checks"`
	Version string          `json:"version"`
	Uptime  string          `json:"uptime"`

	ActiveJobs      int   `json:"activeJobs"`
	StoredArtifacts int   `json:"storedArtifacts"`
	StoredBytes     int64 `json:"storedBytes"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns a detailed health summary. The server is "degraded"
// while an external binary is missing but still answers 200.
// GET /healthz
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	res := h.reporter.Status(r.Context())
	count, bytes := h.store.Usage()

	resp := HealthResponse{
		Status:          statusHealthy,
		Ready:           res.Ready,
		Checks:          res.Checks,
		Version:         startup.Version,
		Uptime:          time.Since(h.startedAt).Round(time.Second).String(),
		ActiveJobs:      h.pipeline.Active(),
		StoredArtifacts: count,
		StoredBytes:     bytes,
		GoVersion:       runtime.Version(),
		NumCPU:          runtime.NumCPU(),
		NumGoroutine:    runtime.NumGoroutine(),
	}
	if !res.Ready {
		resp.Status = statusDegraded
	}
	writeJSON(w, http.StatusOK, resp)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
// GET /livez
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only while clips can be produced.
// GET /readyz
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.reporter.CheckReady(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "reason": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
