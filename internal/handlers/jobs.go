package handlers

import (
	"net/http"

	"reel-server/internal/logging"
	"reel-server/internal/pipeline"
)

// JobsResponse lists jobs still in progress.
type JobsResponse struct {
	Active int                 `json:"active"`
	Jobs   []pipeline.Snapshot `json:"jobs"`
}

// ListJobs returns snapshots of in-flight jobs, oldest first.
// GET /jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.pipeline.Jobs()
	writeJSON(w, http.StatusOK, JobsResponse{Active: len(jobs), Jobs: jobs})
}

// ClearArtifacts deletes every finished clip that is not being downloaded
// or written right now.
// POST /api/artifacts/clear
func (h *Handlers) ClearArtifacts(w http.ResponseWriter, _ *http.Request) {
	res, err := h.store.Clear()
	if err != nil {
		logging.Error("Failed to clear artifacts: %v", err)
		writeJSONError(w, "Failed to clear artifacts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"removed":    res.Removed,
		"freedBytes": res.FreedBytes,
	})
}
