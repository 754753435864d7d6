package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"reel-server/internal/filesystem"
	"reel-server/internal/logging"
	"reel-server/internal/metrics"
	"reel-server/internal/streaming"
)

// Download serves a finished clip exactly once. The file is deleted after
// a complete transfer; an interrupted one leaves it for the sweep.
// GET /download/{filename}
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	a, err := h.store.Claim(name)
	if err != nil {
		metrics.ArtifactDownloadsTotal.WithLabelValues("not_found").Inc()
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	f, err := filesystem.OpenWithRetry(a.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Warn("Claimed clip %s could not be opened: %v", a.Name, err)
		metrics.ArtifactDownloadsTotal.WithLabelValues("not_found").Inc()
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	cfg := h.download
	var counted int64
	cfg.OnProgress = func(written int64) {
		metrics.ArtifactBytesServedTotal.Add(float64(written - counted))
		counted = written
	}
	res, err := streaming.Send(r.Context(), w, f, a.Size, cfg)

	delivered := err == nil
	h.store.Release(a, delivered)
	if delivered {
		metrics.ArtifactDownloadsTotal.WithLabelValues("complete").Inc()
		logging.Info("Delivered %s (%d bytes) in %v", a.Name, res.Bytes, res.Duration)
		return
	}

	metrics.ArtifactDownloadsTotal.WithLabelValues("incomplete").Inc()
	if errors.Is(err, streaming.ErrClientGone) {
		logging.Info("Client left during download of %s after %d bytes", a.Name, res.Bytes)
		return
	}
	logging.Warn("Download of %s failed after %d bytes: %v", a.Name, res.Bytes, err)
}
