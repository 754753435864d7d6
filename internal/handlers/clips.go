package handlers

import (
	"errors"
	"net/http"

	"reel-server/internal/clip"
	"reel-server/internal/logging"
	"reel-server/internal/pipeline"
	"reel-server/internal/source"
	"reel-server/internal/status"
)

// maxRequestBody caps POST /process-video bodies.
const maxRequestBody = 64 << 10

// VideoInfoResponse is the body of GET /video-info.
type VideoInfoResponse struct {
	Title      string             `json:"title"`
	Duration   int                `json:"duration"`
	Thumbnails []source.Thumbnail `json:"thumbnails"`
	Formats    []source.Rendition `json:"formats"`
}

// ProcessResponse is the body of a successful POST /process-video.
type ProcessResponse struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
}

// GetVideoInfo previews a source: title, duration, thumbnails and the
// renditions that carry both video and audio.
// GET /video-info?url=
func (h *Handlers) GetVideoInfo(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("url")
	if ref == "" {
		writeJSONError(w, "Video URL is required", http.StatusBadRequest)
		return
	}
	if !clip.IsSourceRef(ref) {
		writeJSONError(w, "Invalid video URL", http.StatusBadRequest)
		return
	}

	meta, err := h.resolver.FetchMetadata(r.Context(), ref)
	if err != nil {
		logging.Warn("Metadata lookup for %q failed: %v", ref, err)
		writeJSONError(w, "Failed to fetch video info", http.StatusInternalServerError)
		return
	}
	if err := source.CheckDuration(meta, h.maxVideoDuration); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	thumbs := append([]source.Thumbnail(nil), meta.Thumbnails...)
	source.SortThumbnails(thumbs)

	writeJSON(w, http.StatusOK, VideoInfoResponse{
		Title:      meta.Title,
		Duration:   meta.DurationSeconds,
		Thumbnails: thumbs,
		Formats:    meta.MuxedFormats(),
	})
}

// ProcessVideo validates a clip request and runs it to completion. Invalid
// requests are rejected before the engine or the resolver is touched.
// POST /process-video
func (h *Handlers) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	raw, err := clip.DecodeRaw(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := clip.Validate(raw, h.limits)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.reporter.CheckReady(r.Context()); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	art, err := h.pipeline.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEncode) {
			// The engine may have gone away since the last probe.
			h.reporter.Invalidate()
		}
		msg, code := describeJobError(err)
		writeJSONError(w, msg, code)
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{
		Success:     true,
		Filename:    art.Name,
		DownloadURL: "/download/" + art.Name,
	})
}

// describeJobError maps a pipeline failure to a message for the client and
// an HTTP status. Acquire and encode failures carry the tool's diagnostic.
func describeJobError(err error) (string, int) {
	var verr *clip.ValidationError
	var tooLong *source.TooLongError
	var unavailable *status.UnavailableError

	switch {
	case errors.As(err, &verr):
		return verr.Message, http.StatusBadRequest
	case errors.As(err, &tooLong):
		return tooLong.Error(), http.StatusBadRequest
	case errors.As(err, &unavailable):
		return unavailable.Message, http.StatusInternalServerError
	case errors.Is(err, pipeline.ErrClosed):
		return pipeline.ErrClosed.Error(), http.StatusServiceUnavailable
	case errors.Is(err, source.ErrSourceUnavailable):
		return "Failed to fetch video info", http.StatusInternalServerError
	case errors.Is(err, pipeline.ErrAcquire), errors.Is(err, pipeline.ErrEncode):
		return err.Error(), http.StatusInternalServerError
	default:
		return "Failed to process video", http.StatusInternalServerError
	}
}
