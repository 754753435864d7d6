package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts every API endpoint on router.
func RegisterRoutes(router *mux.Router, h *Handlers) {
	router.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet).Name("status")
	router.HandleFunc("/video-info", h.GetVideoInfo).Methods(http.MethodGet).Name("video-info")
	router.HandleFunc("/process-video", h.ProcessVideo).Methods(http.MethodPost).Name("process-video")
	router.HandleFunc("/download/{filename}", h.Download).Methods(http.MethodGet).Name("download")
	router.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet).Name("jobs")
	router.HandleFunc("/api/artifacts/clear", h.ClearArtifacts).Methods(http.MethodPost).Name("artifacts-clear")

	router.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet).Name("healthz")
	router.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("livez")
	router.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet).Name("readyz")
	router.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")
}
