package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"reel-server/internal/handlers"
	"reel-server/internal/metrics"
	"reel-server/internal/middleware"
	"reel-server/internal/source"
	"reel-server/internal/startup"
	"reel-server/internal/transcoder"
)

type fakeUsage struct {
	count int
	bytes int64
}

func (f fakeUsage) Usage() (int, int64) { return f.count, f.bytes }

type fakeActive int

func (f fakeActive) Active() int { return int(f) }

func TestStatsAdapter(t *testing.T) {
	adapter := &statsAdapter{
		store:    fakeUsage{count: 3, bytes: 4096},
		jobs:     fakeActive(2),
		encoder:  fakeActive(1),
		resolver: fakeActive(4),
	}

	var _ metrics.StatsProvider = adapter

	got := adapter.GetStats()
	want := metrics.Stats{
		StoredArtifacts:   3,
		StoredBytes:       4096,
		ActiveJobs:        2,
		EncodeProcesses:   1,
		ResolverProcesses: 4,
	}
	if got != want {
		t.Errorf("GetStats() = %+v, want %+v", got, want)
	}
}

func TestSetupRouterRegistersRoutes(t *testing.T) {
	router := setupRouter(handlers.New(handlers.Options{}))

	routes, err := startup.GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	have := make(map[string]bool, len(routes))
	for _, r := range routes {
		have[r.Path] = true
	}
	for _, path := range []string{"/status", "/video-info", "/process-video", "/download/{filename}", "/jobs", "/livez"} {
		if !have[path] {
			t.Errorf("route %s not registered", path)
		}
	}
}

func TestBuildHandlerPreflight(t *testing.T) {
	router := setupRouter(handlers.New(handlers.Options{}))
	h := buildHandler(router, &startup.Config{CORSOrigins: []string{"https://clips.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/process-video", nil)
	req.Header.Set("Origin", "https://clips.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://clips.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestBuildHandlerSetsRequestID(t *testing.T) {
	router := setupRouter(handlers.New(handlers.Options{}))
	h := buildHandler(router, &startup.Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("response is missing a request id")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q for a request without Origin", got)
	}
}

func TestStatusChecksReportMissingBinaries(t *testing.T) {
	dir := t.TempDir()
	trans := transcoder.New(filepath.Join(dir, "ffmpeg"))
	ytdlp := source.NewYtDlp(filepath.Join(dir, "yt-dlp"))

	checks := statusChecks(trans, ytdlp)
	if len(checks) != 2 {
		t.Fatalf("len(checks) = %d, want 2", len(checks))
	}
	for _, c := range checks {
		if c.Hint == "" {
			t.Errorf("check %s has no hint", c.Name)
		}
		if err := c.Probe(context.Background()); err == nil {
			t.Errorf("check %s passed with a missing binary", c.Name)
		}
	}
}

func TestMetricsServerServesMetrics(t *testing.T) {
	srv := newMetricsServer("0")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
}
