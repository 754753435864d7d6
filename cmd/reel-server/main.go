package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reel-server/internal/artifacts"
	"reel-server/internal/clip"
	"reel-server/internal/filesystem"
	"reel-server/internal/handlers"
	"reel-server/internal/logging"
	"reel-server/internal/metrics"
	"reel-server/internal/middleware"
	"reel-server/internal/pipeline"
	"reel-server/internal/source"
	"reel-server/internal/startup"
	"reel-server/internal/status"
	"reel-server/internal/streaming"
	"reel-server/internal/transcoder"
)

const (
	ffmpegHint      = "FFmpeg is not installed. Please install FFmpeg first."
	ytdlpHint       = "yt-dlp is not installed. Please install yt-dlp first."
	collectInterval = time.Minute
	shutdownTimeout = 30 * time.Second
)

// usageReporter and activeCounter are the slices of the store, pipeline and
// process wrappers the metrics collector reads.
type usageReporter interface {
	Usage() (count int, bytes int64)
}

type activeCounter interface {
	Active() int
}

// statsAdapter adapts the running components to metrics.StatsProvider.
type statsAdapter struct {
	store    usageReporter
	jobs     activeCounter
	encoder  activeCounter
	resolver activeCounter
}

// GetStats implements metrics.StatsProvider
func (a *statsAdapter) GetStats() metrics.Stats {
	count, bytes := a.store.Usage()
	return metrics.Stats{
		StoredArtifacts:   count,
		StoredBytes:       bytes,
		ActiveJobs:        a.jobs.Active(),
		EncodeProcesses:   a.encoder.Active(),
		ResolverProcesses: a.resolver.Active(),
	}
}

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Failed to load configuration: %v", err)
	}

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"output":  config.OutputDir,
		"staging": config.StagingDir,
	}))
	if config.MetricsEnabled {
		filesystem.SetObserver(metrics.NewFilesystemObserver())
		metrics.InitializeMetrics()
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	}

	trans := transcoder.New(config.FFmpegPath)
	ytdlp := source.NewYtDlp(config.YtDlpPath)

	initCtx, initCancel := context.WithTimeout(context.Background(), 15*time.Second)
	startup.LogEngineInit(initCtx, engineChecks(trans, ytdlp)...)
	initCancel()

	reporter := status.NewReporter(config.StatusCacheTTL, statusChecks(trans, ytdlp)...)

	store, err := artifacts.NewStore(config.OutputDir, config.CleanupInterval)
	if err != nil {
		startup.LogFatal("Failed to open artifact store: %v", err)
	}

	pipe, err := pipeline.New(pipeline.Config{
		StagingDir:       config.StagingDir,
		MaxVideoDuration: config.MaxVideoDuration,
		MaxConcurrent:    config.MaxConcurrentJobs,
		JobTimeout:       config.JobTimeout,
	}, ytdlp, trans, store)
	if err != nil {
		startup.LogFatal("Failed to create pipeline: %v", err)
	}

	reaper := artifacts.NewReaper(store, config.CleanupInterval, config.StagingDir).SkipInUse(pipe.HoldsStaged)
	startup.LogReaperInit(config.CleanupInterval, config.OutputDir, config.StagingDir)
	reaper.Start()

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(&statsAdapter{
			store:    store,
			jobs:     pipe,
			encoder:  trans,
			resolver: ytdlp,
		}, collectInterval)
		collector.Start()
	}

	h := handlers.New(handlers.Options{
		Pipeline:         pipe,
		Resolver:         ytdlp,
		Store:            store,
		Reporter:         reporter,
		Limits:           clip.Limits{MaxOutputDuration: config.MaxOutputDuration},
		MaxVideoDuration: config.MaxVideoDuration,
		Download:         streaming.DefaultConfig(),
	})

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// WriteTimeout stays 0: /process-video holds the connection for the
	// whole job and downloads enforce their own write deadlines.
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildHandler(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, reaper, collector, pipe, trans, ytdlp)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
}

func engineChecks(trans *transcoder.Transcoder, ytdlp *source.YtDlp) []startup.EngineCheck {
	return []startup.EngineCheck{
		{Name: "ffmpeg", Path: trans.Path(), Version: trans.Version},
		{Name: "yt-dlp", Path: ytdlp.BinaryPath(), Version: ytdlp.Version},
	}
}

func statusChecks(trans *transcoder.Transcoder, ytdlp *source.YtDlp) []status.Check {
	return []status.Check{
		{Name: "ffmpeg", Hint: ffmpegHint, Probe: trans.Probe},
		{Name: "yt-dlp", Hint: ytdlpHint, Probe: func(ctx context.Context) error {
			_, err := ytdlp.Version(ctx)
			return err
		}},
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	handlers.RegisterRoutes(r, h)
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	return r
}

// buildHandler wraps the router in the outer middleware chain. CORS sits
// outside the router so preflight requests are answered before mux rejects
// OPTIONS on method-restricted routes.
func buildHandler(router *mux.Router, config *startup.Config) http.Handler {
	var h http.Handler = router
	h = middleware.Compression(middleware.DefaultCompressionConfig())(h)

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.LogHealthChecks = config.LogHealthChecks
	h = middleware.Logger(logCfg)(h)
	h = middleware.RequestID(h)

	corsCfg := middleware.DefaultCORSConfig()
	if len(config.CORSOrigins) > 0 {
		corsCfg.AllowedOrigins = config.CORSOrigins
	}
	return middleware.CORS(corsCfg)(h)
}

func newMetricsServer(port string) *http.Server {
	mr := http.NewServeMux()
	mr.Handle("/metrics", promhttp.Handler())
	mr.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:         ":" + port,
		Handler:      mr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, reaper *artifacts.Reaper, collector *metrics.Collector, pipe *pipeline.Pipeline, trans *transcoder.Transcoder, ytdlp *source.YtDlp) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Stopping reaper")
	reaper.Stop()
	startup.LogShutdownStepComplete("Reaper stopped")

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Cancelling clip jobs")
	if err := pipe.Shutdown(ctx); err != nil {
		logging.Warn("Pipeline shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Clip jobs cancelled")
	}

	startup.LogShutdownStep("Killing child processes")
	trans.Cleanup()
	ytdlp.Close()
	startup.LogShutdownStepComplete("Child processes stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
