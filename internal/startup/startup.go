package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"reel-server/internal/logging"
	"reel-server/internal/memory"
	"reel-server/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Defaults for the environment variables read by LoadConfig.
const (
	DefaultPort              = "3000"
	DefaultMetricsPort       = "9090"
	DefaultCORSOrigin        = "*"
	DefaultOutputDir         = "./uploads"
	DefaultMaxVideoDuration  = 300
	DefaultMaxOutputDuration = 60
	DefaultCleanupInterval   = time.Hour
	DefaultJobTimeout        = 15 * time.Minute
	DefaultStatusCacheTTL    = 5 * time.Second
	DefaultMaxJobs           = 4
	stagingSubdir            = ".staging"
)

// Config holds all application configuration
type Config struct {
	Port        string
	MetricsPort string
	CORSOrigins []string

	// Limits in whole seconds.
	MaxVideoDuration  int
	MaxOutputDuration int

	CleanupInterval   time.Duration
	JobTimeout        time.Duration
	StatusCacheTTL    time.Duration
	MaxConcurrentJobs int

	OutputDir  string
	StagingDir string

	FFmpegPath string
	YtDlpPath  string

	MetricsEnabled  bool
	LogHealthChecks bool

	Memory memory.ConfigResult
}

// LoadConfig reads .env (if present) and the process environment, prepares
// the output and staging directories and logs the result.
func LoadConfig() (*Config, error) {
	envFile := loadDotEnv()

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if envFile != "" {
		logging.Info("  Loaded environment from %s", envFile)
	}

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		MetricsPort:       getEnv("METRICS_PORT", DefaultMetricsPort),
		CORSOrigins:       splitList(getEnv("CORS_ORIGIN", DefaultCORSOrigin)),
		MaxVideoDuration:  getEnvInt("MAX_VIDEO_DURATION", DefaultMaxVideoDuration),
		MaxOutputDuration: getEnvInt("MAX_OUTPUT_DURATION", DefaultMaxOutputDuration),
		CleanupInterval:   getEnvInterval("CLEANUP_INTERVAL", DefaultCleanupInterval),
		JobTimeout:        getEnvDuration("JOB_TIMEOUT", DefaultJobTimeout),
		StatusCacheTTL:    getEnvDuration("STATUS_CACHE_TTL", DefaultStatusCacheTTL),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", workers.ForCPU(DefaultMaxJobs)),
		OutputDir:         getEnv("OUTPUT_DIR", DefaultOutputDir),
		StagingDir:        os.Getenv("STAGING_DIR"),
		FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
		YtDlpPath:         getEnv("YTDLP_PATH", "yt-dlp"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:   getEnvBool("LOG_HEALTH_CHECKS", true),
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = filepath.Join(cfg.OutputDir, stagingSubdir)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  CORS_ORIGIN:         %s", strings.Join(cfg.CORSOrigins, ","))
	logging.Info("  MAX_VIDEO_DURATION:  %ds", cfg.MaxVideoDuration)
	logging.Info("  MAX_OUTPUT_DURATION: %ds", cfg.MaxOutputDuration)
	logging.Info("  MAX_CONCURRENT_JOBS: %d", cfg.MaxConcurrentJobs)
	logging.Info("  JOB_TIMEOUT:         %v", cfg.JobTimeout)
	logging.Info("  CLEANUP_INTERVAL:    %v", cfg.CleanupInterval)
	logging.Info("  STATUS_CACHE_TTL:    %v", cfg.StatusCacheTTL)
	logging.Info("  FFMPEG_PATH:         %s", cfg.FFmpegPath)
	logging.Info("  YTDLP_PATH:          %s", cfg.YtDlpPath)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY")
	logging.Info("------------------------------------------------------------")
	cfg.Memory = memory.ConfigureFromEnv()
	LogMemoryConfig(cfg.Memory)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	if cfg.OutputDir, err = prepareDir(cfg.OutputDir, "output"); err != nil {
		return nil, err
	}
	if cfg.StagingDir, err = prepareDir(cfg.StagingDir, "staging"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.MaxOutputDuration < 1 {
		errs = append(errs, fmt.Errorf("MAX_OUTPUT_DURATION must be at least 1, got %d", c.MaxOutputDuration))
	}
	if c.MaxVideoDuration < 1 {
		errs = append(errs, fmt.Errorf("MAX_VIDEO_DURATION must be at least 1, got %d", c.MaxVideoDuration))
	}
	if c.MaxConcurrentJobs < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1, got %d", c.MaxConcurrentJobs))
	}
	if c.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("CLEANUP_INTERVAL must be positive, got %v", c.CleanupInterval))
	}
	if c.JobTimeout <= 0 {
		errs = append(errs, fmt.Errorf("JOB_TIMEOUT must be positive, got %v", c.JobTimeout))
	}
	return errors.Join(errs...)
}

// loadDotEnv loads the first of .env and .env.local that exists. Variables
// already set in the environment are never overridden.
func loadDotEnv() string {
	for _, name := range []string{".env", ".env.local"} {
		err := godotenv.Load(name)
		if err == nil {
			// LOG_LEVEL may only now be visible.
			if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
				logging.SetLevel(logging.ParseLevel(lvl))
			}
			return name
		}
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to load %s: %v", name, err)
		}
	}
	return ""
}

// prepareDir makes path absolute, creates it and proves it is writable.
func prepareDir(path, name string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s directory path: %w", name, err)
	}
	if err := ensureDirectory(abs, name); err != nil {
		return "", fmt.Errorf("%s directory error: %w", name, err)
	}
	if err := testWriteAccess(abs); err != nil {
		return "", fmt.Errorf("%s directory is not writable: %w", name, err)
	}
	logging.Info("  [OK] %s directory: %s", name, abs)
	return abs, nil
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(mc memory.ConfigResult) {
	switch {
	case !mc.Configured:
		logging.Info("  GOMEMLIMIT: not set (set MEMORY_LIMIT to enable)")
	case mc.ContainerLimit > 0:
		logging.Info("  GOMEMLIMIT: %s (%.0f%% of %s)",
			memory.FormatBytes(mc.GoMemLimit), mc.Ratio*100, memory.FormatBytes(mc.ContainerLimit))
	default:
		logging.Info("  GOMEMLIMIT: %s (from %s)", memory.FormatBytes(mc.GoMemLimit), mc.Source)
	}
}

// EngineCheck names an external binary and how to ask it for its version.
type EngineCheck struct {
	Name    string
	Path    string
	Version func(ctx context.Context) (string, error)
}

// LogEngineInit reports the external binaries the pipeline depends on. A
// missing binary is a warning: /status reports it and job submission is
// refused until it appears.
func LogEngineInit(ctx context.Context, checks ...EngineCheck) (ok bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENGINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	ok = true
	for _, c := range checks {
		v, err := c.Version(ctx)
		if err != nil {
			ok = false
			logging.Warn("  %s check failed (%s): %v", c.Name, c.Path, err)
			logging.Warn("  Clip processing will be refused until %s is installed", c.Name)
			continue
		}
		logging.Info("  [OK] %s: %s", c.Name, v)
	}
	return ok
}

// LogReaperInit logs the sweep configuration.
func LogReaperInit(interval time.Duration, dirs ...string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("REAPER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Sweep interval: %v", interval)
	for _, d := range dirs {
		logging.Info("  Watching:       %s", d)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes at debug level, grouped by their
// first path segment.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			g := getRouteGroup(route.Path)
			groups[g] = append(groups[g], route)
		}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, g := range keys {
			label := g
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, route := range groups[g] {
				logging.Debug("    %-7s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	first, rest, _ := strings.Cut(path, "/")
	if first == "api" && rest != "" {
		sub, _, _ := strings.Cut(rest, "/")
		return "api/" + sub
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ____            __   _____
   / __ \___  ___  / /  / ___/___  ______   _____  _____
  / /_/ / _ \/ _ \/ /   \__ \/ _ \/ ___/ | / / _ \/ ___/
 / _, _/  __/  __/ /   ___/ /  __/ /   | |/ /  __/ /
/_/ |_|\___/\___/_/   /____/\___/_/    |___/\___/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvInterval accepts a bare integer as milliseconds or a Go duration.
func getEnvInterval(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := parseInterval(value)
	if err != nil {
		logging.Warn("Invalid interval for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}
