package startup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"render-engine/internal/cache"
	"render-engine/internal/gpu"
	"render-engine/internal/logging"
	"render-engine/internal/memory"
	"render-engine/internal/renderr"
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

// Config holds all engine configuration. Values come from defaults, then
// an optional YAML file, then environment variables.
type Config struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	TempDir     string `yaml:"temp_dir"`
	// OutputDir confines outputs of jobs submitted over the ops listener.
	// Empty means <TempDir>/outputs.
	OutputDir string `yaml:"output_dir"`

	CacheMaxPreviewBytes    int64         `yaml:"cache_max_preview_bytes"`
	CacheMaxSegmentBytes    int64         `yaml:"cache_max_segment_bytes"`
	CacheMaxMetadataEntries int           `yaml:"cache_max_metadata_entries"`
	CacheMaxAge             time.Duration `yaml:"cache_max_age"`

	// GPUAccel is "auto" or "none".
	GPUAccel       string `yaml:"gpu_accel"`
	PreviewWorkers int    `yaml:"preview_workers"`

	// ListenAddr enables the ops listener when non-empty.
	ListenAddr      string `yaml:"listen_addr"`
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	LogHealthChecks bool   `yaml:"log_health_checks"`

	// File is the YAML file the values were read from, if any.
	File string `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	c := cache.DefaultConfig()
	return &Config{
		TempDir:                 filepath.Join(os.TempDir(), "render-engine"),
		CacheMaxPreviewBytes:    c.MaxPreviewBytes,
		CacheMaxSegmentBytes:    c.MaxSegmentBytes,
		CacheMaxMetadataEntries: c.MaxMetadataEntries,
		CacheMaxAge:             time.Hour,
		GPUAccel:                string(gpu.ModeAuto),
		MetricsEnabled:          true,
		LogHealthChecks:         false,
	}
}

// CacheConfig maps the cache settings onto cache.Config.
func (c *Config) CacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	if c.CacheMaxPreviewBytes > 0 {
		cfg.MaxPreviewBytes = c.CacheMaxPreviewBytes
	}
	if c.CacheMaxSegmentBytes > 0 {
		cfg.MaxSegmentBytes = c.CacheMaxSegmentBytes
	}
	if c.CacheMaxMetadataEntries > 0 {
		cfg.MaxMetadataEntries = c.CacheMaxMetadataEntries
	}
	return cfg
}

// GPUMode returns the parsed GPU_ACCEL setting.
func (c *Config) GPUMode() gpu.Mode {
	return gpu.ParseMode(strings.ToLower(c.GPUAccel))
}

// LoadConfig loads and validates configuration. The YAML file is taken
// from RENDER_CONFIG or the first standard location that exists.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config := DefaultConfig()

	path := getEnv("RENDER_CONFIG", "")
	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := loadConfigFile(path, config); err != nil {
			return nil, err
		}
		config.File = path
		logging.Info("  Config file:                %s", path)
	}

	applyEnv(config)

	logging.Info("  FFMPEG_PATH:                %s", orDefault(config.FFmpegPath, "ffmpeg (PATH)"))
	logging.Info("  FFPROBE_PATH:               %s", orDefault(config.FFprobePath, "ffprobe (PATH)"))
	logging.Info("  TEMP_DIR:                   %s", config.TempDir)
	logging.Info("  OUTPUT_DIR:                 %s", orDefault(config.OutputDir, "(TEMP_DIR/outputs)"))
	logging.Info("  CACHE_MAX_PREVIEW_BYTES:    %s", formatBytes(config.CacheMaxPreviewBytes))
	logging.Info("  CACHE_MAX_SEGMENT_BYTES:    %s", formatBytes(config.CacheMaxSegmentBytes))
	logging.Info("  CACHE_MAX_METADATA_ENTRIES: %d", config.CacheMaxMetadataEntries)
	logging.Info("  CACHE_MAX_AGE:              %v", config.CacheMaxAge)
	logging.Info("  GPU_ACCEL:                  %s", config.GPUMode())
	logging.Info("  PREVIEW_WORKERS:            %s", orDefault(strconv.Itoa(config.PreviewWorkers), "auto"))
	logging.Info("  LISTEN_ADDR:                %s", orDefault(config.ListenAddr, "(disabled)"))
	logging.Info("  METRICS_ENABLED:            %v", config.MetricsEnabled)
	logging.Info("  LOG_LEVEL:                  %s", logging.GetLevel())

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	tempDir, err := filepath.Abs(config.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve temp directory path: %w", err)
	}
	config.TempDir = tempDir
	logging.Info("  Temp directory (absolute): %s", tempDir)

	if err := ensureDirectory(tempDir, "temp"); err != nil {
		return nil, fmt.Errorf("temp directory error: %w", err)
	}
	logging.Debug("  Testing temp directory write access...")
	if err := testWriteAccess(tempDir); err != nil {
		return nil, fmt.Errorf("temp directory is not writable (required for rendering): %w", err)
	}
	logging.Info("  [OK] Temp directory is writable")

	if config.OutputDir == "" {
		config.OutputDir = filepath.Join(tempDir, "outputs")
	}
	outputDir, err := filepath.Abs(config.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	config.OutputDir = outputDir
	if err := ensureDirectory(outputDir, "output"); err != nil {
		return nil, fmt.Errorf("output directory error: %w", err)
	}
	logging.Info("  Output directory (absolute): %s", outputDir)

	return config, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	const op = "startup.LoadConfig"
	if c.TempDir == "" {
		return renderr.Validation(op, "TEMP_DIR must not be empty")
	}
	if c.CacheMaxPreviewBytes < 0 || c.CacheMaxSegmentBytes < 0 || c.CacheMaxMetadataEntries < 0 {
		return renderr.Validation(op, "cache limits must not be negative")
	}
	if c.CacheMaxAge < 0 {
		return renderr.Validation(op, "CACHE_MAX_AGE must not be negative")
	}
	if c.PreviewWorkers < 0 {
		return renderr.Validation(op, "PREVIEW_WORKERS must not be negative")
	}
	switch strings.ToLower(c.GPUAccel) {
	case "", "auto", "none", "off", "false", "0", "disabled":
	default:
		return renderr.Validation(op, "GPU_ACCEL must be auto or none, got %q", c.GPUAccel)
	}
	return nil
}

// FindConfigFile searches for a config file in standard locations.
// Returns empty string if not found.
func FindConfigFile() string {
	locations := []string{
		"./render-engine.yaml",
		"./render-engine.yml",
		filepath.Join(os.Getenv("HOME"), ".render-engine", "config.yaml"),
		"/etc/render-engine/config.yaml",
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadConfigFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return renderr.Validation("startup.LoadConfig", "failed to parse config file %s: %v", path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto c.
func applyEnv(c *Config) {
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)
	c.TempDir = getEnv("TEMP_DIR", c.TempDir)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)
	c.CacheMaxPreviewBytes = getEnvInt64("CACHE_MAX_PREVIEW_BYTES", c.CacheMaxPreviewBytes)
	c.CacheMaxSegmentBytes = getEnvInt64("CACHE_MAX_SEGMENT_BYTES", c.CacheMaxSegmentBytes)
	c.CacheMaxMetadataEntries = getEnvInt("CACHE_MAX_METADATA_ENTRIES", c.CacheMaxMetadataEntries)
	c.CacheMaxAge = getEnvDuration("CACHE_MAX_AGE", c.CacheMaxAge)
	c.GPUAccel = getEnv("GPU_ACCEL", c.GPUAccel)
	c.PreviewWorkers = getEnvInt("PREVIEW_WORKERS", c.PreviewWorkers)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(mc memory.ConfigResult) {
	if !mc.Configured {
		logging.Info("  Memory limit:    not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}
	switch mc.Source {
	case "MEMORY_LIMIT":
		logging.Info("  Memory limit:    %s container, %s Go heap (%.0f%%)",
			formatBytes(mc.ContainerLimit), formatBytes(mc.GoMemLimit), mc.Ratio*100)
	default:
		logging.Info("  Memory limit:    %s (%s)", formatBytes(mc.GoMemLimit), mc.Source)
	}
}

// ffmpegChecker is the part of *ffmpeg.Runner used at startup.
type ffmpegChecker interface {
	CheckAvailable() error
	Version(ctx context.Context) (string, error)
}

// LogFFmpegInit verifies ffmpeg and ffprobe are runnable. A missing
// executable is a DependencyMissing error.
func LogFFmpegInit(ctx context.Context, runner ffmpegChecker) error {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("FFMPEG")
	logging.Info("------------------------------------------------------------")

	if err := runner.CheckAvailable(); err != nil {
		logging.Error("  FFmpeg check failed: %v", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	version, err := runner.Version(ctx)
	if err != nil {
		logging.Warn("  Could not read FFmpeg version: %v", err)
	} else {
		logging.Debug("  FFmpeg version: %s", version)
	}
	logging.Info("  [OK] FFmpeg is available")
	return nil
}

// LogGPUInit logs hardware detection results.
func LogGPUInit(caps gpu.Capabilities, mode gpu.Mode) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("GPU DETECTION")
	logging.Info("------------------------------------------------------------")

	if mode == gpu.ModeNone {
		logging.Info("  Hardware encoding disabled (GPU_ACCEL=none)")
		return
	}
	if !caps.Available {
		if caps.Error != "" {
			logging.Warn("  Detection failed: %s", caps.Error)
		}
		logging.Info("  No hardware encoders, using software")
		return
	}
	for _, enc := range caps.Encoders {
		logging.Info("  [OK] %s (%s)", enc.Name, enc.Family)
	}
}

// LogCacheInit logs the cache limits in effect.
func LogCacheInit(cfg cache.Config, janitorInterval, maxAge time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CACHE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Metadata:  %d entries", cfg.MaxMetadataEntries)
	logging.Info("  Previews:  %d entries, %s", cfg.MaxPreviewEntries, formatBytes(cfg.MaxPreviewBytes))
	logging.Info("  Segments:  %d entries, %s", cfg.MaxSegmentEntries, formatBytes(cfg.MaxSegmentBytes))
	if maxAge > 0 {
		logging.Info("  Janitor:   every %v, max age %v", janitorInterval, maxAge)
	} else {
		logging.Info("  Janitor:   disabled")
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

// LogHTTPRoutes logs all registered HTTP routes at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OPS LISTENER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
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

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	ListenAddr      string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the ops listener endpoints.
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OPS LISTENER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Jobs:            http://%s/api/jobs", config.ListenAddr)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://%s/metrics", config.ListenAddr)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("------------------------------------------------------------")
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
    ____                 __                                 _
   / __ \___  ____  ____/ /__  _____   ___  ____  ____ _(_)___  ___
  / /_/ / _ \/ __ \/ __  / _ \/ ___/  / _ \/ __ \/ __ '/ / __ \/ _ \
 / _, _/  __/ / / / /_/ /  __/ /     /  __/ / / / /_/ / / / / /  __/
/_/ |_|\___/_/ /_/\__,_/\___/_/      \___/_/ /_/\__, /_/_/ /_/\___/
                                               /____/
------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
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
	if os.IsNotExist(err) {
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

	logging.Debug("    [OK] Directory exists")
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

func orDefault(v, def string) string {
	if v == "" || v == "0" {
		return def
	}
	return v
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
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
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
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
