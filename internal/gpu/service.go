package gpu

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"render-engine/internal/ffmpeg"
	"render-engine/internal/logging"
	"render-engine/internal/metrics"
	"render-engine/internal/renderr"
)

// Mode controls whether hardware encoders are considered.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeNone Mode = "none"
)

// ParseMode accepts auto, none and the usual boolean spellings.
func ParseMode(s string) Mode {
	switch s {
	case "none", "off", "false", "0", "disabled":
		return ModeNone
	default:
		return ModeAuto
	}
}

// Capabilities is the result of hardware detection.
type Capabilities struct {
	Available  bool      `json:"available"`
	Encoders   []Encoder `json:"encoders"`
	HWAccels   []string  `json:"hwaccels"`
	DetectedAt time.Time `json:"detectedAt"`
	Error      string    `json:"error,omitempty"`
}

// BenchmarkResult describes one synthetic encode.
type BenchmarkResult struct {
	Encoder      string        `json:"encoder"`
	FPS          float64       `json:"fps"`
	Frames       int64         `json:"frames"`
	Elapsed      time.Duration `json:"elapsed"`
	QualityScore float64       `json:"qualityScore"`
	PowerScore   float64       `json:"powerScore"`
}

const (
	benchmarkSource   = "testsrc2=size=1280x720:rate=30"
	benchmarkDuration = "5"
)

// Service detects hardware encoders and caches the first successful result.
// Detection failures degrade to "no hardware" for that call and are retried
// on the next one.
type Service struct {
	exec ffmpeg.Executor
	mode Mode

	mu         sync.RWMutex
	caps       *Capabilities
	benchmarks map[string]BenchmarkResult
}

// NewService creates a Service. Nothing runs until first use.
func NewService(exec ffmpeg.Executor, mode Mode) *Service {
	return &Service{
		exec:       exec,
		mode:       mode,
		benchmarks: make(map[string]BenchmarkResult),
	}
}

// DetectGPUs returns cached capabilities, running detection until it
// succeeds once.
func (s *Service) DetectGPUs(ctx context.Context) Capabilities {
	s.mu.RLock()
	if s.caps != nil {
		caps := *s.caps
		s.mu.RUnlock()
		return caps
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.caps != nil {
		return *s.caps
	}
	caps, ok := s.detect(ctx)
	if ok {
		s.caps = &caps
	}
	return caps
}

// GetCapabilities is DetectGPUs under the name the status surface uses.
func (s *Service) GetCapabilities(ctx context.Context) Capabilities {
	return s.DetectGPUs(ctx)
}

// Refresh discards cached capabilities and benchmarks and detects again.
func (s *Service) Refresh(ctx context.Context) Capabilities {
	s.mu.Lock()
	s.caps = nil
	s.benchmarks = make(map[string]BenchmarkResult)
	s.mu.Unlock()
	return s.DetectGPUs(ctx)
}

// GetRecommendedEncoder returns the preferred hardware encoder for codec,
// or nil for software encoding.
func (s *Service) GetRecommendedEncoder(ctx context.Context, codec string) *Encoder {
	caps := s.DetectGPUs(ctx)
	if !caps.Available {
		return nil
	}
	return Recommend(caps.Encoders, codec)
}

// detect runs detection. ok is false when the result must not be cached.
func (s *Service) detect(ctx context.Context) (caps Capabilities, ok bool) {
	caps = Capabilities{DetectedAt: time.Now()}

	if s.mode == ModeNone {
		caps.Error = "hardware acceleration disabled"
		metrics.GPUDetectionsTotal.WithLabelValues("disabled").Inc()
		metrics.GPUHardwareAvailable.Set(0)
		logging.Info("Hardware acceleration disabled, using software encoders")
		return caps, true
	}

	out, err := s.exec.Output(ctx, "-hide_banner", "-encoders")
	if err != nil {
		caps.Error = err.Error()
		metrics.GPUDetectionsTotal.WithLabelValues("error").Inc()
		metrics.GPUHardwareAvailable.Set(0)
		logging.Warn("Hardware encoder detection failed, using software encoders: %v", err)
		return caps, false
	}
	caps.Encoders = ParseEncoders(string(out))
	caps.Available = len(caps.Encoders) > 0

	if out, err := s.exec.Output(ctx, "-hide_banner", "-hwaccels"); err == nil {
		caps.HWAccels = ParseHWAccels(string(out))
	} else {
		logging.Debug("hwaccel listing failed: %v", err)
	}

	metrics.GPUDetectionsTotal.WithLabelValues("success").Inc()
	if caps.Available {
		metrics.GPUHardwareAvailable.Set(1)
	} else {
		metrics.GPUHardwareAvailable.Set(0)
	}
	for _, e := range caps.Encoders {
		metrics.GPUEncoderAvailable.WithLabelValues(e.Name, string(e.Family)).Set(1)
	}

	if best := Recommend(caps.Encoders, ""); best != nil {
		logging.Info("Hardware encoders detected: %d (preferred: %s)", len(caps.Encoders), best.Name)
	} else {
		logging.Info("No hardware encoders detected, using software encoders")
	}
	return caps, true
}

// Benchmark encodes a synthetic clip with encoder and reports throughput.
// Results are cached per encoder until Refresh.
func (s *Service) Benchmark(ctx context.Context, encoder string) (BenchmarkResult, error) {
	s.mu.RLock()
	if r, ok := s.benchmarks[encoder]; ok {
		s.mu.RUnlock()
		return r, nil
	}
	s.mu.RUnlock()

	_, family, ok := ClassifyEncoder(encoder)
	if !ok {
		return BenchmarkResult{}, renderr.Validation("gpu.Benchmark", "%q is not a hardware encoder", encoder)
	}

	cmd := BenchmarkCommand(encoder, family)
	var last ffmpeg.Progress
	start := time.Now()
	err := s.exec.Run(ctx, "benchmark-"+encoder, cmd, func(p ffmpeg.Progress) error {
		last = p
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		return BenchmarkResult{}, err
	}

	result := BenchmarkResult{
		Encoder:      encoder,
		Frames:       last.Frame,
		Elapsed:      elapsed,
		QualityScore: qualityPrior[family],
		PowerScore:   powerPrior[family],
	}
	if elapsed > 0 {
		result.FPS = float64(last.Frame) / elapsed.Seconds()
	}
	if result.FPS == 0 {
		result.FPS = last.FPS
	}

	metrics.GPUBenchmarkFPS.WithLabelValues(encoder).Set(result.FPS)
	logging.Info("Benchmark %s: %.1f fps (%d frames in %v)", encoder, result.FPS, result.Frames, elapsed.Round(time.Millisecond))

	s.mu.Lock()
	s.benchmarks[encoder] = result
	s.mu.Unlock()
	return result, nil
}

// BenchmarkCommand builds the synthetic encode used by Benchmark.
func BenchmarkCommand(encoder string, family Family) *ffmpeg.Command {
	args := []string{"-y", "-hide_banner", "-nostats", "-progress", "pipe:2"}
	if family == FamilyVAAPI {
		args = append(args, "-vaapi_device", DefaultVAAPIDevice)
	}
	args = append(args, "-f", "lavfi", "-i", benchmarkSource, "-t", benchmarkDuration)
	if family == FamilyVAAPI {
		args = append(args, "-vf", "format=nv12,hwupload")
	}
	args = append(args, "-c:v", encoder, "-f", "null", "-")

	d, _ := strconv.ParseFloat(benchmarkDuration, 64)
	return &ffmpeg.Command{
		Kind:         "benchmark",
		Args:         args,
		Output:       fmt.Sprintf("null:%s", encoder),
		VideoEncoder: encoder,
		Hardware:     true,
		Duration:     d,
	}
}
