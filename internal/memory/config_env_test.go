package memory

import (
	"runtime/debug"
	"testing"
	"time"
)

// restoreMemoryLimit undoes debug.SetMemoryLimit side effects of a test.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("Expected MemoryLimitBytes to be 0, got %d", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark != 0.7 || cfg.CriticalWaterMark != 0.85 {
		t.Errorf("unexpected water marks %v/%v", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("Expected CheckInterval to be 5s, got %v", cfg.CheckInterval)
	}
}

func TestConfigureFromEnv_NoEnvironmentVariables(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Expected Configured to be false when no env vars set")
	}
	if result.Source != "none" {
		t.Errorf("Expected Source to be 'none', got %q", result.Source)
	}
	if result.GoMemLimit != 0 || result.ContainerLimit != 0 {
		t.Errorf("unexpected limits: %+v", result)
	}
}

func TestConfigureFromEnv_MEMORYLIMIT(t *testing.T) {
	restoreMemoryLimit(t)

	tests := []struct {
		name      string
		limit     string
		ratio     string
		wantRatio float64
	}{
		{"default ratio", "1073741824", "", DefaultMemoryRatio},
		{"custom ratio", "1073741824", "0.5", 0.5},
		{"ratio out of range", "1073741824", "1.5", DefaultMemoryRatio},
		{"ratio unparsable", "1073741824", "half", DefaultMemoryRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			result := ConfigureFromEnv()

			if !result.Configured || result.Source != "MEMORY_LIMIT" {
				t.Fatalf("expected MEMORY_LIMIT configuration, got %+v", result)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", result.Ratio, tt.wantRatio)
			}
			want := int64(float64(1073741824) * tt.wantRatio)
			if result.GoMemLimit != want {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, want)
			}
		})
	}
}

func TestConfigureFromEnv_InvalidMEMORYLIMIT(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "lots")

	result := ConfigureFromEnv()
	if result.Configured || result.Source != "none" {
		t.Errorf("invalid MEMORY_LIMIT should not configure, got %+v", result)
	}
}

func TestConfigureFromEnv_GOMEMLIMITTakesPrecedence(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "500MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	debug.SetMemoryLimit(500 * 1024 * 1024)

	result := ConfigureFromEnv()
	if result.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want GOMEMLIMIT", result.Source)
	}
	if result.ContainerLimit != 0 {
		t.Error("MEMORY_LIMIT should be ignored when GOMEMLIMIT is set")
	}
}

func TestMonitorConfigFromEnv(t *testing.T) {
	tests := []struct {
		name         string
		high         string
		critical     string
		wantHigh     float64
		wantCritical float64
	}{
		{"defaults", "", "", 0.7, 0.85},
		{"custom", "0.5", "0.9", 0.5, 0.9},
		{"inverted falls back", "0.9", "0.5", 0.7, 0.85},
		{"out of range ignored", "2", "0.95", 0.7, 0.95},
		{"garbage ignored", "x", "y", 0.7, 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MEMORY_HIGH_WATER_MARK", tt.high)
			t.Setenv("MEMORY_CRITICAL_WATER_MARK", tt.critical)

			cfg := MonitorConfigFromEnv()
			if cfg.HighWaterMark != tt.wantHigh || cfg.CriticalWaterMark != tt.wantCritical {
				t.Errorf("got %v/%v, want %v/%v", cfg.HighWaterMark, cfg.CriticalWaterMark, tt.wantHigh, tt.wantCritical)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1073741824, "1.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
