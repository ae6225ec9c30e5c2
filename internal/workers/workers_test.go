package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")
	SetOverride(0)

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"CPU-bound task (1.0x multiplier)", 1.0, 0, 1, availableCPU},
		{"I/O-bound task (2.0x multiplier)", 2.0, 0, 1, availableCPU * 2},
		{"Mixed task (1.5x multiplier)", 1.5, 0, 1, maxInt(1, int(float64(availableCPU)*1.5))},
		{"With limit lower than calculated", 2.0, 2, 1, 2},
		{"Tiny multiplier floors at one", 0.01, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	SetOverride(0)

	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int
	}{
		{"Valid override", "4", 0, 4},
		{"Override capped by limit", "10", 3, 3},
		{"Override one", "1", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.envValue)
			if got := Count(1.0, tt.limit); got != tt.expected {
				t.Errorf("Count(1.0, %d) with %s=%s = %d, want %d", tt.limit, EnvOverride, tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestCountIgnoresInvalidEnv(t *testing.T) {
	SetOverride(0)
	for _, v := range []string{"0", "-2", "many"} {
		t.Setenv(EnvOverride, v)
		if got := Count(1.0, 0); got != maxInt(1, runtime.GOMAXPROCS(0)) {
			t.Errorf("%s=%q should be ignored, got %d", EnvOverride, v, got)
		}
	}
}

func TestSetOverride(t *testing.T) {
	t.Setenv(EnvOverride, "")
	defer SetOverride(0)

	SetOverride(6)
	if got := ForIO(0); got != 6 {
		t.Errorf("ForIO with configured override = %d, want 6", got)
	}
	if got := ForIO(2); got != 2 {
		t.Errorf("limit should still cap configured override, got %d", got)
	}

	t.Setenv(EnvOverride, "3")
	if got := Count(1, 0); got != 3 {
		t.Errorf("environment should win over configured override, got %d", got)
	}

	t.Setenv(EnvOverride, "")
	SetOverride(-1)
	if got := Count(1, 0); got != maxInt(1, runtime.GOMAXPROCS(0)) {
		t.Errorf("negative override should clear, got %d", got)
	}
}

func TestForIO(t *testing.T) {
	t.Setenv(EnvOverride, "")
	SetOverride(0)

	if got, want := ForIO(0), 2*runtime.GOMAXPROCS(0); got != want {
		t.Errorf("ForIO(0) = %d, want %d", got, want)
	}
	if got := ForIO(1); got != 1 {
		t.Errorf("ForIO(1) = %d, want 1", got)
	}
}

func BenchmarkCount(b *testing.B) {
	b.Setenv(EnvOverride, "")
	for i := 0; i < b.N; i++ {
		_ = Count(1.5, 10)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
