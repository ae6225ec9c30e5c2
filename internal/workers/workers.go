package workers

import (
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
)

// EnvOverride is the environment variable that pins the worker count.
const EnvOverride = "PREVIEW_WORKERS"

// configured holds an override set from the config file; 0 means unset.
var configured atomic.Int64

// SetOverride pins the worker count from configuration. The environment
// variable still wins so operators can adjust a deployed config. n <= 0
// clears the override.
func SetOverride(n int) {
	if n < 0 {
		n = 0
	}
	configured.Store(int64(n))
}

// override returns the pinned worker count, if any.
func override() (int, bool) {
	if env := os.Getenv(EnvOverride); env != "" {
		if count, err := strconv.Atoi(env); err == nil && count > 0 {
			return count, true
		}
	}
	if n := configured.Load(); n > 0 {
		return int(n), true
	}
	return 0, false
}

// Count returns multiplier workers per available CPU, at least one and at
// most limit (0 is unlimited). The CPU count comes from GOMAXPROCS, which
// follows the container's CPU quota. PREVIEW_WORKERS or SetOverride pin
// the result.
func Count(multiplier float64, limit int) int {
	if count, ok := override(); ok {
		if limit > 0 && count > limit {
			return limit
		}
		return count
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForIO sizes a pool whose workers mostly wait on ffmpeg subprocesses:
// two per CPU.
func ForIO(limit int) int {
	return Count(2.0, limit)
}
