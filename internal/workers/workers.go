package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv forces a fixed worker count regardless of CPU quota.
const OverrideEnv = "CLIP_WORKERS"

// Count returns multiplier × GOMAXPROCS workers, at least one and at most
// limit (0 means no cap). GOMAXPROCS follows the container CPU quota.
//
// A positive integer in CLIP_WORKERS replaces the computed value; the cap
// still applies.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			return capAt(n, limit)
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	return capAt(n, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU sizes CPU-bound work such as encoder invocations: one per CPU.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
