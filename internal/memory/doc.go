// Package memory controls Go runtime memory usage in containerized render
// hosts and provides backpressure for in-process image work.
//
// # Overview
//
// A render host spends most of its memory outside the Go heap: every encode,
// preview and waveform runs in an ffmpeg child process. The Go heap still
// holds decoded preview frames while storyboards are composed, and a large
// batch of frame requests can push the container into an OOM kill. This
// package:
//
//   - Configures GOMEMLIMIT from Kubernetes Downward API variables
//   - Reserves the remainder of the container limit for ffmpeg and libvips
//   - Pauses preview batches when heap usage crosses a critical mark
//
// # Configuration
//
// Call [ConfigureFromEnv] first in main, before significant allocations:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// # Environment Variables
//
//   - GOMEMLIMIT: Standard Go variable. Takes precedence over everything else.
//
//   - MEMORY_LIMIT: Container memory limit in bytes, usually injected via the
//     Downward API.
//
//   - MEMORY_RATIO: Fraction of MEMORY_LIMIT given to the Go heap. Default is
//     0.6 because concurrent encodes dominate memory on a render host.
//
//   - MEMORY_HIGH_WATER_MARK: Heap fraction at which [Monitor.ShouldThrottle]
//     reports pressure. Default 0.7.
//
//   - MEMORY_CRITICAL_WATER_MARK: Heap fraction at which preview work pauses.
//     Default 0.85. Read by [MonitorConfigFromEnv].
//
// # Kubernetes Configuration
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.5"  # hosts running several encodes at once
//
// # Backpressure
//
// The [Monitor] samples heap usage on an interval. Once usage reaches the
// critical mark it pauses, and stays paused until usage drops back below the
// high mark. Preview batch workers call [Monitor.Wait] before decoding each
// frame:
//
//	monitor := memory.NewMonitor(memory.MonitorConfigFromEnv())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.Wait(ctx); err != nil {
//	    return err // cancelled while paused
//	}
//
// A nil *Monitor never pauses, so components accept one optionally.
//
// GOMEMLIMIT is a soft limit and only governs the Go heap. It does not bound
// ffmpeg or libvips allocations, which is why the ratio is well below 1.
//
// # References
//
//   - GC Guide: https://go.dev/doc/gc-guide
//   - Kubernetes Downward API: https://kubernetes.io/docs/concepts/workloads/pods/downward-api/
package memory
