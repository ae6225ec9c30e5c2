// Package handlers provides the HTTP handlers of the ops listener.
//
// It includes handlers for:
//   - Health and liveness probes
//   - Version and build information
//   - Prometheus metrics
//   - Render job submission, status and cancellation
//   - Download of finished job outputs
//   - GPU capabilities and cache usage
package handlers
