// Package renderr defines the typed error taxonomy shared by every engine
// component.
//
// Each public operation returns an *Error whose Kind tells the caller how to
// react:
//   - Validation, MediaFile, TemplateNotFound, DependencyMissing, Internal: fatal
//   - Transcode, Hardware: retryable at the caller's discretion
//   - Timeout: advisory, stage budgets are reported and never enforced
//   - Cancelled: cooperative cancellation reached a check point
//
// Errors compare by Kind with errors.Is against the exported sentinels.
package renderr
