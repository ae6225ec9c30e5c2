package metrics

import "render-engine/internal/filesystem"

// FilesystemObserver publishes filesystem accesses of source media, temp
// intermediates and rendered outputs.
type FilesystemObserver struct{}

// NewFilesystemObserver returns the observer installed at startup with
// filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return FilesystemObserver{}
}

// ObserveAccess implements filesystem.Observer.
func (FilesystemObserver) ObserveAccess(a filesystem.Access) {
	FilesystemOperationDuration.WithLabelValues(a.Volume, a.Op).Observe(a.Took.Seconds())
	if a.Err != nil {
		FilesystemOperationErrors.WithLabelValues(a.Volume, a.Op).Inc()
	}
	if a.Stale == 0 {
		return
	}

	FilesystemStaleErrors.WithLabelValues(a.Op, a.Volume).Add(float64(a.Stale))
	if !a.Retried() {
		return
	}
	FilesystemRetryAttempts.WithLabelValues(a.Op, a.Volume).Add(float64(a.Tries - 1))
	FilesystemRetryDuration.WithLabelValues(a.Op, a.Volume).Observe(a.Took.Seconds())
	if a.Err == nil {
		FilesystemRetrySuccess.WithLabelValues(a.Op, a.Volume).Inc()
	} else {
		FilesystemRetryFailures.WithLabelValues(a.Op, a.Volume).Inc()
	}
}
