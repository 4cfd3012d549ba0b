package file

import (
	"sync"
	"time"
)

// ProgressReporter throttles file-transfer-progress emission to
// ProgressInterval per file_hash, while always letting a forced (final or
// first) report through immediately.
type ProgressReporter struct {
	mu       sync.Mutex
	last     map[string]time.Time
	interval time.Duration
	onEvent  func(ProgressEvent)
}

// NewProgressReporter builds a reporter that calls onEvent for each report
// that survives throttling. onEvent may be nil.
func NewProgressReporter(onEvent func(ProgressEvent)) *ProgressReporter {
	return &ProgressReporter{
		last:     make(map[string]time.Time),
		interval: ProgressInterval,
		onEvent:  onEvent,
	}
}

// Report emits ev unless one was already emitted for the same FileHash
// within the throttle interval. force bypasses throttling (used for the
// first and final reports of a transfer, which callers always want seen).
func (r *ProgressReporter) Report(ev ProgressEvent, force bool) {
	if r.onEvent == nil {
		return
	}

	r.mu.Lock()
	now := time.Now()
	if !force {
		if last, ok := r.last[ev.FileHash]; ok && now.Sub(last) < r.interval {
			r.mu.Unlock()
			return
		}
	}
	r.last[ev.FileHash] = now
	r.mu.Unlock()

	r.onEvent(ev)
}

// Forget drops throttle state for a finished transfer.
func (r *ProgressReporter) Forget(fileHash string) {
	r.mu.Lock()
	delete(r.last, fileHash)
	r.mu.Unlock()
}
