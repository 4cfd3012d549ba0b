package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProgressReporterThrottles(t *testing.T) {
	var got []ProgressEvent
	r := NewProgressReporter(func(ev ProgressEvent) { got = append(got, ev) })
	r.interval = time.Hour // never expires within the test

	r.Report(ProgressEvent{FileHash: "h", BytesDone: 1}, false)
	r.Report(ProgressEvent{FileHash: "h", BytesDone: 2}, false)
	require.Len(t, got, 1)

	r.Report(ProgressEvent{FileHash: "h", BytesDone: 3}, true)
	require.Len(t, got, 2)
}

func TestProgressReporterForgetResetsThrottle(t *testing.T) {
	var got []ProgressEvent
	r := NewProgressReporter(func(ev ProgressEvent) { got = append(got, ev) })
	r.interval = time.Hour

	r.Report(ProgressEvent{FileHash: "h", BytesDone: 1}, false)
	r.Forget("h")
	r.Report(ProgressEvent{FileHash: "h", BytesDone: 2}, false)
	require.Len(t, got, 2)
}

func TestProgressReporterNilCallbackIsNoop(t *testing.T) {
	r := NewProgressReporter(nil)
	r.Report(ProgressEvent{FileHash: "h", BytesDone: 1}, true)
}
