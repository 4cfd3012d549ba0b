package dedupe

import (
	"testing"
	"time"

	"github.com/rchat-io/rchat-node/core/message"
	"github.com/stretchr/testify/require"
)

func header(seq uint64, nonce string) message.ControlHeader {
	return message.MessageControlHeader{Sequence: seq, Nonce: nonce, Timestamp: time.Now()}
}

func TestDetectorMarksAndDetectsDuplicate(t *testing.T) {
	d := NewDetector(time.Second, time.Second)
	h := header(1, "n1")

	require.False(t, d.IsDuplicate(h))
	d.MarkPacketSeen(h)
	require.True(t, d.IsDuplicate(h))
	require.Equal(t, 1, d.GetSeenPacketCount())
}

func TestDetectorExpiresOnCheck(t *testing.T) {
	d := NewDetector(20*time.Millisecond, time.Hour)
	h := header(2, "n2")
	d.MarkPacketSeen(h)

	time.Sleep(30 * time.Millisecond)
	require.False(t, d.IsDuplicate(h))
	require.Equal(t, 0, d.GetSeenPacketCount())
}
