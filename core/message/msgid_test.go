package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIDMonotonic(t *testing.T) {
	var prev ID
	for i := 0; i < 1000; i++ {
		id, err := NewID()
		require.NoError(t, err)
		if i > 0 {
			require.Greater(t, string(id[:6]), string(prev[:6]), "timestamp component must not decrease")
		}
		prev = id
	}
}

func TestIDStringLength(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)
	require.Len(t, id.String(), 26)
}

func TestIDStringDeterministic(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)
	require.Equal(t, id.String(), id.String())
}
