package did

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchat-io/rchat-node/config"
)

func TestHashHandleIsStableAndDistinct(t *testing.T) {
	a := HashHandle("alice")
	b := HashHandle("alice")
	c := HashHandle("bob")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewWithEmptyNetworkReturnsNilAnchor(t *testing.T) {
	anchor, err := New(&config.DIDConfig{})
	require.NoError(t, err)
	assert.Nil(t, anchor)

	anchor, err = New(nil)
	require.NoError(t, err)
	assert.Nil(t, anchor)
}

func TestNewWithUnknownNetworkErrors(t *testing.T) {
	_, err := New(&config.DIDConfig{Network: "bitcoin"})
	assert.ErrorIs(t, err, ErrAnchorNotConfigured)
}

func TestNewPanicsWhenConstructorsNotWired(t *testing.T) {
	// This test file never imports internal/didinit, so the package-level
	// constructor vars are nil until some other test in this binary sets
	// them; guard by saving/restoring whatever is currently wired.
	savedEth, savedSol := ethereumConstructor, solanaConstructor
	defer func() { ethereumConstructor, solanaConstructor = savedEth, savedSol }()

	ethereumConstructor = nil
	solanaConstructor = nil

	assert.Panics(t, func() { New(&config.DIDConfig{Network: "ethereum"}) })
	assert.Panics(t, func() { New(&config.DIDConfig{Network: "solana"}) })
}

func TestSetAnchorConstructorsWiresDispatch(t *testing.T) {
	savedEth, savedSol := ethereumConstructor, solanaConstructor
	defer func() { ethereumConstructor, solanaConstructor = savedEth, savedSol }()

	var calledWith *config.DIDConfig
	SetAnchorConstructors(
		func(cfg *config.DIDConfig) (Anchor, error) {
			calledWith = cfg
			return nil, nil
		},
		func(cfg *config.DIDConfig) (Anchor, error) {
			return nil, nil
		},
	)

	cfg := &config.DIDConfig{Network: "ethereum", NetworkRPC: "http://localhost:8545"}
	_, err := New(cfg)
	require.NoError(t, err)
	assert.Same(t, cfg, calledWith)
}
