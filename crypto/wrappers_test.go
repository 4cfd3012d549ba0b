package crypto

import (
	"crypto"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/rchat-io/rchat-node/internal/cryptoinit"
)

type mockWrapperKeyPair struct {
	id      string
	keyType KeyType
}

func (m *mockWrapperKeyPair) ID() string                             { return m.id }
func (m *mockWrapperKeyPair) Type() KeyType                          { return m.keyType }
func (m *mockWrapperKeyPair) PublicKey() crypto.PublicKey            { return nil }
func (m *mockWrapperKeyPair) PrivateKey() crypto.PrivateKey          { return nil }
func (m *mockWrapperKeyPair) Sign(message []byte) ([]byte, error)    { return nil, nil }
func (m *mockWrapperKeyPair) Verify(message, signature []byte) error { return nil }

type mockWrapperExporter struct{}

func (m *mockWrapperExporter) Export(kp KeyPair, format KeyFormat) ([]byte, error) {
	return []byte("exported"), nil
}
func (m *mockWrapperExporter) ExportPublic(kp KeyPair, format KeyFormat) ([]byte, error) {
	return []byte("exported-public"), nil
}

type mockWrapperImporter struct{}

func (m *mockWrapperImporter) Import(data []byte, format KeyFormat) (KeyPair, error) {
	return &mockWrapperKeyPair{id: "imported", keyType: KeyTypeEd25519}, nil
}
func (m *mockWrapperImporter) ImportPublic(data []byte, format KeyFormat) (crypto.PublicKey, error) {
	return nil, nil
}

// restoreRealGenerators captures the currently wired key generators and
// returns a func that puts them back.
func restoreRealGenerators() func() {
	origEd, origSecp := generateEd25519KeyPair, generateSecp256k1KeyPair
	return func() { SetKeyGenerators(origEd, origSecp) }
}

// restoreRealFormatConstructors captures the currently wired format
// constructors and returns a func that puts them back.
func restoreRealFormatConstructors() func() {
	origJWKExp, origPEMExp := newJWKExporter, newPEMExporter
	origJWKImp, origPEMImp := newJWKImporter, newPEMImporter
	return func() { SetFormatConstructors(origJWKExp, origPEMExp, origJWKImp, origPEMImp) }
}

func TestSetKeyGenerators(t *testing.T) {
	origEd, origSecp := generateEd25519KeyPair, generateSecp256k1KeyPair
	defer func() { generateEd25519KeyPair, generateSecp256k1KeyPair = origEd, origSecp }()

	edCalled, secpCalled := false, false
	SetKeyGenerators(
		func() (KeyPair, error) {
			edCalled = true
			return &mockWrapperKeyPair{id: "mock-ed25519", keyType: KeyTypeEd25519}, nil
		},
		func() (KeyPair, error) {
			secpCalled = true
			return &mockWrapperKeyPair{id: "mock-secp256k1", keyType: KeyTypeSecp256k1}, nil
		},
	)

	kp, err := NewEd25519KeyPair()
	assert.NoError(t, err)
	assert.True(t, edCalled)
	assert.Equal(t, "mock-ed25519", kp.ID())

	kp, err = NewSecp256k1KeyPair()
	assert.NoError(t, err)
	assert.True(t, secpCalled)
	assert.Equal(t, "mock-secp256k1", kp.ID())
}

func TestSetFormatConstructors(t *testing.T) {
	origJWKExp, origPEMExp := newJWKExporter, newPEMExporter
	origJWKImp, origPEMImp := newJWKImporter, newPEMImporter
	defer func() {
		newJWKExporter, newPEMExporter = origJWKExp, origPEMExp
		newJWKImporter, newPEMImporter = origJWKImp, origPEMImp
	}()

	jwkExpCalled, pemExpCalled, jwkImpCalled, pemImpCalled := false, false, false, false
	SetFormatConstructors(
		func() KeyExporter { jwkExpCalled = true; return &mockWrapperExporter{} },
		func() KeyExporter { pemExpCalled = true; return &mockWrapperExporter{} },
		func() KeyImporter { jwkImpCalled = true; return &mockWrapperImporter{} },
		func() KeyImporter { pemImpCalled = true; return &mockWrapperImporter{} },
	)

	assert.NotNil(t, NewJWKExporter())
	assert.True(t, jwkExpCalled)
	assert.NotNil(t, NewPEMExporter())
	assert.True(t, pemExpCalled)
	assert.NotNil(t, NewJWKImporter())
	assert.True(t, jwkImpCalled)
	assert.NotNil(t, NewPEMImporter())
	assert.True(t, pemImpCalled)
}

func TestNewEd25519KeyPair(t *testing.T) {
	kp, err := NewEd25519KeyPair()
	require.NoError(t, err)
	require.NotNil(t, kp)
	assert.Equal(t, KeyTypeEd25519, kp.Type())
}

func TestNewSecp256k1KeyPair(t *testing.T) {
	kp, err := NewSecp256k1KeyPair()
	require.NoError(t, err)
	require.NotNil(t, kp)
	assert.Equal(t, KeyTypeSecp256k1, kp.Type())
}

func TestGenerateEd25519KeyPairIsAnAliasForNew(t *testing.T) {
	kp, err := GenerateEd25519KeyPair()
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEd25519, kp.Type())
}

func TestGenerateSecp256k1KeyPairIsAnAliasForNew(t *testing.T) {
	kp, err := GenerateSecp256k1KeyPair()
	require.NoError(t, err)
	assert.Equal(t, KeyTypeSecp256k1, kp.Type())
}

func TestNewJWKExporter(t *testing.T) {
	assert.NotNil(t, NewJWKExporter())
}

func TestNewPEMExporter(t *testing.T) {
	assert.NotNil(t, NewPEMExporter())
}

func TestNewJWKImporter(t *testing.T) {
	assert.NotNil(t, NewJWKImporter())
}

func TestNewPEMImporter(t *testing.T) {
	assert.NotNil(t, NewPEMImporter())
}

func TestPanicOnUninitializedGenerators(t *testing.T) {
	defer restoreRealGenerators()()
	SetKeyGenerators(nil, nil)

	t.Run("Ed25519", func(t *testing.T) {
		assert.Panics(t, func() { _, _ = NewEd25519KeyPair() })
	})
	t.Run("Secp256k1", func(t *testing.T) {
		assert.Panics(t, func() { _, _ = NewSecp256k1KeyPair() })
	})
}

func TestPanicOnUninitializedFormatConstructors(t *testing.T) {
	defer restoreRealFormatConstructors()()
	SetFormatConstructors(nil, nil, nil, nil)

	t.Run("JWK exporter", func(t *testing.T) {
		assert.Panics(t, func() { _ = NewJWKExporter() })
	})
	t.Run("PEM exporter", func(t *testing.T) {
		assert.Panics(t, func() { _ = NewPEMExporter() })
	})
	t.Run("JWK importer", func(t *testing.T) {
		assert.Panics(t, func() { _ = NewJWKImporter() })
	})
	t.Run("PEM importer", func(t *testing.T) {
		assert.Panics(t, func() { _ = NewPEMImporter() })
	})
}

func TestWrappersErrorPropagation(t *testing.T) {
	origEd, origSecp := generateEd25519KeyPair, generateSecp256k1KeyPair
	defer func() { generateEd25519KeyPair, generateSecp256k1KeyPair = origEd, origSecp }()

	expected := errors.New("generator failure")
	SetKeyGenerators(
		func() (KeyPair, error) { return nil, expected },
		func() (KeyPair, error) { return nil, expected },
	)

	_, err := NewEd25519KeyPair()
	assert.Equal(t, expected, err)

	_, err = NewSecp256k1KeyPair()
	assert.Equal(t, expected, err)
}

func TestWrappersIntegrationWithMemoryStorage(t *testing.T) {
	edKP, err := GenerateEd25519KeyPair()
	require.NoError(t, err)
	secpKP, err := GenerateSecp256k1KeyPair()
	require.NoError(t, err)

	storage := NewMemoryKeyStorage()
	require.NoError(t, storage.Store(edKP.ID(), edKP))
	require.NoError(t, storage.Store(secpKP.ID(), secpKP))

	ids, err := storage.List()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
