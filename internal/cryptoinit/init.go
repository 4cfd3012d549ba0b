// Package cryptoinit wires the function-variable indirection in the crypto
// package to its concrete implementations in crypto/keys and crypto/formats.
// It exists only to break the import cycle those packages would otherwise
// form with crypto (crypto/keys and crypto/formats both import crypto), so
// it must be imported for side effects from the composition root (main)
// before anything calls crypto.NewEd25519KeyPair, crypto.NewSecp256k1KeyPair,
// or crypto.Manager's export/import paths.
package cryptoinit

import (
	"github.com/rchat-io/rchat-node/crypto"
	"github.com/rchat-io/rchat-node/crypto/formats"
	"github.com/rchat-io/rchat-node/crypto/keys"
)

func init() {
	crypto.SetKeyGenerators(keys.GenerateEd25519KeyPair, keys.GenerateSecp256k1KeyPair)
	crypto.SetFormatConstructors(
		formats.NewJWKExporter,
		formats.NewPEMExporter,
		formats.NewJWKImporter,
		formats.NewPEMImporter,
	)
}
