// Package didinit wires the function-variable indirection in identity/did
// to its concrete ethereum and solana implementations. It exists only to
// break the import cycle those packages would otherwise form with
// identity/did (both import it for the Anchor/HandleBinding types), so it
// must be imported for side effects from the composition root before
// calling identity/did.New with a non-empty network.
package didinit

import (
	"github.com/rchat-io/rchat-node/identity/did"
	"github.com/rchat-io/rchat-node/identity/did/ethereum"
	"github.com/rchat-io/rchat-node/identity/did/solana"
)

func init() {
	did.SetAnchorConstructors(ethereum.New, solana.New)
}
