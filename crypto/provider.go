package crypto

import "weft.dev/node/consensus"

// Provider is the narrow crypto interface the ledger core consumes.
// Implementations may swap in hardware or batch-optimized backends; the
// default is the standard-library ed25519 backend. Hashing is not part of
// the provider; it lives in package consensus.
type Provider interface {
	Verify(pub consensus.Account, message []byte, sig consensus.Signature) bool
	Sign(priv PrivateKey, message []byte) consensus.Signature
	// BatchVerify checks each (message, key, signature) triple and writes
	// 1 or 0 into the matching result slot. Slices must be equal length.
	BatchVerify(messages [][]byte, pubs []consensus.Account, sigs []consensus.Signature, results []int)
}

// PrivateKey is an ed25519 seed expanded to the standard 64-byte form.
type PrivateKey []byte
