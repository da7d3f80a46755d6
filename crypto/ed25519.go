package crypto

import (
	"crypto/ed25519"

	"weft.dev/node/consensus"
)

// Ed25519Provider is the standard-library backend.
type Ed25519Provider struct{}

func (Ed25519Provider) Verify(pub consensus.Account, message []byte, sig consensus.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), message, sig[:])
}

func (Ed25519Provider) Sign(priv PrivateKey, message []byte) consensus.Signature {
	var out consensus.Signature
	copy(out[:], ed25519.Sign(ed25519.PrivateKey(priv), message))
	return out
}

func (p Ed25519Provider) BatchVerify(messages [][]byte, pubs []consensus.Account, sigs []consensus.Signature, results []int) {
	for i := range messages {
		if p.Verify(pubs[i], messages[i], sigs[i]) {
			results[i] = 1
		} else {
			results[i] = 0
		}
	}
}

// KeyFromSeed expands a 32-byte seed into a private key and its account.
func KeyFromSeed(seed [32]byte) (PrivateKey, consensus.Account) {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var account consensus.Account
	copy(account[:], priv.Public().(ed25519.PublicKey))
	return PrivateKey(priv), account
}
