package crypto

import (
	"testing"

	"weft.dev/node/consensus"
)

func TestSignAndVerify(t *testing.T) {
	var seed [32]byte
	seed[0] = 0x01
	priv, account := KeyFromSeed(seed)

	p := Ed25519Provider{}
	msg := []byte("account chain head")
	sig := p.Sign(priv, msg)
	if !p.Verify(account, msg, sig) {
		t.Fatalf("signature must verify")
	}
	sig[0] ^= 0xFF
	if p.Verify(account, msg, sig) {
		t.Fatalf("corrupted signature must not verify")
	}
}

func TestBatchVerifyMixedResults(t *testing.T) {
	p := Ed25519Provider{}
	var messages [][]byte
	var pubs []consensus.Account
	var sigs []consensus.Signature
	for i := 0; i < 5; i++ {
		var seed [32]byte
		seed[0] = byte(i + 1)
		priv, account := KeyFromSeed(seed)
		msg := []byte{byte(i), 0xAB}
		sig := p.Sign(priv, msg)
		if i == 2 {
			sig[1] ^= 0x01
		}
		messages = append(messages, msg)
		pubs = append(pubs, account)
		sigs = append(sigs, sig)
	}
	results := make([]int, len(messages))
	p.BatchVerify(messages, pubs, sigs, results)
	for i, r := range results {
		want := 1
		if i == 2 {
			want = 0
		}
		if r != want {
			t.Fatalf("result[%d] = %d, want %d", i, r, want)
		}
	}
}
