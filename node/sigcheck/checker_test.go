package sigcheck

import (
	"sync"
	"testing"

	"weft.dev/node/consensus"
	"weft.dev/node/crypto"
)

func buildSet(t *testing.T, size int, badIndex int) *Set {
	t.Helper()
	p := crypto.Ed25519Provider{}
	set := &Set{
		Messages:      make([][]byte, size),
		PubKeys:       make([]consensus.Account, size),
		Signatures:    make([]consensus.Signature, size),
		Verifications: make([]int, size),
	}
	var seed [32]byte
	seed[31] = 0x5C
	priv, account := crypto.KeyFromSeed(seed)
	for i := 0; i < size; i++ {
		msg := []byte{byte(i), byte(i >> 8), 0x01}
		sig := p.Sign(priv, msg)
		if i == badIndex {
			sig[0] ^= 0xFF
		}
		set.Messages[i] = msg
		set.PubKeys[i] = account
		set.Signatures[i] = sig
	}
	return set
}

func TestVerifySmallSet(t *testing.T) {
	c := NewChecker(crypto.Ed25519Provider{}, 2)
	defer c.Stop()

	set := buildSet(t, 8, 3)
	if !c.Verify(set) {
		t.Fatalf("Verify returned stopped")
	}
	for i, v := range set.Verifications {
		want := 1
		if i == 3 {
			want = 0
		}
		if v != want {
			t.Fatalf("slot %d = %d, want %d", i, v, want)
		}
	}
}

func TestVerifySpansManyBatches(t *testing.T) {
	c := NewChecker(crypto.Ed25519Provider{}, 4)
	defer c.Stop()

	// Three full sub-batches plus a remainder.
	size := BatchSize*3 + 17
	set := buildSet(t, size, size-1)
	if !c.Verify(set) {
		t.Fatalf("Verify returned stopped")
	}
	for i, v := range set.Verifications {
		want := 1
		if i == size-1 {
			want = 0
		}
		if v != want {
			t.Fatalf("slot %d = %d, want %d", i, v, want)
		}
	}
	c.Flush()
}

func TestVerifyConcurrentCallers(t *testing.T) {
	c := NewChecker(crypto.Ed25519Provider{}, 2)
	defer c.Stop()

	var wg sync.WaitGroup
	for n := 0; n < 4; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set := buildSet(t, BatchSize+5, 0)
			if !c.Verify(set) {
				t.Errorf("Verify returned stopped")
				return
			}
			if set.Verifications[0] != 0 || set.Verifications[1] != 1 {
				t.Errorf("wrong verification results")
			}
		}()
	}
	wg.Wait()
	c.Flush()
}

func TestStoppedCheckerRejectsSets(t *testing.T) {
	c := NewChecker(crypto.Ed25519Provider{}, 1)
	c.Stop()
	if c.Verify(buildSet(t, 4, -1)) {
		t.Fatalf("stopped checker must reject new sets")
	}
	// Stop is idempotent.
	c.Stop()
}
