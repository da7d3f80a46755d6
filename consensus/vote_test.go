package consensus

import (
	"bytes"
	"math"
	"testing"
)

func sampleVote(hashCount int) *Vote {
	v := &Vote{TimestampRaw: 0x1230}
	v.Account[0] = 0xAA
	v.Signature[0] = 0xBB
	for i := 0; i < hashCount; i++ {
		var h Hash
		h[0] = byte(i + 1)
		v.Hashes = append(v.Hashes, h)
	}
	return v
}

func TestVoteWireRoundTrip(t *testing.T) {
	v := sampleVote(3)
	first, err := SerializeVote(v)
	if err != nil {
		t.Fatalf("SerializeVote: %v", err)
	}
	parsed, err := DeserializeVote(first)
	if err != nil {
		t.Fatalf("DeserializeVote: %v", err)
	}
	second, err := SerializeVote(parsed)
	if err != nil {
		t.Fatalf("SerializeVote: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("round trip bytes differ")
	}
}

func TestVoteHashCountBounds(t *testing.T) {
	if _, err := SerializeVote(sampleVote(0)); err == nil {
		t.Fatalf("zero hashes must be rejected")
	}
	if _, err := SerializeVote(sampleVote(VoteMaxHashes + 1)); err == nil {
		t.Fatalf("256 hashes must be rejected")
	}
	wire, err := SerializeVote(sampleVote(1))
	if err != nil {
		t.Fatalf("SerializeVote: %v", err)
	}
	// A ragged hash list is malformed.
	if _, err := DeserializeVote(wire[:len(wire)-5]); err == nil {
		t.Fatalf("partial hash must be rejected")
	}
}

func TestVoteTimestampAlgebra(t *testing.T) {
	v := &Vote{TimestampRaw: 0xABCD_0005}
	if v.TimestampMS() != 0xABCD_0000 {
		t.Fatalf("timestamp = %#x", v.TimestampMS())
	}
	if v.DurationMS() != 1<<9 {
		t.Fatalf("duration = %d", v.DurationMS())
	}
	if v.IsFinal() {
		t.Fatalf("not a final vote")
	}

	final := &Vote{TimestampRaw: math.MaxUint64}
	if !final.IsFinal() {
		t.Fatalf("all-ones timestamp marks a final vote")
	}
}

func TestVoteMessageCoversTimestamp(t *testing.T) {
	a := sampleVote(2)
	b := sampleVote(2)
	b.TimestampRaw++
	if bytes.Equal(a.MessageBytes(), b.MessageBytes()) {
		t.Fatalf("message must bind the raw timestamp")
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digest covers hashes only")
	}
}
