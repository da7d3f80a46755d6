package consensus

import "testing"

func TestBlockUniquerIdempotent(t *testing.T) {
	u := NewBlockUniquer(16)
	a := sampleBlocks()["state"]
	if u.Unique(u.Unique(a)) != u.Unique(a) {
		t.Fatalf("unique must be idempotent")
	}
}

func TestBlockUniquerCollapsesEqualContents(t *testing.T) {
	u := NewBlockUniquer(16)
	a := sampleBlocks()["send"]
	copyOfA := *a
	first := u.Unique(a)
	second := u.Unique(&copyOfA)
	if first != second {
		t.Fatalf("equal full hashes must share one instance")
	}
	// Different work means a different full hash and a distinct slot.
	other := *a
	other.Work++
	if u.Unique(&other) == first {
		t.Fatalf("distinct full hash collapsed")
	}
	if u.Size() != 2 {
		t.Fatalf("size = %d, want 2", u.Size())
	}
}

func TestVoteUniquer(t *testing.T) {
	u := NewVoteUniquer(16)
	a := sampleVote(2)
	dup := *a
	dup.Hashes = append([]Hash(nil), a.Hashes...)
	if u.Unique(a) != u.Unique(&dup) {
		t.Fatalf("equal votes must share one instance")
	}
	if u.Unique(nil) != nil {
		t.Fatalf("nil passes through")
	}
}
