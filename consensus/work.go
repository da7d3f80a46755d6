package consensus

import (
	"encoding/binary"
	"math"
)

// WorkValue scores a nonce against a root: the 8-byte blake2b digest of
// nonce||root, read little-endian. A nonce passes a threshold T iff its
// value is >= T.
func WorkValue(root Root, nonce uint64) uint64 {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], nonce)
	return blake2b64(n[:], root[:])
}

// WorkThresholds holds the per-epoch difficulty floors of one network.
type WorkThresholds struct {
	Epoch1        uint64
	Epoch2        uint64
	Epoch2Receive uint64
}

var (
	LiveWorkThresholds = WorkThresholds{
		Epoch1:        0xffffffc000000000,
		Epoch2:        0xfffffff800000000,
		Epoch2Receive: 0xfffffe0000000000,
	}
	BetaWorkThresholds = WorkThresholds{
		Epoch1:        0xfffff00000000000,
		Epoch2:        0xfffff00000000000,
		Epoch2Receive: 0xffff000000000000,
	}
	DevWorkThresholds = WorkThresholds{
		Epoch1:        0xfe00000000000000,
		Epoch2:        0xffc0000000000000,
		Epoch2Receive: 0xf000000000000000,
	}
)

// Threshold selects the floor a committed block must meet, given its
// resolved details. Sends pay the upgraded rate from epoch 2 on; receives
// and epoch blocks get the discounted rate.
func (w WorkThresholds) Threshold(details BlockDetails) uint64 {
	if details.Epoch >= Epoch2 {
		if details.IsReceive || details.IsEpoch {
			return w.Epoch2Receive
		}
		return w.Epoch2
	}
	return w.Epoch1
}

// ThresholdEntry is the floor gating admission into the unchecked cache,
// where the block's epoch is not yet known: the lowest threshold the block
// could legitimately need.
func (w WorkThresholds) ThresholdEntry(t BlockType) uint64 {
	if t == BlockTypeState {
		return w.Epoch2Receive
	}
	return w.Epoch1
}

func (w WorkThresholds) ThresholdBase() uint64 { return w.Epoch1 }

// Validate reports whether the block's work meets the given floor.
func (w WorkThresholds) Validate(b *Block, threshold uint64) bool {
	return WorkValue(b.Root(), b.Work) >= threshold
}

// ToMultiplier converts a raw threshold into a human-readable difficulty
// multiplier relative to base.
func ToMultiplier(difficulty uint64, base uint64) float64 {
	return float64(-base) / float64(-difficulty)
}

// FromMultiplier is the inverse of ToMultiplier.
func FromMultiplier(multiplier float64, base uint64) uint64 {
	rev := uint64(math.Round(float64(-base) / multiplier))
	return -rev
}

// GenerateWork searches nonces until one meets the threshold. This is the
// CPU path used by tests and the dev network; real networks precompute work
// out of band.
func GenerateWork(root Root, threshold uint64) uint64 {
	for nonce := uint64(1); ; nonce++ {
		if WorkValue(root, nonce) >= threshold {
			return nonce
		}
	}
}
