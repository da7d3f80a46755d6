package store

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"weft.dev/node/consensus"
)

// Verification records the signature state of an unchecked block. The block
// processor stores VerificationUnknown, and a replay checks the signature
// again.
type Verification uint8

const (
	VerificationUnknown Verification = iota
	VerificationValid
	VerificationValidEpoch
)

// UncheckedKey parks a block under the dependency hash it is waiting for.
type UncheckedKey struct {
	Dependency consensus.Hash
	BlockHash  consensus.Hash
}

type UncheckedInfo struct {
	Block      *consensus.Block
	Account    consensus.Account
	ModifiedMS uint64
	Verified   Verification
}

func (k UncheckedKey) bytes() []byte {
	out := make([]byte, 0, 64)
	out = append(out, k.Dependency[:]...)
	out = append(out, k.BlockHash[:]...)
	return out
}

func encodeUncheckedInfo(info UncheckedInfo) []byte {
	out := make([]byte, 0, 8+1+32+256)
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], info.ModifiedMS)
	out = append(out, scratch[:]...)
	out = append(out, byte(info.Verified))
	out = append(out, info.Account[:]...)
	out = append(out, consensus.SerializeBlock(info.Block)...)
	return out
}

func decodeUncheckedInfo(v []byte) (UncheckedInfo, error) {
	var info UncheckedInfo
	if len(v) < 8+1+32 {
		return info, errors.Errorf("unchecked info: truncated (%d bytes)", len(v))
	}
	info.ModifiedMS = binary.BigEndian.Uint64(v[0:8])
	info.Verified = Verification(v[8])
	copy(info.Account[:], v[9:41])
	block, err := consensus.DeserializeBlock(v[41:])
	if err != nil {
		return info, err
	}
	info.Block = block
	return info, nil
}

func (t *Txn) UncheckedPut(key UncheckedKey, info UncheckedInfo) error {
	return t.bucket(bucketUnchecked).Put(key.bytes(), encodeUncheckedInfo(info))
}

func (t *Txn) UncheckedDel(key UncheckedKey) error {
	return t.bucket(bucketUnchecked).Delete(key.bytes())
}

func (t *Txn) UncheckedCount() uint64 {
	return count(t, bucketUnchecked)
}

// UncheckedByDependency returns every block parked under the dependency,
// capped at limit (0 means no cap).
func (t *Txn) UncheckedByDependency(dep consensus.Hash, limit int) ([]UncheckedInfo, error) {
	var out []UncheckedInfo
	c := t.bucket(bucketUnchecked).Cursor()
	for k, v := c.Seek(dep[:]); k != nil && bytes.HasPrefix(k, dep[:]); k, v = c.Next() {
		info, err := decodeUncheckedInfo(v)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// UncheckedTrim drops entries whose modified time is older than cutoffMS.
func (t *Txn) UncheckedTrim(cutoffMS uint64) (int, error) {
	var stale [][]byte
	c := t.bucket(bucketUnchecked).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if len(v) >= 8 && binary.BigEndian.Uint64(v[0:8]) < cutoffMS {
			stale = append(stale, append([]byte(nil), k...))
		}
	}
	for _, k := range stale {
		if err := t.bucket(bucketUnchecked).Delete(k); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
