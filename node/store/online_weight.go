package store

import (
	"encoding/binary"

	"weft.dev/node/consensus"
)

// Online-weight samples record the observed voting weight over time; the
// trended median feeds quorum calculations upstream.

func (t *Txn) OnlineWeightPut(timeMS uint64, amount consensus.Amount) error {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], timeMS)
	val := amount.Bytes16()
	return t.bucket(bucketOnlineWeight).Put(key[:], val[:])
}

func (t *Txn) OnlineWeightCount() uint64 {
	return count(t, bucketOnlineWeight)
}

// OnlineWeightIterate walks samples oldest-first.
func (t *Txn) OnlineWeightIterate(fn func(uint64, consensus.Amount) bool) {
	c := t.bucket(bucketOnlineWeight).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if len(k) != 8 || len(v) != 16 {
			continue
		}
		var amount [16]byte
		copy(amount[:], v)
		if !fn(binary.BigEndian.Uint64(k), consensus.AmountFromBytes16(amount)) {
			return
		}
	}
}

// OnlineWeightTrim keeps only the newest keep samples.
func (t *Txn) OnlineWeightTrim(keep uint64) error {
	total := t.OnlineWeightCount()
	if total <= keep {
		return nil
	}
	drop := total - keep
	c := t.bucket(bucketOnlineWeight).Cursor()
	for k, _ := c.First(); k != nil && drop > 0; k, _ = c.First() {
		if err := t.bucket(bucketOnlineWeight).Delete(append([]byte(nil), k...)); err != nil {
			return err
		}
		drop--
	}
	return nil
}
