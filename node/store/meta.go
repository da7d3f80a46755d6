package store

import "encoding/binary"

const MetaKeyVersion uint32 = 1

// SchemaVersion is the current ledger layout version.
const SchemaVersion uint64 = 1

func (t *Txn) MetaPut(key uint32, value uint64) error {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], key)
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], value)
	return t.bucket(bucketMeta).Put(k[:], v[:])
}

func (t *Txn) MetaGet(key uint32) (uint64, bool) {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], key)
	v := t.bucket(bucketMeta).Get(k[:])
	if v == nil || len(v) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}
