package consensus

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

func blake2b256(parts ...[]byte) Hash {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// blake2b64 is the 8-byte digest used for work values, read little-endian.
func blake2b64(parts ...[]byte) uint64 {
	h, _ := blake2b.New(8, nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out [8]byte
	h.Sum(out[:0])
	return binary.LittleEndian.Uint64(out[:])
}
