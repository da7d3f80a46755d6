package store

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"weft.dev/node/consensus"
)

// ConfirmationHeightInfo records the greatest height on an account chain
// considered final, with the frontier hash at that height.
type ConfirmationHeightInfo struct {
	Height   uint64
	Frontier consensus.Hash
}

func (t *Txn) ConfirmationHeightPut(account consensus.Account, info ConfirmationHeightInfo) error {
	out := make([]byte, 8+32)
	binary.BigEndian.PutUint64(out[0:8], info.Height)
	copy(out[8:], info.Frontier[:])
	return t.bucket(bucketConfirmationHeight).Put(account[:], out)
}

func (t *Txn) ConfirmationHeightGet(account consensus.Account) (ConfirmationHeightInfo, bool, error) {
	v := t.bucket(bucketConfirmationHeight).Get(account[:])
	if v == nil {
		return ConfirmationHeightInfo{}, false, nil
	}
	if len(v) != 8+32 {
		return ConfirmationHeightInfo{}, false, errors.Errorf("confirmation height: bad record size %d", len(v))
	}
	var info ConfirmationHeightInfo
	info.Height = binary.BigEndian.Uint64(v[0:8])
	copy(info.Frontier[:], v[8:])
	return info, true, nil
}

func (t *Txn) ConfirmationHeightDel(account consensus.Account) error {
	return t.bucket(bucketConfirmationHeight).Delete(account[:])
}

func (t *Txn) ConfirmationHeightCount() uint64 {
	return count(t, bucketConfirmationHeight)
}
