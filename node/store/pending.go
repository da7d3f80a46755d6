package store

import (
	"bytes"

	"github.com/pkg/errors"

	"weft.dev/node/consensus"
)

// PendingKey addresses an unreceived send: destination account then the
// send's hash, so one prefix scan yields everything receivable by an
// account.
type PendingKey struct {
	Account consensus.Account
	Hash    consensus.Hash
}

type PendingInfo struct {
	Source consensus.Account
	Amount consensus.Amount
	Epoch  consensus.Epoch
}

func (k PendingKey) bytes() []byte {
	out := make([]byte, 0, 64)
	out = append(out, k.Account[:]...)
	out = append(out, k.Hash[:]...)
	return out
}

const pendingInfoLen = 32 + 16 + 1

func encodePendingInfo(info PendingInfo) []byte {
	out := make([]byte, 0, pendingInfoLen)
	out = append(out, info.Source[:]...)
	amount := info.Amount.Bytes16()
	out = append(out, amount[:]...)
	out = append(out, byte(info.Epoch))
	return out
}

func decodePendingInfo(v []byte) (PendingInfo, error) {
	var info PendingInfo
	if len(v) != pendingInfoLen {
		return info, errors.Errorf("pending info: expected %d bytes, got %d", pendingInfoLen, len(v))
	}
	copy(info.Source[:], v[0:32])
	var amount [16]byte
	copy(amount[:], v[32:48])
	info.Amount = consensus.AmountFromBytes16(amount)
	info.Epoch = consensus.Epoch(v[48])
	return info, nil
}

func (t *Txn) PendingPut(key PendingKey, info PendingInfo) error {
	return t.bucket(bucketPending).Put(key.bytes(), encodePendingInfo(info))
}

func (t *Txn) PendingGet(key PendingKey) (PendingInfo, bool, error) {
	v := t.bucket(bucketPending).Get(key.bytes())
	if v == nil {
		return PendingInfo{}, false, nil
	}
	info, err := decodePendingInfo(v)
	if err != nil {
		return PendingInfo{}, false, err
	}
	return info, true, nil
}

func (t *Txn) PendingDel(key PendingKey) error {
	return t.bucket(bucketPending).Delete(key.bytes())
}

func (t *Txn) PendingCount() uint64 {
	return count(t, bucketPending)
}

// PendingAny reports whether the account has at least one pending entry.
func (t *Txn) PendingAny(account consensus.Account) bool {
	c := t.bucket(bucketPending).Cursor()
	k, _ := c.Seek(account[:])
	return k != nil && bytes.HasPrefix(k, account[:])
}

// PendingIterate walks the account's pending entries in send-hash order.
func (t *Txn) PendingIterate(account consensus.Account, fn func(PendingKey, PendingInfo) bool) error {
	c := t.bucket(bucketPending).Cursor()
	for k, v := c.Seek(account[:]); k != nil && bytes.HasPrefix(k, account[:]); k, v = c.Next() {
		var key PendingKey
		copy(key.Account[:], k[0:32])
		copy(key.Hash[:], k[32:64])
		info, err := decodePendingInfo(v)
		if err != nil {
			return err
		}
		if !fn(key, info) {
			return nil
		}
	}
	return nil
}
