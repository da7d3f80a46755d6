package store

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"weft.dev/node/consensus"
)

// AccountInfo is the per-account head record.
type AccountInfo struct {
	Head           consensus.Hash
	Representative consensus.Account
	OpenBlock      consensus.Hash
	Balance        consensus.Amount
	ModifiedS      uint64
	BlockCount     uint64
	Epoch          consensus.Epoch
}

const accountInfoLen = 32 + 32 + 32 + 16 + 8 + 8 + 1

func encodeAccountInfo(info AccountInfo) []byte {
	out := make([]byte, 0, accountInfoLen)
	out = append(out, info.Head[:]...)
	out = append(out, info.Representative[:]...)
	out = append(out, info.OpenBlock[:]...)
	balance := info.Balance.Bytes16()
	out = append(out, balance[:]...)
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], info.ModifiedS)
	out = append(out, scratch[:]...)
	binary.BigEndian.PutUint64(scratch[:], info.BlockCount)
	out = append(out, scratch[:]...)
	out = append(out, byte(info.Epoch))
	return out
}

func decodeAccountInfo(v []byte) (AccountInfo, error) {
	var info AccountInfo
	if len(v) != accountInfoLen {
		return info, errors.Errorf("account info: expected %d bytes, got %d", accountInfoLen, len(v))
	}
	copy(info.Head[:], v[0:32])
	copy(info.Representative[:], v[32:64])
	copy(info.OpenBlock[:], v[64:96])
	var balance [16]byte
	copy(balance[:], v[96:112])
	info.Balance = consensus.AmountFromBytes16(balance)
	info.ModifiedS = binary.BigEndian.Uint64(v[112:120])
	info.BlockCount = binary.BigEndian.Uint64(v[120:128])
	info.Epoch = consensus.Epoch(v[128])
	return info, nil
}

func (t *Txn) AccountPut(account consensus.Account, info AccountInfo) error {
	return t.bucket(bucketAccounts).Put(account[:], encodeAccountInfo(info))
}

func (t *Txn) AccountGet(account consensus.Account) (AccountInfo, bool, error) {
	v := t.bucket(bucketAccounts).Get(account[:])
	if v == nil {
		return AccountInfo{}, false, nil
	}
	info, err := decodeAccountInfo(v)
	if err != nil {
		return AccountInfo{}, false, err
	}
	return info, true, nil
}

func (t *Txn) AccountDel(account consensus.Account) error {
	return t.bucket(bucketAccounts).Delete(account[:])
}

func (t *Txn) AccountCount() uint64 {
	return count(t, bucketAccounts)
}

// AccountIterate walks accounts in key order starting at from, until fn
// returns false.
func (t *Txn) AccountIterate(from consensus.Account, fn func(consensus.Account, AccountInfo) bool) error {
	c := t.bucket(bucketAccounts).Cursor()
	for k, v := c.Seek(from[:]); k != nil; k, v = c.Next() {
		var account consensus.Account
		copy(account[:], k)
		info, err := decodeAccountInfo(v)
		if err != nil {
			return err
		}
		if !fn(account, info) {
			return nil
		}
	}
	return nil
}
