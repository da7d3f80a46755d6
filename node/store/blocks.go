package store

import (
	"github.com/pkg/errors"

	"weft.dev/node/consensus"
)

// Block records are the block wire form followed by its sideband. A block
// is only ever written with a fully populated sideband.

func (t *Txn) BlockPut(hash consensus.Hash, b *consensus.Block) error {
	if b.Sideband == nil {
		return errors.New("block without sideband")
	}
	val := consensus.SerializeBlock(b)
	val = append(val, consensus.SerializeSideband(b.Type, b.Sideband)...)
	return t.bucket(bucketBlocks).Put(hash[:], val)
}

func (t *Txn) BlockGet(hash consensus.Hash) (*consensus.Block, bool, error) {
	v := t.bucket(bucketBlocks).Get(hash[:])
	if v == nil {
		return nil, false, nil
	}
	b, err := decodeBlockRecord(v)
	if err != nil {
		return nil, false, errors.Wrapf(err, "block %s", hash)
	}
	return b, true, nil
}

func (t *Txn) BlockExists(hash consensus.Hash) bool {
	return t.bucket(bucketBlocks).Get(hash[:]) != nil
}

func (t *Txn) BlockDel(hash consensus.Hash) error {
	return t.bucket(bucketBlocks).Delete(hash[:])
}

func (t *Txn) BlockCount() uint64 {
	return count(t, bucketBlocks)
}

// BlockSuccessorSet rewrites the stored sideband's successor link.
func (t *Txn) BlockSuccessorSet(hash consensus.Hash, successor consensus.Hash) error {
	b, ok, err := t.BlockGet(hash)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("successor set: missing block %s", hash)
	}
	b.Sideband.Successor = successor
	return t.BlockPut(hash, b)
}

func decodeBlockRecord(v []byte) (*consensus.Block, error) {
	b, rest, err := consensus.DeserializeBlockPrefix(v)
	if err != nil {
		return nil, err
	}
	sideband, err := consensus.DeserializeSideband(b.Type, rest)
	if err != nil {
		return nil, err
	}
	// State records omit account and balance; refill from the block body.
	if b.Type == consensus.BlockTypeState {
		sideband.Account = b.Account
		sideband.Balance = b.Balance
	}
	b.Sideband = sideband
	return b, nil
}
