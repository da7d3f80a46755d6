package store

import "weft.dev/node/consensus"

// Pruned records hashes whose block bodies have been removed; balances
// stay derivable from account info and surviving successors' sidebands.

func (t *Txn) PrunedPut(hash consensus.Hash) error {
	return t.bucket(bucketPruned).Put(hash[:], []byte{})
}

func (t *Txn) PrunedExists(hash consensus.Hash) bool {
	return t.bucket(bucketPruned).Get(hash[:]) != nil
}

func (t *Txn) PrunedDel(hash consensus.Hash) error {
	return t.bucket(bucketPruned).Delete(hash[:])
}

func (t *Txn) PrunedCount() uint64 {
	return count(t, bucketPruned)
}
