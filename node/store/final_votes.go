package store

import "weft.dev/node/consensus"

// Final votes pin a root to the hash this node finalized on, so a restart
// cannot vote twice across a fork.

func (t *Txn) FinalVotePut(root consensus.Root, hash consensus.Hash) error {
	return t.bucket(bucketFinalVotes).Put(root[:], hash[:])
}

func (t *Txn) FinalVoteGet(root consensus.Root) (consensus.Hash, bool) {
	v := t.bucket(bucketFinalVotes).Get(root[:])
	if v == nil || len(v) != 32 {
		return consensus.Hash{}, false
	}
	var hash consensus.Hash
	copy(hash[:], v)
	return hash, true
}

func (t *Txn) FinalVoteDel(root consensus.Root) error {
	return t.bucket(bucketFinalVotes).Delete(root[:])
}

func (t *Txn) FinalVoteCount() uint64 {
	return count(t, bucketFinalVotes)
}
