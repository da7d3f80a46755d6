package store

import "weft.dev/node/consensus"

// Frontiers map legacy chain heads back to their account. State-block
// chains resolve accounts through the block body instead; the table only
// shrinks as chains upgrade.

func (t *Txn) FrontierPut(head consensus.Hash, account consensus.Account) error {
	return t.bucket(bucketFrontiers).Put(head[:], account[:])
}

func (t *Txn) FrontierGet(head consensus.Hash) (consensus.Account, bool) {
	v := t.bucket(bucketFrontiers).Get(head[:])
	if v == nil || len(v) != 32 {
		return consensus.Account{}, false
	}
	var account consensus.Account
	copy(account[:], v)
	return account, true
}

func (t *Txn) FrontierDel(head consensus.Hash) error {
	return t.bucket(bucketFrontiers).Delete(head[:])
}

func (t *Txn) FrontierCount() uint64 {
	return count(t, bucketFrontiers)
}
