package node

import (
	"time"

	"github.com/pkg/errors"

	"weft.dev/node/consensus"
	"weft.dev/node/node/store"
)

// Rollback undoes the block at hash and every successor above it on its
// account chain, in reverse order, inside the caller's write transaction.
// Rolling back a send whose pending entry was already received first rolls
// back the receiving chain; maxDepth bounds that recursion. The undone
// blocks are returned oldest-last (exact reverse of apply order).
func (l *Ledger) Rollback(txn *store.Txn, hash consensus.Hash, maxDepth int) ([]*consensus.Block, error) {
	var rolled []*consensus.Block
	if err := l.rollbackChain(txn, hash, maxDepth, 0, &rolled); err != nil {
		return rolled, err
	}
	return rolled, nil
}

func (l *Ledger) rollbackChain(txn *store.Txn, hash consensus.Hash, maxDepth, depth int, out *[]*consensus.Block) error {
	if depth >= maxDepth {
		return ErrRollbackDepth
	}
	target, ok, err := txn.BlockGet(hash)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("rollback: missing block %s", hash)
	}
	account := target.Sideband.Account
	for txn.BlockExists(hash) {
		info, hasInfo, err := txn.AccountGet(account)
		if err != nil {
			return err
		}
		if !hasInfo {
			return errors.Errorf("rollback: missing account info for %s", account)
		}
		head, ok, err := txn.BlockGet(info.Head)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("rollback: missing head block %s", info.Head)
		}
		if err := l.rollbackOne(txn, head, info, maxDepth, depth, out); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) rollbackOne(txn *store.Txn, b *consensus.Block, info store.AccountInfo, maxDepth, depth int, out *[]*consensus.Block) error {
	hash := b.Hash()
	account := b.Sideband.Account

	conf, _, err := txn.ConfirmationHeightGet(account)
	if err != nil {
		return err
	}
	if b.Sideband.Height <= conf.Height {
		return ErrBelowConfirmed
	}

	details := b.Sideband.Details

	if details.IsSend {
		dest := b.Destination
		if b.Type == consensus.BlockTypeState {
			dest = b.Link.Account()
		}
		key := store.PendingKey{Account: dest, Hash: hash}
		if _, ok, err := txn.PendingGet(key); err != nil {
			return err
		} else if !ok {
			// Already received: undo the receiving chain first, which
			// restores the pending entry.
			recvHash, found, err := l.findReceiver(txn, hash, dest)
			if err != nil {
				return err
			}
			if !found {
				return errors.Errorf("rollback: consumed pending of %s has no receiver", hash)
			}
			if err := l.rollbackChain(txn, recvHash, maxDepth, depth+1, out); err != nil {
				return err
			}
		}
		if err := txn.PendingDel(key); err != nil {
			return err
		}
	}

	var prevBlock *consensus.Block
	var prevBalance consensus.Amount
	if !b.IsOpening() {
		pb, ok, err := txn.BlockGet(b.Previous)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("rollback: missing predecessor %s", b.Previous)
		}
		prevBlock = pb
		prevBalance = pb.Sideband.Balance
	}

	if details.IsReceive {
		source := b.Source
		if b.Type == consensus.BlockTypeState {
			source = b.Link.Hash()
		}
		srcBlock, ok, err := txn.BlockGet(source)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("rollback: missing source block %s", source)
		}
		amount, _ := b.Sideband.Balance.Sub(prevBalance)
		if err := txn.PendingPut(store.PendingKey{Account: account, Hash: source}, store.PendingInfo{
			Source: srcBlock.Sideband.Account,
			Amount: amount,
			Epoch:  b.Sideband.SourceEpoch,
		}); err != nil {
			return err
		}
	}

	l.repWeightSub(info.Representative, b.Sideband.Balance)

	now := uint64(time.Now().Unix())
	if prevBlock == nil {
		if err := txn.AccountDel(account); err != nil {
			return err
		}
		if err := txn.ConfirmationHeightDel(account); err != nil {
			return err
		}
		l.mu.Lock()
		l.accountCount--
		l.mu.Unlock()
	} else {
		prevRep, err := l.representativeAt(txn, prevBlock)
		if err != nil {
			return err
		}
		l.repWeightAdd(prevRep, prevBalance)
		if err := txn.AccountPut(account, store.AccountInfo{
			Head:           b.Previous,
			Representative: prevRep,
			OpenBlock:      info.OpenBlock,
			Balance:        prevBalance,
			ModifiedS:      now,
			BlockCount:     info.BlockCount - 1,
			Epoch:          prevBlock.Sideband.Details.Epoch,
		}); err != nil {
			return err
		}
		if err := txn.BlockSuccessorSet(b.Previous, consensus.Hash{}); err != nil {
			return err
		}
		if prevBlock.Type.IsLegacy() {
			if err := txn.FrontierPut(b.Previous, account); err != nil {
				return err
			}
		}
	}
	if b.Type.IsLegacy() {
		if err := txn.FrontierDel(hash); err != nil {
			return err
		}
	}
	if err := txn.BlockDel(hash); err != nil {
		return err
	}
	l.mu.Lock()
	l.blockCount--
	l.mu.Unlock()
	*out = append(*out, b)
	return nil
}

// representativeAt resolves the representative governing the chain as of
// the given block: legacy sends and receives inherit it from the nearest
// ancestor that names one.
func (l *Ledger) representativeAt(txn *store.Txn, b *consensus.Block) (consensus.Account, error) {
	for {
		switch b.Type {
		case consensus.BlockTypeState, consensus.BlockTypeOpen, consensus.BlockTypeChange:
			return b.Representative, nil
		}
		pb, ok, err := txn.BlockGet(b.Previous)
		if err != nil {
			return consensus.Account{}, err
		}
		if !ok {
			return consensus.Account{}, errors.Errorf("representative walk: missing block %s", b.Previous)
		}
		b = pb
	}
}

// findReceiver walks the destination chain head-first looking for the
// block that received the given send.
func (l *Ledger) findReceiver(txn *store.Txn, sendHash consensus.Hash, dest consensus.Account) (consensus.Hash, bool, error) {
	info, hasInfo, err := txn.AccountGet(dest)
	if err != nil || !hasInfo {
		return consensus.Hash{}, false, err
	}
	cur := info.Head
	for !cur.IsZero() {
		b, ok, err := txn.BlockGet(cur)
		if err != nil {
			return consensus.Hash{}, false, err
		}
		if !ok {
			return consensus.Hash{}, false, nil
		}
		source := b.Source
		if b.Type == consensus.BlockTypeState {
			source = b.Link.Hash()
		}
		if b.Sideband.Details.IsReceive && source == sendHash {
			return cur, true, nil
		}
		cur = b.Previous
	}
	return consensus.Hash{}, false, nil
}
