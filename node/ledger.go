package node

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"weft.dev/node/consensus"
	"weft.dev/node/crypto"
	"weft.dev/node/node/store"
)

// Ledger applies blocks to the store under the account-chain rules and
// keeps the in-memory cache of representative weights and table counts.
// All mutating methods expect a write transaction owned by the caller;
// the block processor is the only steady-state writer.
type Ledger struct {
	store    *store.Store
	network  *Network
	provider crypto.Provider
	log      logrus.FieldLogger

	mu            sync.Mutex
	weights       map[consensus.Account]consensus.Amount
	blockCount    uint64
	accountCount  uint64
	prunedCount   uint64
	cementedCount uint64
}

func NewLedger(s *store.Store, network *Network, provider crypto.Provider, log logrus.FieldLogger) (*Ledger, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &Ledger{
		store:    s,
		network:  network,
		provider: provider,
		log:      log.WithField("component", "ledger"),
		weights:  make(map[consensus.Account]consensus.Amount),
	}
	if err := l.seedGenesis(); err != nil {
		return nil, err
	}
	if err := l.buildCache(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Store() *store.Store { return l.store }

func (l *Ledger) Network() *Network { return l.network }

func (l *Ledger) seedGenesis() error {
	txn, err := l.store.BeginWrite()
	if err != nil {
		return err
	}
	defer txn.Discard()

	if txn.BlockCount() > 0 {
		if _, ok := txn.MetaGet(store.MetaKeyVersion); !ok {
			return errors.New("ledger: populated store without version meta")
		}
		return txn.Commit()
	}

	genesis := l.network.Genesis
	hash := genesis.Hash()
	now := uint64(time.Now().Unix())
	genesis.Sideband = &consensus.Sideband{
		Height:    1,
		Timestamp: now,
		Account:   l.network.GenesisAccount,
		Balance:   l.network.TotalSupply,
		Details:   consensus.BlockDetails{Epoch: consensus.Epoch0},
	}
	if err := txn.BlockPut(hash, genesis); err != nil {
		return err
	}
	if err := txn.FrontierPut(hash, l.network.GenesisAccount); err != nil {
		return err
	}
	if err := txn.AccountPut(l.network.GenesisAccount, store.AccountInfo{
		Head:           hash,
		Representative: genesis.Representative,
		OpenBlock:      hash,
		Balance:        l.network.TotalSupply,
		ModifiedS:      now,
		BlockCount:     1,
		Epoch:          consensus.Epoch0,
	}); err != nil {
		return err
	}
	if err := txn.ConfirmationHeightPut(l.network.GenesisAccount, store.ConfirmationHeightInfo{
		Height:   1,
		Frontier: hash,
	}); err != nil {
		return err
	}
	if err := txn.MetaPut(store.MetaKeyVersion, store.SchemaVersion); err != nil {
		return err
	}
	l.log.WithField("hash", hash).Info("seeded genesis")
	return txn.Commit()
}

func (l *Ledger) buildCache() error {
	txn, err := l.store.BeginRead()
	if err != nil {
		return err
	}
	defer txn.Discard()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockCount = txn.BlockCount()
	l.prunedCount = txn.PrunedCount()
	l.accountCount = 0
	var iterErr error
	err = txn.AccountIterate(consensus.Account{}, func(_ consensus.Account, info store.AccountInfo) bool {
		l.accountCount++
		if sum, ok := l.weights[info.Representative].Add(info.Balance); ok {
			l.weights[info.Representative] = sum
		} else {
			iterErr = errors.New("ledger: representative weight overflow")
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return iterErr
}

// Weight is the voting weight delegated to a representative.
func (l *Ledger) Weight(rep consensus.Account) consensus.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.weights[rep]
}

func (l *Ledger) BlockCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockCount
}

func (l *Ledger) AccountCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accountCount
}

func (l *Ledger) repWeightAdd(rep consensus.Account, amount consensus.Amount) {
	if rep.IsZero() || amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if sum, ok := l.weights[rep].Add(amount); ok {
		l.weights[rep] = sum
	}
}

func (l *Ledger) repWeightSub(rep consensus.Account, amount consensus.Amount) {
	if rep.IsZero() || amount.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if diff, ok := l.weights[rep].Sub(amount); ok {
		if diff.IsZero() {
			delete(l.weights, rep)
		} else {
			l.weights[rep] = diff
		}
	}
}

// BlockOrPrunedExists is the existence check exposed to external
// collaborators (election engine, bootstrap).
func (l *Ledger) BlockOrPrunedExists(txn *store.Txn, hash consensus.Hash) bool {
	return txn.BlockExists(hash) || txn.PrunedExists(hash)
}

// DependencyKey names the hash (or account, widened to a hash) whose
// arrival would unpark a gapped block.
func (l *Ledger) DependencyKey(result consensus.ProcessResult, b *consensus.Block) consensus.Hash {
	switch result {
	case consensus.GapPrevious:
		return b.Previous
	case consensus.GapSource:
		if b.Type == consensus.BlockTypeState {
			return b.Link.Hash()
		}
		return b.Source
	case consensus.GapEpochOpenPending:
		return consensus.Hash(b.Account)
	default:
		return consensus.Hash{}
	}
}

// Process applies one block. Validation rejections come back as statuses;
// only store failures are errors. A forced block skips the work floor, and
// the caller resolves forks before retrying it.
func (l *Ledger) Process(txn *store.Txn, b *consensus.Block, forced bool) (consensus.ProcessResult, error) {
	hash := b.Hash()
	if txn.BlockExists(hash) || txn.PrunedExists(hash) {
		return consensus.Old, nil
	}
	switch b.Type {
	case consensus.BlockTypeState:
		return l.processState(txn, b, hash, forced)
	case consensus.BlockTypeOpen:
		return l.processOpen(txn, b, hash, forced)
	case consensus.BlockTypeSend, consensus.BlockTypeReceive, consensus.BlockTypeChange:
		return l.processLegacy(txn, b, hash, forced)
	default:
		return consensus.BadSignature, nil
	}
}

func (l *Ledger) processState(txn *store.Txn, b *consensus.Block, hash consensus.Hash, forced bool) (consensus.ProcessResult, error) {
	if b.Account.IsZero() {
		return consensus.OpenedBurnAccount, nil
	}

	info, hasInfo, err := txn.AccountGet(b.Account)
	if err != nil {
		return 0, err
	}

	var prevBlock *consensus.Block
	var prevBalance consensus.Amount
	var prevEpoch consensus.Epoch
	var prevHeight uint64
	if !b.Previous.IsZero() {
		pb, ok, err := txn.BlockGet(b.Previous)
		if err != nil {
			return 0, err
		}
		if !ok {
			return consensus.GapPrevious, nil
		}
		if pb.Sideband.Account != b.Account {
			return consensus.BlockPosition, nil
		}
		if !hasInfo {
			return consensus.GapPrevious, nil
		}
		if b.Previous != info.Head {
			return consensus.Fork, nil
		}
		prevBlock = pb
		prevBalance = pb.Sideband.Balance
		prevEpoch = info.Epoch
		prevHeight = pb.Sideband.Height
	} else if hasInfo {
		return consensus.Fork, nil
	}

	isEpochLink := l.network.Epochs.IsEpochLink(b.Link)
	isEpoch := isEpochLink && b.Balance.Cmp(prevBalance) == 0

	if isEpoch {
		epoch, _ := l.network.Epochs.EpochFromLink(b.Link)
		signer, _ := l.network.Epochs.Signer(epoch)
		if !l.provider.Verify(signer, hash[:], b.Signature) {
			return consensus.BadSignature, nil
		}
	} else if !l.provider.Verify(b.Account, hash[:], b.Signature) {
		return consensus.BadSignature, nil
	}

	var details consensus.BlockDetails
	var sourceEpoch consensus.Epoch
	var pendingDel *store.PendingKey
	var pendingAdd *store.PendingKey
	var pendingAddInfo store.PendingInfo
	newEpoch := prevEpoch

	if isEpoch {
		epoch, _ := l.network.Epochs.EpochFromLink(b.Link)
		if epoch != prevEpoch+1 {
			return consensus.BlockPosition, nil
		}
		if prevBlock == nil {
			if !txn.PendingAny(b.Account) {
				return consensus.GapEpochOpenPending, nil
			}
			if !b.Balance.IsZero() {
				return consensus.BalanceMismatch, nil
			}
			if !b.Representative.IsZero() {
				return consensus.RepresentativeMismatch, nil
			}
		} else if b.Representative != info.Representative {
			return consensus.RepresentativeMismatch, nil
		}
		details = consensus.BlockDetails{Epoch: epoch, IsEpoch: true}
		newEpoch = epoch
	} else {
		switch cmp := b.Balance.Cmp(prevBalance); {
		case cmp < 0: // send
			amount, _ := prevBalance.Sub(b.Balance)
			details = consensus.BlockDetails{Epoch: prevEpoch, IsSend: true}
			key := store.PendingKey{Account: b.Link.Account(), Hash: hash}
			pendingAdd = &key
			pendingAddInfo = store.PendingInfo{Source: b.Account, Amount: amount, Epoch: prevEpoch}
		case !b.Link.IsZero(): // receive, including chain open
			key := store.PendingKey{Account: b.Account, Hash: b.Link.Hash()}
			pi, ok, err := txn.PendingGet(key)
			if err != nil {
				return 0, err
			}
			if !ok {
				if !l.BlockOrPrunedExists(txn, b.Link.Hash()) {
					return consensus.GapSource, nil
				}
				return consensus.Unreceivable, nil
			}
			amount, _ := b.Balance.Sub(prevBalance)
			if pi.Amount.Cmp(amount) != 0 {
				return consensus.BalanceMismatch, nil
			}
			sourceEpoch = pi.Epoch
			epoch := prevEpoch
			if pi.Epoch > epoch {
				epoch = pi.Epoch
			}
			details = consensus.BlockDetails{Epoch: epoch, IsReceive: true}
			newEpoch = epoch
			pendingDel = &key
		default: // no value movement, zero link
			if cmp > 0 {
				return consensus.BalanceMismatch, nil
			}
			if prevBlock == nil {
				return consensus.GapSource, nil
			}
			details = consensus.BlockDetails{Epoch: prevEpoch}
		}
	}

	if !forced && !l.network.WorkThresholds.Validate(b, l.network.WorkThresholds.Threshold(details)) {
		return consensus.InsufficientWork, nil
	}

	now := uint64(time.Now().Unix())
	b.Sideband = &consensus.Sideband{
		Height:      prevHeight + 1,
		Timestamp:   now,
		Account:     b.Account,
		Balance:     b.Balance,
		Details:     details,
		SourceEpoch: sourceEpoch,
	}
	if err := txn.BlockPut(hash, b); err != nil {
		return 0, err
	}
	if prevBlock != nil {
		if err := txn.BlockSuccessorSet(b.Previous, hash); err != nil {
			return 0, err
		}
		if prevBlock.Type.IsLegacy() {
			if err := txn.FrontierDel(b.Previous); err != nil {
				return 0, err
			}
		}
		l.repWeightSub(info.Representative, prevBalance)
	}
	l.repWeightAdd(b.Representative, b.Balance)
	if pendingDel != nil {
		if err := txn.PendingDel(*pendingDel); err != nil {
			return 0, err
		}
	}
	if pendingAdd != nil {
		if err := txn.PendingPut(*pendingAdd, pendingAddInfo); err != nil {
			return 0, err
		}
	}
	openBlock := info.OpenBlock
	if prevBlock == nil {
		openBlock = hash
	}
	if err := txn.AccountPut(b.Account, store.AccountInfo{
		Head:           hash,
		Representative: b.Representative,
		OpenBlock:      openBlock,
		Balance:        b.Balance,
		ModifiedS:      now,
		BlockCount:     info.BlockCount + 1,
		Epoch:          newEpoch,
	}); err != nil {
		return 0, err
	}

	l.mu.Lock()
	l.blockCount++
	if prevBlock == nil {
		l.accountCount++
	}
	l.mu.Unlock()
	return consensus.Progress, nil
}

func (l *Ledger) processOpen(txn *store.Txn, b *consensus.Block, hash consensus.Hash, forced bool) (consensus.ProcessResult, error) {
	if b.Account.IsZero() {
		return consensus.OpenedBurnAccount, nil
	}
	if _, hasInfo, err := txn.AccountGet(b.Account); err != nil {
		return 0, err
	} else if hasInfo {
		return consensus.Fork, nil
	}
	if !l.provider.Verify(b.Account, hash[:], b.Signature) {
		return consensus.BadSignature, nil
	}
	key := store.PendingKey{Account: b.Account, Hash: b.Source}
	pi, ok, err := txn.PendingGet(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		if !l.BlockOrPrunedExists(txn, b.Source) {
			return consensus.GapSource, nil
		}
		return consensus.Unreceivable, nil
	}
	if pi.Epoch != consensus.Epoch0 {
		// Upgraded sends are only receivable by state blocks.
		return consensus.Unreceivable, nil
	}
	details := consensus.BlockDetails{Epoch: consensus.Epoch0, IsReceive: true}
	if !forced && !l.network.WorkThresholds.Validate(b, l.network.WorkThresholds.Threshold(details)) {
		return consensus.InsufficientWork, nil
	}

	now := uint64(time.Now().Unix())
	b.Sideband = &consensus.Sideband{
		Height:    1,
		Timestamp: now,
		Account:   b.Account,
		Balance:   pi.Amount,
		Details:   details,
	}
	if err := txn.BlockPut(hash, b); err != nil {
		return 0, err
	}
	if err := txn.PendingDel(key); err != nil {
		return 0, err
	}
	if err := txn.FrontierPut(hash, b.Account); err != nil {
		return 0, err
	}
	l.repWeightAdd(b.Representative, pi.Amount)
	if err := txn.AccountPut(b.Account, store.AccountInfo{
		Head:           hash,
		Representative: b.Representative,
		OpenBlock:      hash,
		Balance:        pi.Amount,
		ModifiedS:      now,
		BlockCount:     1,
		Epoch:          consensus.Epoch0,
	}); err != nil {
		return 0, err
	}
	l.mu.Lock()
	l.blockCount++
	l.accountCount++
	l.mu.Unlock()
	return consensus.Progress, nil
}

func (l *Ledger) processLegacy(txn *store.Txn, b *consensus.Block, hash consensus.Hash, forced bool) (consensus.ProcessResult, error) {
	prevBlock, ok, err := txn.BlockGet(b.Previous)
	if err != nil {
		return 0, err
	}
	if !ok {
		return consensus.GapPrevious, nil
	}
	account := prevBlock.Sideband.Account
	info, hasInfo, err := txn.AccountGet(account)
	if err != nil {
		return 0, err
	}
	if !hasInfo {
		return consensus.GapPrevious, nil
	}
	if b.Previous != info.Head {
		return consensus.Fork, nil
	}
	if info.Epoch != consensus.Epoch0 {
		// Legacy blocks cannot extend an upgraded chain.
		return consensus.BlockPosition, nil
	}
	if !l.provider.Verify(account, hash[:], b.Signature) {
		return consensus.BadSignature, nil
	}

	prevBalance := prevBlock.Sideband.Balance
	var details consensus.BlockDetails
	var newBalance consensus.Amount
	var pendingDel *store.PendingKey
	var pendingAdd *store.PendingKey
	var pendingAddInfo store.PendingInfo
	newRep := info.Representative

	switch b.Type {
	case consensus.BlockTypeSend:
		if b.Balance.Cmp(prevBalance) > 0 {
			return consensus.NegativeSpend, nil
		}
		amount, _ := prevBalance.Sub(b.Balance)
		newBalance = b.Balance
		details = consensus.BlockDetails{Epoch: consensus.Epoch0, IsSend: true}
		key := store.PendingKey{Account: b.Destination, Hash: hash}
		pendingAdd = &key
		pendingAddInfo = store.PendingInfo{Source: account, Amount: amount, Epoch: consensus.Epoch0}
	case consensus.BlockTypeReceive:
		key := store.PendingKey{Account: account, Hash: b.Source}
		pi, ok, err := txn.PendingGet(key)
		if err != nil {
			return 0, err
		}
		if !ok {
			if !l.BlockOrPrunedExists(txn, b.Source) {
				return consensus.GapSource, nil
			}
			return consensus.Unreceivable, nil
		}
		if pi.Epoch != consensus.Epoch0 {
			return consensus.Unreceivable, nil
		}
		var sumOK bool
		newBalance, sumOK = prevBalance.Add(pi.Amount)
		if !sumOK {
			return consensus.BalanceMismatch, nil
		}
		details = consensus.BlockDetails{Epoch: consensus.Epoch0, IsReceive: true}
		pendingDel = &key
	case consensus.BlockTypeChange:
		newBalance = prevBalance
		newRep = b.Representative
		details = consensus.BlockDetails{Epoch: consensus.Epoch0}
	}

	if !forced && !l.network.WorkThresholds.Validate(b, l.network.WorkThresholds.Threshold(details)) {
		return consensus.InsufficientWork, nil
	}

	now := uint64(time.Now().Unix())
	b.Sideband = &consensus.Sideband{
		Height:    prevBlock.Sideband.Height + 1,
		Timestamp: now,
		Account:   account,
		Balance:   newBalance,
		Details:   details,
	}
	if err := txn.BlockPut(hash, b); err != nil {
		return 0, err
	}
	if err := txn.BlockSuccessorSet(b.Previous, hash); err != nil {
		return 0, err
	}
	if err := txn.FrontierDel(b.Previous); err != nil {
		return 0, err
	}
	if err := txn.FrontierPut(hash, account); err != nil {
		return 0, err
	}
	if pendingDel != nil {
		if err := txn.PendingDel(*pendingDel); err != nil {
			return 0, err
		}
	}
	if pendingAdd != nil {
		if err := txn.PendingPut(*pendingAdd, pendingAddInfo); err != nil {
			return 0, err
		}
	}
	switch b.Type {
	case consensus.BlockTypeSend:
		amount, _ := prevBalance.Sub(newBalance)
		l.repWeightSub(info.Representative, amount)
	case consensus.BlockTypeReceive:
		amount, _ := newBalance.Sub(prevBalance)
		l.repWeightAdd(info.Representative, amount)
	case consensus.BlockTypeChange:
		l.repWeightSub(info.Representative, prevBalance)
		l.repWeightAdd(newRep, prevBalance)
	}
	if err := txn.AccountPut(account, store.AccountInfo{
		Head:           hash,
		Representative: newRep,
		OpenBlock:      info.OpenBlock,
		Balance:        newBalance,
		ModifiedS:      now,
		BlockCount:     info.BlockCount + 1,
		Epoch:          consensus.Epoch0,
	}); err != nil {
		return 0, err
	}
	l.mu.Lock()
	l.blockCount++
	l.mu.Unlock()
	return consensus.Progress, nil
}

// Prune removes a cemented block body, leaving only its pruned marker.
// Chain heads and opening blocks are never pruned.
func (l *Ledger) Prune(txn *store.Txn, hash consensus.Hash) error {
	b, ok, err := txn.BlockGet(hash)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("prune: missing block %s", hash)
	}
	account := b.Sideband.Account
	info, hasInfo, err := txn.AccountGet(account)
	if err != nil {
		return err
	}
	if !hasInfo {
		return errors.Errorf("prune: missing account for block %s", hash)
	}
	if info.Head == hash || info.OpenBlock == hash {
		return errors.Errorf("prune: refusing head or open block %s", hash)
	}
	conf, _, err := txn.ConfirmationHeightGet(account)
	if err != nil {
		return err
	}
	if b.Sideband.Height > conf.Height {
		return errors.Errorf("prune: block %s above confirmation height", hash)
	}
	if err := txn.BlockDel(hash); err != nil {
		return err
	}
	if err := txn.PrunedPut(hash); err != nil {
		return err
	}
	l.mu.Lock()
	l.blockCount--
	l.prunedCount++
	l.mu.Unlock()
	return nil
}
