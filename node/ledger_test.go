package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"weft.dev/node/consensus"
)

func TestGenesisOpenSendReceive(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	supply := e.network.TotalSupply

	require.Equal(t, 0, e.ledger.Weight(gen).Cmp(supply))

	_, destAccount := testKey(1)
	destPriv, _ := testKey(1)

	sendBalance, _ := supply.Sub(consensus.AmountFromUint64(100))
	send := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, destAccount.Link(), sendBalance)
	require.Equal(t, consensus.Progress, e.process(send, false))

	open := e.stateBlock(destPriv, destAccount, consensus.Hash{}, destAccount, send.Hash().Link(), consensus.AmountFromUint64(100))
	require.Equal(t, consensus.Progress, e.process(open, false))

	genInfo, ok := e.accountInfo(gen)
	require.True(t, ok)
	require.Equal(t, 0, genInfo.Balance.Cmp(sendBalance))

	destInfo, ok := e.accountInfo(destAccount)
	require.True(t, ok)
	require.EqualValues(t, 100, destInfo.Balance.Uint64())
	require.EqualValues(t, 1, destInfo.BlockCount)
	require.Equal(t, open.Hash(), destInfo.Head)

	require.EqualValues(t, 0, e.pendingCount())
	require.Equal(t, 0, e.ledger.Weight(gen).Cmp(sendBalance))
	require.EqualValues(t, 100, e.ledger.Weight(destAccount).Uint64())
	require.EqualValues(t, 2, e.ledger.AccountCount())
}

func TestProcessOldBlock(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	balance, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(1))
	_, dest := testKey(2)

	send := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, dest.Link(), balance)
	require.Equal(t, consensus.Progress, e.process(send, false))
	require.Equal(t, consensus.Old, e.process(send, false))
}

func TestProcessFork(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	_, d1 := testKey(3)
	_, d2 := testKey(4)

	b1, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(10))
	send1 := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, d1.Link(), b1)
	require.Equal(t, consensus.Progress, e.process(send1, false))

	b2, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(20))
	send2 := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, d2.Link(), b2)
	require.Equal(t, consensus.Fork, e.process(send2, false))
}

func TestProcessGaps(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()

	var unknown consensus.Hash
	unknown[0] = 0xAA
	balance, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(5))
	_, dest := testKey(5)

	orphan := e.stateBlock(e.genPriv, gen, unknown, gen, dest.Link(), balance)
	require.Equal(t, consensus.GapPrevious, e.process(orphan, false))

	destPriv, destAccount := testKey(5)
	ghostOpen := e.stateBlock(destPriv, destAccount, consensus.Hash{}, destAccount, unknown.Link(), consensus.AmountFromUint64(5))
	require.Equal(t, consensus.GapSource, e.process(ghostOpen, false))
}

func TestProcessBadSignature(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	wrongPriv, _ := testKey(6)
	_, dest := testKey(7)

	balance, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(9))
	send := e.stateBlock(wrongPriv, gen, e.genesisHash(), gen, dest.Link(), balance)
	require.Equal(t, consensus.BadSignature, e.process(send, false))
}

func TestProcessUnreceivableAndBalanceMismatch(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	destPriv, destAccount := testKey(8)

	balance, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(100))
	send := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, destAccount.Link(), balance)
	require.Equal(t, consensus.Progress, e.process(send, false))

	// Claiming the wrong amount is a balance mismatch.
	bad := e.stateBlock(destPriv, destAccount, consensus.Hash{}, destAccount, send.Hash().Link(), consensus.AmountFromUint64(99))
	require.Equal(t, consensus.BalanceMismatch, e.process(bad, false))

	open := e.stateBlock(destPriv, destAccount, consensus.Hash{}, destAccount, send.Hash().Link(), consensus.AmountFromUint64(100))
	require.Equal(t, consensus.Progress, e.process(open, false))

	// Receiving the same send twice: the source exists but nothing is
	// pending any more.
	again := e.stateBlock(destPriv, destAccount, open.Hash(), destAccount, send.Hash().Link(), consensus.AmountFromUint64(200))
	require.Equal(t, consensus.Unreceivable, e.process(again, false))
}

func TestProcessInsufficientWorkAndForced(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	_, dest := testKey(9)

	balance, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(50))
	send := e.finishWeakWork(&consensus.Block{
		Type:           consensus.BlockTypeState,
		Account:        gen,
		Previous:       e.genesisHash(),
		Representative: gen,
		Link:           dest.Link(),
		Balance:        balance,
	}, e.genPriv)

	require.Equal(t, consensus.InsufficientWork, e.process(send, false))
	require.Equal(t, consensus.Progress, e.process(send, true))
}

func TestProcessOpenedBurnAccount(t *testing.T) {
	e := newTestEnv(t)
	b := &consensus.Block{
		Type:    consensus.BlockTypeState,
		Balance: consensus.AmountFromUint64(1),
	}
	b.Link[0] = 1
	status := e.process(b, false)
	require.Equal(t, consensus.OpenedBurnAccount, status)
}

func TestEpochBlocks(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	link1, _ := e.network.Epochs.Link(consensus.Epoch1)
	link2, _ := e.network.Epochs.Link(consensus.Epoch2)

	// Skipping straight to epoch 2 is out of order.
	skip := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, link2, e.network.TotalSupply)
	require.Equal(t, consensus.BlockPosition, e.process(skip, false))

	// An epoch block may not move the representative.
	var otherRep consensus.Account
	otherRep[0] = 0x0F
	badRep := e.stateBlock(e.genPriv, gen, e.genesisHash(), otherRep, link1, e.network.TotalSupply)
	require.Equal(t, consensus.RepresentativeMismatch, e.process(badRep, false))

	wrongPriv, _ := testKey(10)
	badSig := e.stateBlock(wrongPriv, gen, e.genesisHash(), gen, link1, e.network.TotalSupply)
	require.Equal(t, consensus.BadSignature, e.process(badSig, false))

	epoch1 := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, link1, e.network.TotalSupply)
	require.Equal(t, consensus.Progress, e.process(epoch1, false))
	info, ok := e.accountInfo(gen)
	require.True(t, ok)
	require.Equal(t, consensus.Epoch1, info.Epoch)

	epoch2 := e.stateBlock(e.genPriv, gen, epoch1.Hash(), gen, link2, e.network.TotalSupply)
	require.Equal(t, consensus.Progress, e.process(epoch2, false))
	info, ok = e.accountInfo(gen)
	require.True(t, ok)
	require.Equal(t, consensus.Epoch2, info.Epoch)

	// The chain is upgraded: weights were not disturbed.
	require.Equal(t, 0, e.ledger.Weight(gen).Cmp(e.network.TotalSupply))
}

func TestRollbackRestoresPendingAndWeights(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	supply := e.network.TotalSupply
	_, dest := testKey(11)

	b1, _ := supply.Sub(consensus.AmountFromUint64(10))
	send1 := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, dest.Link(), b1)
	require.Equal(t, consensus.Progress, e.process(send1, false))

	b2, _ := b1.Sub(consensus.AmountFromUint64(20))
	send2 := e.stateBlock(e.genPriv, gen, send1.Hash(), gen, dest.Link(), b2)
	require.Equal(t, consensus.Progress, e.process(send2, false))
	require.EqualValues(t, 2, e.pendingCount())

	txn, err := e.store.BeginWrite()
	require.NoError(t, err)
	rolled, err := e.ledger.Rollback(txn, send1.Hash(), 64)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	// send2 first, then send1: exact reverse of apply order.
	require.Len(t, rolled, 2)
	require.Equal(t, send2.Hash(), rolled[0].Hash())
	require.Equal(t, send1.Hash(), rolled[1].Hash())

	require.False(t, e.blockExists(send1.Hash()))
	require.False(t, e.blockExists(send2.Hash()))
	require.EqualValues(t, 0, e.pendingCount())

	info, ok := e.accountInfo(gen)
	require.True(t, ok)
	require.Equal(t, e.genesisHash(), info.Head)
	require.Equal(t, 0, info.Balance.Cmp(supply))
	require.Equal(t, 0, e.ledger.Weight(gen).Cmp(supply))
}

func TestRollbackSendFollowsReceiver(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	supply := e.network.TotalSupply
	destPriv, destAccount := testKey(12)

	balance, _ := supply.Sub(consensus.AmountFromUint64(100))
	send := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, destAccount.Link(), balance)
	require.Equal(t, consensus.Progress, e.process(send, false))
	open := e.stateBlock(destPriv, destAccount, consensus.Hash{}, destAccount, send.Hash().Link(), consensus.AmountFromUint64(100))
	require.Equal(t, consensus.Progress, e.process(open, false))

	txn, err := e.store.BeginWrite()
	require.NoError(t, err)
	rolled, err := e.ledger.Rollback(txn, send.Hash(), 64)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	// The receiving open had to go first.
	require.Len(t, rolled, 2)
	require.Equal(t, open.Hash(), rolled[0].Hash())
	require.Equal(t, send.Hash(), rolled[1].Hash())

	_, ok := e.accountInfo(destAccount)
	require.False(t, ok, "destination account must be gone")
	require.EqualValues(t, 0, e.pendingCount())
	require.Equal(t, 0, e.ledger.Weight(gen).Cmp(supply))
	require.EqualValues(t, 0, e.ledger.Weight(destAccount).Uint64())
}

func TestRollbackDepthGuard(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	destPriv, destAccount := testKey(13)

	balance, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(1))
	send := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, destAccount.Link(), balance)
	require.Equal(t, consensus.Progress, e.process(send, false))
	open := e.stateBlock(destPriv, destAccount, consensus.Hash{}, destAccount, send.Hash().Link(), consensus.AmountFromUint64(1))
	require.Equal(t, consensus.Progress, e.process(open, false))

	txn, err := e.store.BeginWrite()
	require.NoError(t, err)
	defer txn.Discard()
	_, err = e.ledger.Rollback(txn, send.Hash(), 1)
	require.ErrorIs(t, err, ErrRollbackDepth)
}

func TestRollbackRefusesConfirmed(t *testing.T) {
	e := newTestEnv(t)
	txn, err := e.store.BeginWrite()
	require.NoError(t, err)
	defer txn.Discard()
	_, err = e.ledger.Rollback(txn, e.genesisHash(), 64)
	require.ErrorIs(t, err, ErrBelowConfirmed)
}

func TestLegacyChainAndNegativeSpend(t *testing.T) {
	e := newTestEnv(t)
	supply := e.network.TotalSupply
	_, destAccount := testKey(14)

	staleSend := e.finish(&consensus.Block{
		Type:        consensus.BlockTypeSend,
		Previous:    e.genesisHash(),
		Destination: destAccount,
		Balance:     supply,
	}, e.genPriv)

	balance, _ := supply.Sub(consensus.AmountFromUint64(25))
	legacySend := e.finish(&consensus.Block{
		Type:        consensus.BlockTypeSend,
		Previous:    e.genesisHash(),
		Destination: destAccount,
		Balance:     balance,
	}, e.genPriv)
	require.Equal(t, consensus.Progress, e.process(legacySend, false))

	// The chain has moved on; a second send off the old head forks.
	require.Equal(t, consensus.Fork, e.process(staleSend, false))

	destPriv, _ := testKey(14)
	legacyOpen := e.finish(&consensus.Block{
		Type:           consensus.BlockTypeOpen,
		Source:         legacySend.Hash(),
		Representative: destAccount,
		Account:        destAccount,
	}, destPriv)
	require.Equal(t, consensus.Progress, e.process(legacyOpen, false))

	info, ok := e.accountInfo(destAccount)
	require.True(t, ok)
	require.EqualValues(t, 25, info.Balance.Uint64())
	require.EqualValues(t, 25, e.ledger.Weight(destAccount).Uint64())

	// A legacy send above the previous balance is a negative spend.
	tooMuch, _ := balance.Add(consensus.AmountFromUint64(1))
	negative := e.finish(&consensus.Block{
		Type:        consensus.BlockTypeSend,
		Previous:    legacySend.Hash(),
		Destination: destAccount,
		Balance:     tooMuch,
	}, e.genPriv)
	require.Equal(t, consensus.NegativeSpend, e.process(negative, false))
}

func TestPruneRefusesHeadAndOpenBlocks(t *testing.T) {
	e := newTestEnv(t)
	gen := e.genesisAccount()
	_, dest := testKey(15)

	balance, _ := e.network.TotalSupply.Sub(consensus.AmountFromUint64(2))
	send := e.stateBlock(e.genPriv, gen, e.genesisHash(), gen, dest.Link(), balance)
	require.Equal(t, consensus.Progress, e.process(send, false))

	txn, err := e.store.BeginWrite()
	require.NoError(t, err)
	// Head blocks are protected.
	require.Error(t, e.ledger.Prune(txn, send.Hash()))
	// Genesis is the open block; also protected.
	require.Error(t, e.ledger.Prune(txn, e.genesisHash()))
	txn.Discard()
}
