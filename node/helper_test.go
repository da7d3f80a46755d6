package node

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"weft.dev/node/consensus"
	"weft.dev/node/crypto"
	"weft.dev/node/node/store"
)

// testEnv wires a dev-network ledger over a temp store. Work is generated
// against the hardest dev floor so any block passes any threshold.
type testEnv struct {
	t        *testing.T
	store    *store.Store
	ledger   *Ledger
	network  *Network
	provider crypto.Ed25519Provider
	genPriv  crypto.PrivateKey
	log      *logrus.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	network, priv, err := DevNetwork()
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	ledger, err := NewLedger(s, network, crypto.Ed25519Provider{}, log)
	require.NoError(t, err)
	return &testEnv{
		t:       t,
		store:   s,
		ledger:  ledger,
		network: network,
		genPriv: priv,
		log:     log,
	}
}

func (e *testEnv) genesisAccount() consensus.Account {
	return e.network.GenesisAccount
}

func (e *testEnv) genesisHash() consensus.Hash {
	return e.network.Genesis.Hash()
}

// finish signs the block and attaches passing work.
func (e *testEnv) finish(b *consensus.Block, priv crypto.PrivateKey) *consensus.Block {
	hash := b.Hash()
	b.Signature = e.provider.Sign(priv, hash[:])
	b.Work = consensus.GenerateWork(b.Root(), e.network.WorkThresholds.Epoch2)
	return b
}

// finishWeakWork signs the block with work that misses every floor.
func (e *testEnv) finishWeakWork(b *consensus.Block, priv crypto.PrivateKey) *consensus.Block {
	hash := b.Hash()
	b.Signature = e.provider.Sign(priv, hash[:])
	for nonce := uint64(1); ; nonce++ {
		if consensus.WorkValue(b.Root(), nonce) < e.network.WorkThresholds.Epoch2Receive {
			b.Work = nonce
			return b
		}
	}
}

func (e *testEnv) stateBlock(priv crypto.PrivateKey, account consensus.Account, previous consensus.Hash, rep consensus.Account, link consensus.Link, balance consensus.Amount) *consensus.Block {
	return e.finish(&consensus.Block{
		Type:           consensus.BlockTypeState,
		Account:        account,
		Previous:       previous,
		Representative: rep,
		Link:           link,
		Balance:        balance,
	}, priv)
}

// process applies a block through its own write transaction.
func (e *testEnv) process(b *consensus.Block, forced bool) consensus.ProcessResult {
	e.t.Helper()
	txn, err := e.store.BeginWrite()
	require.NoError(e.t, err)
	status, perr := e.ledger.Process(txn, b, forced)
	require.NoError(e.t, perr)
	require.NoError(e.t, txn.Commit())
	return status
}

func (e *testEnv) accountInfo(account consensus.Account) (store.AccountInfo, bool) {
	e.t.Helper()
	txn, err := e.store.BeginRead()
	require.NoError(e.t, err)
	defer txn.Discard()
	info, ok, err := txn.AccountGet(account)
	require.NoError(e.t, err)
	return info, ok
}

func (e *testEnv) pendingCount() uint64 {
	e.t.Helper()
	txn, err := e.store.BeginRead()
	require.NoError(e.t, err)
	defer txn.Discard()
	return txn.PendingCount()
}

func (e *testEnv) blockExists(hash consensus.Hash) bool {
	e.t.Helper()
	txn, err := e.store.BeginRead()
	require.NoError(e.t, err)
	defer txn.Discard()
	return txn.BlockExists(hash)
}

func testKey(seed byte) (crypto.PrivateKey, consensus.Account) {
	var s [32]byte
	s[0] = seed
	s[31] = 0x5A
	return crypto.KeyFromSeed(s)
}
