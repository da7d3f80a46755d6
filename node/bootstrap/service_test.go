package bootstrap

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"weft.dev/node/consensus"
)

type recordingRequester struct {
	mu       sync.Mutex
	accounts []consensus.Account
	hashes   []consensus.Hash
}

func (r *recordingRequester) RequestAccount(a consensus.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, a)
}

func (r *recordingRequester) RequestBlock(h consensus.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes = append(r.hashes, h)
}

func (r *recordingRequester) snapshot() ([]consensus.Account, []consensus.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]consensus.Account(nil), r.accounts...), append([]consensus.Hash(nil), r.hashes...)
}

func TestServiceRequestsPriorityAccount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CooldownMS = 50
	sets, _ := newTestSets(cfg)
	req := &recordingRequester{}
	svc := NewService(sets, req, cfg, nil)

	a := account(1)
	sets.PriorityUp(a)

	svc.Start()
	defer svc.Stop()
	require.Eventually(t, func() bool {
		accounts, _ := req.snapshot()
		return len(accounts) > 0 && accounts[0] == a
	}, time.Second, 5*time.Millisecond)
}

func TestServiceFallsBackToBlocking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CooldownMS = 50
	sets, _ := newTestSets(cfg)
	req := &recordingRequester{}
	svc := NewService(sets, req, cfg, nil)

	dep := hash(7)
	sets.Block(account(2), dep)

	svc.Start()
	defer svc.Stop()
	require.Eventually(t, func() bool {
		_, hashes := req.snapshot()
		for _, h := range hashes {
			if h == dep {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestInspectFeedsSets(t *testing.T) {
	cfg := DefaultConfig()
	sets, _ := newTestSets(cfg)
	svc := NewService(sets, &recordingRequester{}, cfg, nil)

	sender := account(3)
	dest := account(4)
	dep := hash(8)

	// A missing source parks the account under the dependency.
	gapped := &consensus.Block{Type: consensus.BlockTypeState, Account: sender}
	svc.Inspect(consensus.GapSource, gapped, dep)
	require.True(t, sets.Blocked(sender))

	// The landed dependency unblocks and re-prioritizes.
	landed := &consensus.Block{Type: consensus.BlockTypeState, Account: sender}
	landed.Sideband = &consensus.Sideband{Account: sender}
	svc.Inspect(consensus.Progress, landed, consensus.Hash{})
	require.False(t, sets.Blocked(sender))
	require.Greater(t, sets.Priority(sender), PriorityCutoff)

	// A landed send raises the destination too.
	send := &consensus.Block{Type: consensus.BlockTypeState, Account: sender, Link: dest.Link()}
	send.Sideband = &consensus.Sideband{
		Account: sender,
		Details: consensus.BlockDetails{IsSend: true},
	}
	svc.Inspect(consensus.Progress, send, consensus.Hash{})
	require.Greater(t, sets.Priority(dest), PriorityCutoff)

	// Duplicates decay.
	before := sets.Priority(sender)
	svc.Inspect(consensus.Old, landed, consensus.Hash{})
	require.Less(t, sets.Priority(sender), before)
}

func TestServiceStopTerminates(t *testing.T) {
	cfg := DefaultConfig()
	sets, _ := newTestSets(cfg)
	svc := NewService(sets, &recordingRequester{}, cfg, nil)
	svc.Start()
	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("service did not stop")
	}
}
