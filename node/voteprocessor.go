package node

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"weft.dev/node/consensus"
	"weft.dev/node/node/sigcheck"
)

// VoteCode classifies one processed vote.
type VoteCode uint8

const (
	// VoteAccepted is a fresh, correctly signed vote.
	VoteAccepted VoteCode = iota
	// VoteReplay repeats or predates a vote already seen for the account.
	VoteReplay
	// VoteInvalid failed signature or shape checks.
	VoteInvalid
	// VoteIndeterminate comes from an account with no voting weight in this
	// ledger.
	VoteIndeterminate
)

func (c VoteCode) String() string {
	switch c {
	case VoteAccepted:
		return "vote"
	case VoteReplay:
		return "replay"
	case VoteInvalid:
		return "invalid"
	default:
		return "indeterminate"
	}
}

const voteProcessorMaxQueue = 65536

// VoteProcessor verifies queued votes in batches through the signature
// checker and fans codes out to observers. Replay detection tracks the
// newest raw timestamp per voting account.
type VoteProcessor struct {
	checker   *sigcheck.Checker
	ledger    *Ledger
	observers *Observers
	metrics   *Metrics
	log       logrus.FieldLogger
	uniquer   *consensus.VoteUniquer
	latest    *lru.Cache[consensus.Account, uint64]

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []*consensus.Vote
	processing bool
	stopped    bool
	wg         sync.WaitGroup

	TotalProcessed uint64
}

func NewVoteProcessor(checker *sigcheck.Checker, ledger *Ledger, observers *Observers, metrics *Metrics, log logrus.FieldLogger, uniquerSize int) *VoteProcessor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	latest, _ := lru.New[consensus.Account, uint64](uniquerSize)
	p := &VoteProcessor{
		checker:   checker,
		ledger:    ledger,
		observers: observers,
		metrics:   metrics,
		log:       log.WithField("component", "voteprocessor"),
		uniquer:   consensus.NewVoteUniquer(uniquerSize),
		latest:    latest,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *VoteProcessor) Start() {
	p.wg.Add(1)
	go p.run()
}

func (p *VoteProcessor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// Vote enqueues; the return is false when the vote was taken.
func (p *VoteProcessor) Vote(v *consensus.Vote) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || len(p.queue) >= voteProcessorMaxQueue {
		return true
	}
	p.queue = append(p.queue, p.uniquer.Unique(v))
	p.cond.Signal()
	return false
}

func (p *VoteProcessor) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *VoteProcessor) Empty() bool { return p.Size() == 0 }

// Flush blocks until the queue observed at call time has drained,
// including the batch being verified.
func (p *VoteProcessor) Flush() {
	p.mu.Lock()
	for !p.stopped && (len(p.queue) > 0 || p.processing) {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

func (p *VoteProcessor) run() {
	defer p.wg.Done()
	p.mu.Lock()
	for {
		if p.stopped {
			p.mu.Unlock()
			return
		}
		if len(p.queue) > 0 {
			batch := p.queue
			p.queue = nil
			p.processing = true
			p.mu.Unlock()
			p.verifyVotes(batch)
			p.mu.Lock()
			p.processing = false
			p.cond.Broadcast() // wake Flush waiters
			continue
		}
		p.cond.Wait()
	}
}

func (p *VoteProcessor) verifyVotes(votes []*consensus.Vote) {
	set := &sigcheck.Set{
		Messages:      make([][]byte, len(votes)),
		PubKeys:       make([]consensus.Account, len(votes)),
		Signatures:    make([]consensus.Signature, len(votes)),
		Verifications: make([]int, len(votes)),
	}
	for i, v := range votes {
		set.Messages[i] = v.MessageBytes()
		set.PubKeys[i] = v.Account
		set.Signatures[i] = v.Signature
	}
	if !p.checker.Verify(set) {
		// Checker stopped mid-batch; drop the votes on the floor, the
		// node is shutting down.
		return
	}
	for i, v := range votes {
		code := p.classify(v, set.Verifications[i] == 1)
		p.mu.Lock()
		p.TotalProcessed++
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.VotesProcessed.WithLabelValues(code.String()).Inc()
		}
		p.observers.notifyVote(v, code)
	}
}

func (p *VoteProcessor) classify(v *consensus.Vote, sigValid bool) VoteCode {
	if !sigValid || len(v.Hashes) == 0 || len(v.Hashes) > consensus.VoteMaxHashes {
		return VoteInvalid
	}
	if p.ledger.Weight(v.Account).IsZero() {
		return VoteIndeterminate
	}
	if last, ok := p.latest.Get(v.Account); ok && v.TimestampRaw <= last {
		return VoteReplay
	}
	p.latest.Add(v.Account, v.TimestampRaw)
	return VoteAccepted
}
