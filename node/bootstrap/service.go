package bootstrap

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"weft.dev/node/consensus"
)

// Requester is the peer-facing half of the ascending loop: it pulls an
// account's chain or fetches a single dependency block. Implementations
// live in the transport layer.
type Requester interface {
	RequestAccount(account consensus.Account)
	RequestBlock(hash consensus.Hash)
}

// Service drives the account sets: it asks the requester for the next
// prioritized account, falls back to blocking dependencies, and sleeps on
// cooldown when neither set has an eligible entry.
type Service struct {
	sets      *AccountSets
	requester Requester
	log       logrus.FieldLogger
	cooldown  time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewService(sets *AccountSets, requester Requester, cfg Config, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		sets:      sets,
		requester: requester,
		log:       log.WithField("component", "bootstrap"),
		cooldown:  time.Duration(cfg.CooldownMS) * time.Millisecond,
		stop:      make(chan struct{}),
	}
}

func (s *Service) Sets() *AccountSets { return s.sets }

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Service) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if !s.tick() {
			select {
			case <-s.stop:
				return
			case <-time.After(s.cooldown / 4):
			}
		}
	}
}

// tick issues at most one request; false means nothing was eligible.
func (s *Service) tick() bool {
	if account := s.sets.Next(); !account.IsZero() {
		s.sets.Timestamp(account, false)
		s.requester.RequestAccount(account)
		return true
	}
	if hash := s.sets.NextBlocking(); !hash.IsZero() {
		s.requester.RequestBlock(hash)
		return true
	}
	return false
}

// Inspect feeds one processor outcome back into the sets: landed blocks
// raise their account (and unblock sends' destinations), missing sources
// park the account under the dependency, and duplicates decay it.
func (s *Service) Inspect(status consensus.ProcessResult, b *consensus.Block, dependency consensus.Hash) {
	account := b.Account
	if account.IsZero() && b.Sideband != nil {
		account = b.Sideband.Account
	}
	switch status {
	case consensus.Progress:
		s.sets.Unblock(account, nil)
		s.sets.PriorityUp(account)
		if b.Sideband != nil && b.Sideband.Details.IsSend {
			dest := b.Destination
			if b.Type == consensus.BlockTypeState {
				dest = b.Link.Account()
			}
			hash := b.Hash()
			s.sets.Unblock(dest, &hash)
			s.sets.PriorityUp(dest)
		}
	case consensus.GapSource:
		if !account.IsZero() {
			s.sets.Block(account, dependency)
		}
	case consensus.Old:
		s.sets.PriorityDown(account)
	}
}
