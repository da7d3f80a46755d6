// Package bootstrap implements the ascending bootstrap engine's working
// sets: accounts prioritized for pulling, and accounts paused until a
// named dependency arrives.
package bootstrap

import (
	"sync"
	"time"

	rbt "github.com/emirpasic/gods/trees/redblacktree"

	"weft.dev/node/consensus"
)

const (
	PriorityInitial  = 2.0
	PriorityIncrease = 2.0
	PriorityDecrease = 0.5
	PriorityMax      = 128.0
	PriorityCutoff   = 1.0
)

// Growth selects how repeated PriorityUp calls move an entry.
type Growth uint8

const (
	GrowthAdditive Growth = iota
	GrowthMultiplicative
)

type Config struct {
	PrioritiesMax uint64
	BlockingMax   uint64
	CooldownMS    uint64
	Growth        Growth
}

func DefaultConfig() Config {
	return Config{
		PrioritiesMax: 262144,
		BlockingMax:   262144,
		CooldownMS:    3000,
		Growth:        GrowthAdditive,
	}
}

type priorityEntry struct {
	account     consensus.Account
	priority    float64
	timestampMS uint64
	id          uint64
}

type blockingEntry struct {
	account     consensus.Account
	dependency  consensus.Hash
	original    priorityEntry // zero account when none existed
	timestampMS uint64
	id          uint64
}

// orderKey sorts by priority ascending, insertion id breaking ties, so the
// leftmost node is always the eviction victim and reverse iteration yields
// highest-priority-first.
type orderKey struct {
	priority float64
	id       uint64
}

func orderCompare(a, b interface{}) int {
	ka, kb := a.(orderKey), b.(orderKey)
	switch {
	case ka.priority < kb.priority:
		return -1
	case ka.priority > kb.priority:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}

func idCompare(a, b interface{}) int {
	ka, kb := a.(uint64), b.(uint64)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}

// AccountSets keeps the two multi-indexed collections under one lock. An
// account lives in priorities or blocking, never both.
type AccountSets struct {
	mu     sync.Mutex
	cfg    Config
	nowMS  func() uint64
	nextID uint64

	priByAccount  map[consensus.Account]*priorityEntry
	priByPriority *rbt.Tree // orderKey -> *priorityEntry
	priBySequence *rbt.Tree // id -> *priorityEntry

	blkByAccount  map[consensus.Account]*blockingEntry
	blkByPriority *rbt.Tree // orderKey (original priority) -> *blockingEntry
	blkBySequence *rbt.Tree // id -> *blockingEntry

	// blockingCursor replaces the original's function-local iterator: the
	// sequence id the last NextBlocking call stopped at.
	blockingCursor uint64
}

func NewAccountSets(cfg Config) *AccountSets {
	return &AccountSets{
		cfg:           cfg,
		nowMS:         func() uint64 { return uint64(time.Now().UnixMilli()) },
		priByAccount:  make(map[consensus.Account]*priorityEntry),
		priByPriority: rbt.NewWith(orderCompare),
		priBySequence: rbt.NewWith(idCompare),
		blkByAccount:  make(map[consensus.Account]*blockingEntry),
		blkByPriority: rbt.NewWith(orderCompare),
		blkBySequence: rbt.NewWith(idCompare),
	}
}

// SetClock overrides the millisecond clock; tests use this to step time.
func (s *AccountSets) SetClock(nowMS func() uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowMS = nowMS
}

func (s *AccountSets) grow(p float64) float64 {
	switch s.cfg.Growth {
	case GrowthMultiplicative:
		p *= PriorityIncrease
	default:
		p += PriorityIncrease
	}
	if p > PriorityMax {
		p = PriorityMax
	}
	return p
}

// PriorityUp inserts the account at the initial priority or raises an
// existing entry toward the ceiling. Blocked accounts are left alone.
func (s *AccountSets) PriorityUp(account consensus.Account) {
	if account.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, blocked := s.blkByAccount[account]; blocked {
		return
	}
	if e, ok := s.priByAccount[account]; ok {
		s.priByPriority.Remove(orderKey{e.priority, e.id})
		e.priority = s.grow(e.priority)
		s.priByPriority.Put(orderKey{e.priority, e.id}, e)
		return
	}
	s.priorityInsert(&priorityEntry{account: account, priority: PriorityInitial})
	s.trimOverflow()
}

// PriorityDown decays the account's priority, erasing it at the cutoff.
func (s *AccountSets) PriorityDown(account consensus.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.priByAccount[account]
	if !ok {
		return
	}
	next := e.priority - PriorityDecrease
	if next <= PriorityCutoff {
		s.priorityErase(e)
		return
	}
	s.priByPriority.Remove(orderKey{e.priority, e.id})
	e.priority = next
	s.priByPriority.Put(orderKey{e.priority, e.id}, e)
}

// Block moves the account into the blocking set, carrying its priority
// entry so a later unblock restores its former rank.
func (s *AccountSets) Block(account consensus.Account, dependency consensus.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var original priorityEntry
	if e, ok := s.priByAccount[account]; ok {
		original = *e
		s.priorityErase(e)
	}
	if old, ok := s.blkByAccount[account]; ok {
		s.blockingErase(old)
	}
	s.nextID++
	e := &blockingEntry{account: account, dependency: dependency, original: original, id: s.nextID}
	s.blkByAccount[account] = e
	s.blkByPriority.Put(orderKey{e.original.priority, e.id}, e)
	s.blkBySequence.Put(e.id, e)
	s.trimOverflow()
}

// Unblock reinstates the account's prior priority entry if its dependency
// matches (or no hash is given).
func (s *AccountSets) Unblock(account consensus.Account, hash *consensus.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.blkByAccount[account]
	if !ok || (hash != nil && e.dependency != *hash) {
		return
	}
	if !e.original.account.IsZero() {
		s.priorityInsert(&priorityEntry{
			account:     e.original.account,
			priority:    e.original.priority,
			timestampMS: e.original.timestampMS,
		})
	} else {
		s.priorityInsert(&priorityEntry{account: account, priority: PriorityInitial})
	}
	s.blockingErase(e)
	s.trimOverflow()
}

// Timestamp stamps the account's cooldown clock; reset makes it
// immediately eligible again.
func (s *AccountSets) Timestamp(account consensus.Account, reset bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.priByAccount[account]
	if !ok {
		return
	}
	if reset {
		e.timestampMS = 0
	} else {
		e.timestampMS = s.nowMS()
	}
}

func (s *AccountSets) checkTimestamp(e *priorityEntry) bool {
	return s.nowMS()-e.timestampMS >= s.cfg.CooldownMS
}

// Next returns the highest-priority account whose cooldown has elapsed,
// ties going to the most recently inserted entry, stamping the entry it
// returns so
// consecutive calls rotate; zero if none qualifies.
func (s *AccountSets) Next() consensus.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.priByPriority.Iterator()
	for it.End(); it.Prev(); {
		e := it.Value().(*priorityEntry)
		if !e.account.IsZero() && s.checkTimestamp(e) {
			e.timestampMS = s.nowMS()
			return e.account
		}
	}
	return consensus.Account{}
}

// NextBlocking round-robins across blocking entries whose own cooldown has
// elapsed, stamping the entry it returns; zero if none qualifies.
func (s *AccountSets) NextBlocking() consensus.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := s.blkBySequence.Size()
	if size == 0 {
		return consensus.Hash{}
	}
	cursor := s.blockingCursor
	for i := 0; i < size; i++ {
		node, ok := s.blkBySequence.Ceiling(cursor + 1)
		if !ok {
			cursor = 0
			node, ok = s.blkBySequence.Ceiling(cursor)
			if !ok {
				return consensus.Hash{}
			}
		}
		e := node.Value.(*blockingEntry)
		cursor = e.id
		if s.nowMS()-e.timestampMS >= s.cfg.CooldownMS {
			e.timestampMS = s.nowMS()
			s.blockingCursor = e.id
			return e.dependency
		}
	}
	s.blockingCursor = cursor
	return consensus.Hash{}
}

func (s *AccountSets) Blocked(account consensus.Account) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blkByAccount[account]
	return ok
}

// Priority reports the account's current priority: zero when blocked, the
// cutoff when untracked.
func (s *AccountSets) Priority(account consensus.Account) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, blocked := s.blkByAccount[account]; blocked {
		return 0
	}
	if e, ok := s.priByAccount[account]; ok {
		return e.priority
	}
	return PriorityCutoff
}

func (s *AccountSets) PrioritySize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.priByAccount)
}

func (s *AccountSets) BlockedSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blkByAccount)
}

func (s *AccountSets) priorityInsert(e *priorityEntry) {
	if old, ok := s.priByAccount[e.account]; ok {
		s.priorityErase(old)
	}
	s.nextID++
	e.id = s.nextID
	s.priByAccount[e.account] = e
	s.priByPriority.Put(orderKey{e.priority, e.id}, e)
	s.priBySequence.Put(e.id, e)
}

func (s *AccountSets) priorityErase(e *priorityEntry) {
	delete(s.priByAccount, e.account)
	s.priByPriority.Remove(orderKey{e.priority, e.id})
	s.priBySequence.Remove(e.id)
}

func (s *AccountSets) blockingErase(e *blockingEntry) {
	delete(s.blkByAccount, e.account)
	s.blkByPriority.Remove(orderKey{e.original.priority, e.id})
	s.blkBySequence.Remove(e.id)
}

// trimOverflow evicts lowest-priority entries until both sets fit their
// bounds.
func (s *AccountSets) trimOverflow() {
	for uint64(len(s.priByAccount)) > s.cfg.PrioritiesMax {
		victim := s.priByPriority.Left().Value.(*priorityEntry)
		s.priorityErase(victim)
	}
	for uint64(len(s.blkByAccount)) > s.cfg.BlockingMax {
		victim := s.blkByPriority.Left().Value.(*blockingEntry)
		s.blockingErase(victim)
	}
}
