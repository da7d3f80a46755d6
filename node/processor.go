package node

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"weft.dev/node/consensus"
	"weft.dev/node/node/store"
)

// BlockSource tags where a candidate block entered the pipeline.
type BlockSource uint8

const (
	SourceUnknown BlockSource = iota
	SourceLive
	SourceBootstrap
	SourceBootstrapLegacy
	SourceUnchecked
	SourceLocal
	SourceForced
)

func (s BlockSource) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceBootstrap:
		return "bootstrap"
	case SourceBootstrapLegacy:
		return "bootstrap_legacy"
	case SourceUnchecked:
		return "unchecked"
	case SourceLocal:
		return "local"
	case SourceForced:
		return "forced"
	default:
		return "unknown"
	}
}

// ProcessedContext is the observer-facing view of one queue entry.
type ProcessedContext struct {
	Block   *consensus.Block
	Source  BlockSource
	Arrival time.Time
}

type ProcessedEntry struct {
	Status  consensus.ProcessResult
	Context ProcessedContext
}

type processOutcome struct {
	status consensus.ProcessResult
	err    error
	ok     bool
}

type blockContext struct {
	block   *consensus.Block
	source  BlockSource
	arrival time.Time
	done    chan processOutcome
}

func (c *blockContext) resolve(out processOutcome) {
	if c.done != nil {
		c.done <- out
		c.done = nil
	}
}

// BlockProcessor converts candidate blocks from heterogeneous sources into
// ledger writes with single-writer semantics. One worker owns the write
// transaction; producers only touch the two queues.
type BlockProcessor struct {
	cfg       Config
	ledger    *Ledger
	observers *Observers
	metrics   *Metrics
	log       logrus.FieldLogger
	uniquer   *consensus.BlockUniquer

	mu      sync.Mutex
	cond    *sync.Cond
	blocks  []blockContext
	forced  []blockContext
	stopped bool
	wg      sync.WaitGroup
}

func NewBlockProcessor(cfg Config, ledger *Ledger, observers *Observers, metrics *Metrics, log logrus.FieldLogger) *BlockProcessor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &BlockProcessor{
		cfg:       cfg,
		ledger:    ledger,
		observers: observers,
		metrics:   metrics,
		log:       log.WithField("component", "blockprocessor"),
		uniquer:   consensus.NewBlockUniquer(cfg.UniquerSize),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *BlockProcessor) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop wakes the worker, waits for it to exit, and resolves every queued
// blocking caller with no status.
func (p *BlockProcessor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()

	p.mu.Lock()
	leftover := append(p.forced, p.blocks...)
	p.blocks, p.forced = nil, nil
	p.mu.Unlock()
	for i := range leftover {
		leftover[i].resolve(processOutcome{ok: false})
	}
}

func (p *BlockProcessor) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.blocks) + len(p.forced)
}

func (p *BlockProcessor) Full() bool {
	return p.Size() >= p.cfg.BlockProcessorFullSize
}

func (p *BlockProcessor) HalfFull() bool {
	return p.Size() >= p.cfg.BlockProcessorFullSize/2
}

func (p *BlockProcessor) HaveBlocksReady() bool {
	return p.Size() > 0
}

// Add enqueues asynchronously.
func (p *BlockProcessor) Add(b *consensus.Block, source BlockSource) {
	p.addImpl(blockContext{block: p.uniquer.Unique(b), source: source, arrival: time.Now()})
}

// AddBlocking enqueues and awaits the block's status. It returns
// ErrStopped if the processor shut down first, or the fatal store error
// that aborted the block's batch.
func (p *BlockProcessor) AddBlocking(b *consensus.Block, source BlockSource) (consensus.ProcessResult, error) {
	done := make(chan processOutcome, 1)
	ctx := blockContext{block: p.uniquer.Unique(b), source: source, arrival: time.Now(), done: done}
	if !p.addImpl(ctx) {
		return 0, ErrStopped
	}
	out := <-done
	if !out.ok {
		return 0, ErrStopped
	}
	return out.status, out.err
}

// Force enqueues with fork-override priority.
func (p *BlockProcessor) Force(b *consensus.Block) {
	ctx := blockContext{block: p.uniquer.Unique(b), source: SourceForced, arrival: time.Now()}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.forced = append(p.forced, ctx)
	p.cond.Signal()
	p.mu.Unlock()
}

func (p *BlockProcessor) addImpl(ctx blockContext) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	if ctx.source == SourceForced {
		p.forced = append(p.forced, ctx)
	} else {
		p.blocks = append(p.blocks, ctx)
	}
	p.cond.Signal()
	p.mu.Unlock()
	return true
}

// next pops the next context, preferring forced one-for-one against normal
// blocks so both streams make progress.
func (p *BlockProcessor) next(preferForced bool) (blockContext, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pickForced := func() (blockContext, bool) {
		if len(p.forced) == 0 {
			return blockContext{}, false
		}
		ctx := p.forced[0]
		p.forced = p.forced[1:]
		return ctx, true
	}
	pickNormal := func() (blockContext, bool) {
		if len(p.blocks) == 0 {
			return blockContext{}, false
		}
		ctx := p.blocks[0]
		p.blocks = p.blocks[1:]
		return ctx, true
	}
	if preferForced {
		if ctx, ok := pickForced(); ok {
			return ctx, true
		}
		return pickNormal()
	}
	if ctx, ok := pickNormal(); ok {
		return ctx, true
	}
	return pickForced()
}

func (p *BlockProcessor) run() {
	defer p.wg.Done()
	p.mu.Lock()
	for {
		if p.stopped {
			p.mu.Unlock()
			return
		}
		if len(p.blocks)+len(p.forced) > 0 {
			p.mu.Unlock()
			p.processBatch()
			p.mu.Lock()
			continue
		}
		p.cond.Wait()
	}
}

func (p *BlockProcessor) processBatch() {
	txn, err := p.ledger.Store().BeginWrite()
	if err != nil {
		p.log.WithError(err).Error("failed to open write transaction")
		return
	}

	deadline := time.Now().Add(time.Duration(p.cfg.BlockProcessorBatchMaxTimeMS) * time.Millisecond)
	var entries []ProcessedEntry
	var contexts []blockContext
	var rolledBack []*consensus.Block
	var replay []*consensus.Block

	fatal := func(err error) {
		txn.Discard()
		p.log.WithError(err).Error("batch aborted on store error")
		for i := range contexts {
			contexts[i].resolve(processOutcome{err: err, ok: true})
		}
	}

	for i := 0; i < p.cfg.BlockProcessorBatchSize; i++ {
		if time.Now().After(deadline) {
			break
		}
		ctx, ok := p.next(i%2 == 0)
		if !ok {
			break
		}
		contexts = append(contexts, ctx)
		status, rolled, err := p.processOne(txn, ctx, &replay)
		if err != nil {
			fatal(err)
			return
		}
		rolledBack = append(rolledBack, rolled...)
		entries = append(entries, ProcessedEntry{
			Status: status,
			Context: ProcessedContext{
				Block:   ctx.block,
				Source:  ctx.source,
				Arrival: ctx.arrival,
			},
		})
	}

	if err := txn.Commit(); err != nil {
		p.log.WithError(err).Error("batch commit failed")
		for i := range contexts {
			contexts[i].resolve(processOutcome{err: err, ok: true})
		}
		return
	}

	// Observers fire after the commit: per-block rollbacks first, then
	// per-block statuses, then the batch callback.
	for _, b := range rolledBack {
		if p.metrics != nil {
			p.metrics.Rollbacks.Inc()
		}
		p.observers.notifyRolledBack(b)
	}
	for i := range entries {
		if p.metrics != nil {
			p.metrics.BlocksProcessed.WithLabelValues(entries[i].Status.String()).Inc()
			p.metrics.BlocksBySource.WithLabelValues(entries[i].Context.Source.String()).Inc()
		}
		contexts[i].resolve(processOutcome{status: entries[i].Status, ok: true})
		p.observers.notifyBlockProcessed(entries[i].Status, entries[i].Context)
	}
	p.observers.notifyBatchProcessed(entries)

	for _, b := range replay {
		if p.metrics != nil {
			p.metrics.UncheckedDrains.Inc()
		}
		p.Add(b, SourceUnchecked)
	}
}

func (p *BlockProcessor) processOne(txn *store.Txn, ctx blockContext, replay *[]*consensus.Block) (consensus.ProcessResult, []*consensus.Block, error) {
	b := ctx.block
	hash := b.Hash()
	forced := ctx.source == SourceForced

	status, err := p.ledger.Process(txn, b, forced)
	if err != nil {
		return 0, nil, err
	}

	var rolled []*consensus.Block
	if status == consensus.Fork && forced {
		competitor, found, err := p.competitorOf(txn, b)
		if err != nil {
			return 0, nil, err
		}
		if found {
			rolled, err = p.ledger.Rollback(txn, competitor, p.cfg.RollbackMaxDepth)
			if err != nil {
				return 0, rolled, err
			}
			p.log.WithFields(logrus.Fields{
				"winner": hash,
				"loser":  competitor,
				"count":  len(rolled),
			}).Info("rolled back fork competitor")
		}
		status, err = p.ledger.Process(txn, b, true)
		if err != nil {
			return 0, rolled, err
		}
	}

	switch {
	case status.IsGap():
		// Park for replay, gated on the entry work floor.
		thresholds := p.ledger.Network().WorkThresholds
		if consensus.WorkValue(b.Root(), b.Work) >= thresholds.ThresholdEntry(b.Type) {
			dep := p.ledger.DependencyKey(status, b)
			if err := txn.UncheckedPut(store.UncheckedKey{Dependency: dep, BlockHash: hash}, store.UncheckedInfo{
				Block:      b,
				Account:    b.Account,
				ModifiedMS: uint64(time.Now().UnixMilli()),
				Verified:   store.VerificationUnknown,
			}); err != nil {
				return 0, rolled, err
			}
		}
	case status == consensus.Progress:
		if err := p.queueUnchecked(txn, hash, replay); err != nil {
			return 0, rolled, err
		}
		if b.Sideband != nil && b.Sideband.Details.IsSend {
			dest := b.Destination
			if b.Type == consensus.BlockTypeState {
				dest = b.Link.Account()
			}
			if err := p.queueUnchecked(txn, consensus.Hash(dest), replay); err != nil {
				return 0, rolled, err
			}
		}
	}
	return status, rolled, nil
}

// queueUnchecked drains blocks parked under the given dependency back into
// the queue, at most BlockProcessorBatchSize entries per dependency, to
// keep replay storms in check.
func (p *BlockProcessor) queueUnchecked(txn *store.Txn, dep consensus.Hash, replay *[]*consensus.Block) error {
	infos, err := txn.UncheckedByDependency(dep, p.cfg.BlockProcessorBatchSize)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if err := txn.UncheckedDel(store.UncheckedKey{Dependency: dep, BlockHash: info.Block.Hash()}); err != nil {
			return err
		}
		*replay = append(*replay, info.Block)
	}
	return nil
}

// competitorOf resolves the block currently occupying the incoming block's
// slot in its account chain.
func (p *BlockProcessor) competitorOf(txn *store.Txn, b *consensus.Block) (consensus.Hash, bool, error) {
	if !b.Previous.IsZero() {
		prev, ok, err := txn.BlockGet(b.Previous)
		if err != nil || !ok {
			return consensus.Hash{}, false, err
		}
		if prev.Sideband.Successor.IsZero() {
			return consensus.Hash{}, false, nil
		}
		return prev.Sideband.Successor, true, nil
	}
	info, ok, err := txn.AccountGet(b.Account)
	if err != nil || !ok {
		return consensus.Hash{}, false, err
	}
	return info.OpenBlock, true, nil
}
