package node

import (
	"sync"

	"weft.dev/node/consensus"
)

// Observer sets fan processor events out to the election engine,
// confirmation processing and broadcasters. Registration is not
// synchronized with delivery ordering beyond the processor's own
// guarantees: per-block callbacks fire in ledger order, the batch callback
// once per committed batch.

type BlockProcessedFn func(consensus.ProcessResult, ProcessedContext)

type BatchProcessedFn func([]ProcessedEntry)

type RolledBackFn func(*consensus.Block)

type VoteProcessedFn func(*consensus.Vote, VoteCode)

type Observers struct {
	mu             sync.Mutex
	blockProcessed []BlockProcessedFn
	batchProcessed []BatchProcessedFn
	rolledBack     []RolledBackFn
	vote           []VoteProcessedFn
}

func (o *Observers) OnBlockProcessed(fn BlockProcessedFn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.blockProcessed = append(o.blockProcessed, fn)
}

func (o *Observers) OnBatchProcessed(fn BatchProcessedFn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batchProcessed = append(o.batchProcessed, fn)
}

func (o *Observers) OnRolledBack(fn RolledBackFn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rolledBack = append(o.rolledBack, fn)
}

func (o *Observers) OnVote(fn VoteProcessedFn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.vote = append(o.vote, fn)
}

func (o *Observers) notifyBlockProcessed(status consensus.ProcessResult, ctx ProcessedContext) {
	o.mu.Lock()
	fns := append([]BlockProcessedFn(nil), o.blockProcessed...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn(status, ctx)
	}
}

func (o *Observers) notifyBatchProcessed(batch []ProcessedEntry) {
	o.mu.Lock()
	fns := append([]BatchProcessedFn(nil), o.batchProcessed...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn(batch)
	}
}

func (o *Observers) notifyRolledBack(b *consensus.Block) {
	o.mu.Lock()
	fns := append([]RolledBackFn(nil), o.rolledBack...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn(b)
	}
}

func (o *Observers) notifyVote(v *consensus.Vote, code VoteCode) {
	o.mu.Lock()
	fns := append([]VoteProcessedFn(nil), o.vote...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn(v, code)
	}
}
