// Package sigcheck batches ed25519 verification across a fixed worker
// pool. Both incoming blocks and votes funnel through here; the unit of
// work is a flat set of (message, key, signature) triples with
// caller-owned result slots.
package sigcheck

import (
	"sync"

	"weft.dev/node/consensus"
	"weft.dev/node/crypto"
)

// BatchSize is the sub-batch granularity one worker verifies at a time.
const BatchSize = 256

// Set is one verification request. Messages, PubKeys, Signatures and
// Verifications must be the same length; on return Verifications[i] is 1
// for a valid triple and 0 otherwise.
type Set struct {
	Messages      [][]byte
	PubKeys       []consensus.Account
	Signatures    []consensus.Signature
	Verifications []int
}

func (s *Set) size() int { return len(s.Messages) }

type task struct {
	set    *Set
	offset int
	length int
	wg     *sync.WaitGroup
}

type Checker struct {
	provider crypto.Provider
	tasks    chan task

	mu       sync.Mutex
	inFlight int
	idle     *sync.Cond
	stopped  bool

	workers sync.WaitGroup
}

func NewChecker(provider crypto.Provider, threads int) *Checker {
	if threads < 1 {
		threads = 1
	}
	c := &Checker{
		provider: provider,
		tasks:    make(chan task, threads*4),
	}
	c.idle = sync.NewCond(&c.mu)
	c.workers.Add(threads)
	for i := 0; i < threads; i++ {
		go c.worker()
	}
	return c
}

func (c *Checker) worker() {
	defer c.workers.Done()
	for t := range c.tasks {
		c.verifyBatch(t)
	}
}

func (c *Checker) verifyBatch(t task) {
	end := t.offset + t.length
	c.provider.BatchVerify(
		t.set.Messages[t.offset:end],
		t.set.PubKeys[t.offset:end],
		t.set.Signatures[t.offset:end],
		t.set.Verifications[t.offset:end],
	)
	t.wg.Done()
}

// Verify checks the whole set, splitting it into BatchSize sub-batches
// dispatched across the pool. The calling thread verifies batches the pool
// cannot take immediately, so a saturated pool never head-of-line blocks
// the caller. Returns false without touching the set if the checker is
// stopped.
func (c *Checker) Verify(set *Set) bool {
	if set.size() == 0 {
		return true
	}
	if set.size() != len(set.PubKeys) || set.size() != len(set.Signatures) || set.size() != len(set.Verifications) {
		panic("sigcheck: mismatched set lengths")
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	c.inFlight++
	c.mu.Unlock()

	var wg sync.WaitGroup
	for off := 0; off < set.size(); off += BatchSize {
		length := set.size() - off
		if length > BatchSize {
			length = BatchSize
		}
		t := task{set: set, offset: off, length: length, wg: &wg}
		wg.Add(1)
		select {
		case c.tasks <- t:
		default:
			c.verifyBatch(t)
		}
	}
	wg.Wait()

	c.mu.Lock()
	c.inFlight--
	if c.inFlight == 0 {
		c.idle.Broadcast()
	}
	c.mu.Unlock()
	return true
}

// Flush blocks until every in-flight set has its results committed.
func (c *Checker) Flush() {
	c.mu.Lock()
	for c.inFlight > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Stop drains in-flight work and shuts the pool down; subsequent Verify
// calls are rejected.
func (c *Checker) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	for c.inFlight > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
	close(c.tasks)
	c.workers.Wait()
}
