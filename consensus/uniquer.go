package consensus

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultUniquerSize bounds each dedup cache.
const DefaultUniquerSize = 64 * 1024

// BlockUniquer collapses duplicate deserialized blocks arriving from many
// peers onto one in-memory instance, keyed by full hash. The cache is
// bounded; eviction only drops the canonical pointer, never the block held
// by live queues.
type BlockUniquer struct {
	cache *lru.Cache[Hash, *Block]
}

func NewBlockUniquer(size int) *BlockUniquer {
	if size <= 0 {
		size = DefaultUniquerSize
	}
	cache, _ := lru.New[Hash, *Block](size)
	return &BlockUniquer{cache: cache}
}

// Unique returns the canonical instance for the block's full hash,
// inserting the argument if none is cached.
func (u *BlockUniquer) Unique(b *Block) *Block {
	if b == nil {
		return nil
	}
	key := b.FullHash()
	if existing, ok := u.cache.Get(key); ok {
		return existing
	}
	u.cache.Add(key, b)
	return b
}

func (u *BlockUniquer) Size() int { return u.cache.Len() }

// VoteUniquer is the vote-side twin of BlockUniquer.
type VoteUniquer struct {
	cache *lru.Cache[Hash, *Vote]
}

func NewVoteUniquer(size int) *VoteUniquer {
	if size <= 0 {
		size = DefaultUniquerSize
	}
	cache, _ := lru.New[Hash, *Vote](size)
	return &VoteUniquer{cache: cache}
}

func (u *VoteUniquer) Unique(v *Vote) *Vote {
	if v == nil {
		return nil
	}
	key := v.FullHash()
	if existing, ok := u.cache.Get(key); ok {
		return existing
	}
	u.cache.Add(key, v)
	return v
}

func (u *VoteUniquer) Size() int { return u.cache.Len() }
