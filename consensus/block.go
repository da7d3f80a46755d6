package consensus

import (
	"encoding/binary"
	"fmt"
)

type BlockType uint8

const (
	BlockTypeInvalid BlockType = iota
	blockTypeNotABlock
	BlockTypeSend
	BlockTypeReceive
	BlockTypeOpen
	BlockTypeChange
	BlockTypeState
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeSend:
		return "send"
	case BlockTypeReceive:
		return "receive"
	case BlockTypeOpen:
		return "open"
	case BlockTypeChange:
		return "change"
	case BlockTypeState:
		return "state"
	default:
		return fmt.Sprintf("block_type(%d)", uint8(t))
	}
}

func (t BlockType) Valid() bool {
	return t >= BlockTypeSend && t <= BlockTypeState
}

func (t BlockType) IsLegacy() bool {
	return t >= BlockTypeSend && t <= BlockTypeChange
}

// Block is the tagged union over the five variants. Unused fields are zero
// for a given type; which fields a variant carries is a codec concern, not
// a struct one (BlockType.Valid() only checks the type tag). Blocks are immutable after construction
// except for the sideband, which is populated at insert time.
//
//	send:    Previous, Destination, Balance
//	receive: Previous, Source
//	open:    Source, Representative, Account
//	change:  Previous, Representative
//	state:   Account, Previous, Representative, Link, Balance
type Block struct {
	Type           BlockType
	Account        Account
	Previous       Hash
	Representative Account
	Balance        Amount
	Source         Hash
	Destination    Account
	Link           Link

	Signature Signature
	Work      uint64

	// Sideband is nil while the block is in flight and set once persisted.
	Sideband *Sideband
}

// Hash computes the content hash over the variant-specific preimage.
func (b *Block) Hash() Hash {
	switch b.Type {
	case BlockTypeSend:
		balance := b.Balance.Bytes16()
		return blake2b256(b.Previous[:], b.Destination[:], balance[:])
	case BlockTypeReceive:
		return blake2b256(b.Previous[:], b.Source[:])
	case BlockTypeOpen:
		return blake2b256(b.Source[:], b.Representative[:], b.Account[:])
	case BlockTypeChange:
		return blake2b256(b.Previous[:], b.Representative[:])
	case BlockTypeState:
		var preamble [32]byte
		preamble[31] = byte(BlockTypeState)
		balance := b.Balance.Bytes16()
		return blake2b256(preamble[:], b.Account[:], b.Previous[:], b.Representative[:], b.Link[:], balance[:])
	default:
		return Hash{}
	}
}

// FullHash additionally folds signature and work; it keys the uniquer so
// that equal contents with differing work or signature stay distinct.
func (b *Block) FullHash() Hash {
	h := b.Hash()
	var work [8]byte
	binary.LittleEndian.PutUint64(work[:], b.Work)
	return blake2b256(h[:], b.Signature[:], work[:])
}

// Root is the value work is computed against: the previous-block hash, or
// the account for blocks that open a chain.
func (b *Block) Root() Root {
	switch b.Type {
	case BlockTypeOpen:
		return Root(b.Account)
	case BlockTypeState:
		if b.Previous.IsZero() {
			return Root(b.Account)
		}
		return Root(b.Previous)
	default:
		return Root(b.Previous)
	}
}

// IsOpening reports whether the block starts its account's chain.
func (b *Block) IsOpening() bool {
	return b.Type == BlockTypeOpen || (b.Type == BlockTypeState && b.Previous.IsZero())
}
