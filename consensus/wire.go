package consensus

import "encoding/binary"

// Block wire format: [type:u8][variant payload][signature:64][work:u64-LE].
// Multi-byte payload scalars are big-endian.

func readU8(b []byte, off *int) (uint8, error) {
	if *off+1 > len(b) {
		return 0, cerr(PARSE_ERR_TRUNCATED, "unexpected EOF (u8)")
	}
	v := b[*off]
	*off++
	return v, nil
}

func readU64le(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, cerr(PARSE_ERR_TRUNCATED, "unexpected EOF (u64le)")
	}
	v := binary.LittleEndian.Uint64(b[*off : *off+8])
	*off += 8
	return v, nil
}

func readU64be(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, cerr(PARSE_ERR_TRUNCATED, "unexpected EOF (u64be)")
	}
	v := binary.BigEndian.Uint64(b[*off : *off+8])
	*off += 8
	return v, nil
}

func read32(b []byte, off *int) ([32]byte, error) {
	var out [32]byte
	if *off+32 > len(b) {
		return out, cerr(PARSE_ERR_TRUNCATED, "unexpected EOF (32 bytes)")
	}
	copy(out[:], b[*off:*off+32])
	*off += 32
	return out, nil
}

func read64(b []byte, off *int) ([64]byte, error) {
	var out [64]byte
	if *off+64 > len(b) {
		return out, cerr(PARSE_ERR_TRUNCATED, "unexpected EOF (64 bytes)")
	}
	copy(out[:], b[*off:*off+64])
	*off += 64
	return out, nil
}

func read16(b []byte, off *int) ([16]byte, error) {
	var out [16]byte
	if *off+16 > len(b) {
		return out, cerr(PARSE_ERR_TRUNCATED, "unexpected EOF (16 bytes)")
	}
	copy(out[:], b[*off:*off+16])
	*off += 16
	return out, nil
}

func appendU64le(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64be(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// SerializeBlock renders the full wire form including signature and work.
func SerializeBlock(b *Block) []byte {
	out := make([]byte, 0, 1+144+64+8)
	out = append(out, byte(b.Type))
	switch b.Type {
	case BlockTypeSend:
		balance := b.Balance.Bytes16()
		out = append(out, b.Previous[:]...)
		out = append(out, b.Destination[:]...)
		out = append(out, balance[:]...)
	case BlockTypeReceive:
		out = append(out, b.Previous[:]...)
		out = append(out, b.Source[:]...)
	case BlockTypeOpen:
		out = append(out, b.Source[:]...)
		out = append(out, b.Representative[:]...)
		out = append(out, b.Account[:]...)
	case BlockTypeChange:
		out = append(out, b.Previous[:]...)
		out = append(out, b.Representative[:]...)
	case BlockTypeState:
		balance := b.Balance.Bytes16()
		out = append(out, b.Account[:]...)
		out = append(out, b.Previous[:]...)
		out = append(out, b.Representative[:]...)
		out = append(out, b.Link[:]...)
		out = append(out, balance[:]...)
	}
	out = append(out, b.Signature[:]...)
	out = appendU64le(out, b.Work)
	return out
}

// DeserializeBlockPrefix parses one block from the front of data and
// returns the unconsumed tail, for records that append more fields.
func DeserializeBlockPrefix(data []byte) (*Block, []byte, error) {
	off := 0
	b, err := deserializeBlockAt(data, &off)
	if err != nil {
		return nil, nil, err
	}
	return b, data[off:], nil
}

// DeserializeBlock parses one block and rejects trailing bytes.
func DeserializeBlock(data []byte) (*Block, error) {
	off := 0
	b, err := deserializeBlockAt(data, &off)
	if err != nil {
		return nil, err
	}
	if off != len(data) {
		return nil, cerr(PARSE_ERR_TRAILING, "trailing bytes after block")
	}
	return b, nil
}

func deserializeBlockAt(data []byte, off *int) (*Block, error) {
	t, err := readU8(data, off)
	if err != nil {
		return nil, err
	}
	b := &Block{Type: BlockType(t)}
	if !b.Type.Valid() {
		return nil, cerr(PARSE_ERR_TYPE_INVALID, "unknown block type")
	}

	need32 := func(dst *[32]byte) error {
		v, err := read32(data, off)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	switch b.Type {
	case BlockTypeSend:
		if err := need32((*[32]byte)(&b.Previous)); err != nil {
			return nil, err
		}
		if err := need32((*[32]byte)(&b.Destination)); err != nil {
			return nil, err
		}
		balance, err := read16(data, off)
		if err != nil {
			return nil, err
		}
		b.Balance = AmountFromBytes16(balance)
	case BlockTypeReceive:
		if err := need32((*[32]byte)(&b.Previous)); err != nil {
			return nil, err
		}
		if err := need32((*[32]byte)(&b.Source)); err != nil {
			return nil, err
		}
	case BlockTypeOpen:
		if err := need32((*[32]byte)(&b.Source)); err != nil {
			return nil, err
		}
		if err := need32((*[32]byte)(&b.Representative)); err != nil {
			return nil, err
		}
		if err := need32((*[32]byte)(&b.Account)); err != nil {
			return nil, err
		}
	case BlockTypeChange:
		if err := need32((*[32]byte)(&b.Previous)); err != nil {
			return nil, err
		}
		if err := need32((*[32]byte)(&b.Representative)); err != nil {
			return nil, err
		}
	case BlockTypeState:
		if err := need32((*[32]byte)(&b.Account)); err != nil {
			return nil, err
		}
		if err := need32((*[32]byte)(&b.Previous)); err != nil {
			return nil, err
		}
		if err := need32((*[32]byte)(&b.Representative)); err != nil {
			return nil, err
		}
		if err := need32((*[32]byte)(&b.Link)); err != nil {
			return nil, err
		}
		balance, err := read16(data, off)
		if err != nil {
			return nil, err
		}
		b.Balance = AmountFromBytes16(balance)
	}

	sig, err := read64(data, off)
	if err != nil {
		return nil, err
	}
	b.Signature = Signature(sig)
	if b.Work, err = readU64le(data, off); err != nil {
		return nil, err
	}
	return b, nil
}
