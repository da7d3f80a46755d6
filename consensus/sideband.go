package consensus

// BlockDetails captures how a block moved value, resolved at insert time.
type BlockDetails struct {
	Epoch     Epoch
	IsSend    bool
	IsReceive bool
	IsEpoch   bool
}

const (
	detailsFlagSend    = 1 << 0
	detailsFlagReceive = 1 << 1
	detailsFlagEpoch   = 1 << 2
)

func (d BlockDetails) packFlags() byte {
	var f byte
	if d.IsSend {
		f |= detailsFlagSend
	}
	if d.IsReceive {
		f |= detailsFlagReceive
	}
	if d.IsEpoch {
		f |= detailsFlagEpoch
	}
	return f
}

func unpackDetails(epoch byte, flags byte) BlockDetails {
	return BlockDetails{
		Epoch:     Epoch(epoch),
		IsSend:    flags&detailsFlagSend != 0,
		IsReceive: flags&detailsFlagReceive != 0,
		IsEpoch:   flags&detailsFlagEpoch != 0,
	}
}

// Sideband is the per-block derived data persisted next to the block body.
// A block without a sideband is in flight only.
type Sideband struct {
	Height    uint64
	Timestamp uint64
	Successor Hash
	Account   Account
	Balance   Amount
	Details   BlockDetails
	// SourceEpoch is the epoch of the matching send, for receives.
	SourceEpoch Epoch
}

// SerializeSideband appends the on-disk sideband record for a block of the
// given type. State blocks carry account and balance in their own fields,
// so only legacy records persist them.
func SerializeSideband(t BlockType, s *Sideband) []byte {
	out := make([]byte, 0, 8+8+32+32+16+3)
	out = appendU64be(out, s.Height)
	out = appendU64be(out, s.Timestamp)
	out = append(out, s.Successor[:]...)
	if t.IsLegacy() {
		out = append(out, s.Account[:]...)
		balance := s.Balance.Bytes16()
		out = append(out, balance[:]...)
	}
	out = append(out, byte(s.Details.Epoch), s.Details.packFlags())
	if t == BlockTypeState {
		out = append(out, byte(s.SourceEpoch))
	}
	return out
}

// DeserializeSideband parses the record written by SerializeSideband and
// rejects trailing bytes.
func DeserializeSideband(t BlockType, data []byte) (*Sideband, error) {
	off := 0
	s := &Sideband{}
	var err error
	if s.Height, err = readU64be(data, &off); err != nil {
		return nil, cerr(SIDEBAND_ERR_PARSE, "truncated height")
	}
	if s.Timestamp, err = readU64be(data, &off); err != nil {
		return nil, cerr(SIDEBAND_ERR_PARSE, "truncated timestamp")
	}
	successor, err := read32(data, &off)
	if err != nil {
		return nil, cerr(SIDEBAND_ERR_PARSE, "truncated successor")
	}
	s.Successor = Hash(successor)
	if t.IsLegacy() {
		account, err := read32(data, &off)
		if err != nil {
			return nil, cerr(SIDEBAND_ERR_PARSE, "truncated account")
		}
		s.Account = Account(account)
		balance, err := read16(data, &off)
		if err != nil {
			return nil, cerr(SIDEBAND_ERR_PARSE, "truncated balance")
		}
		s.Balance = AmountFromBytes16(balance)
	}
	epoch, err := readU8(data, &off)
	if err != nil {
		return nil, cerr(SIDEBAND_ERR_PARSE, "truncated details")
	}
	flags, err := readU8(data, &off)
	if err != nil {
		return nil, cerr(SIDEBAND_ERR_PARSE, "truncated details flags")
	}
	s.Details = unpackDetails(epoch, flags)
	if t == BlockTypeState {
		srcEpoch, err := readU8(data, &off)
		if err != nil {
			return nil, cerr(SIDEBAND_ERR_PARSE, "truncated source epoch")
		}
		s.SourceEpoch = Epoch(srcEpoch)
	}
	if off != len(data) {
		return nil, cerr(SIDEBAND_ERR_PARSE, "trailing bytes")
	}
	return s, nil
}
