package consensus

import "math"

const (
	// VoteMaxHashes bounds the hash list of one vote message.
	VoteMaxHashes = 255

	voteDurationMask  = uint64(0xF)
	voteTimestampMask = ^uint64(0xF)

	// FinalVoteTimestamp marks a final vote in the raw timestamp field.
	FinalVoteTimestamp = math.MaxUint64
)

// Vote is a representative's statement over a list of block hashes. The raw
// timestamp packs a millisecond timestamp in its upper 60 bits and a 4-bit
// duration exponent; all-ones marks a final vote.
type Vote struct {
	Account      Account
	TimestampRaw uint64
	Signature    Signature
	Hashes       []Hash
}

func (v *Vote) TimestampMS() uint64 {
	return v.TimestampRaw & voteTimestampMask
}

func (v *Vote) DurationMS() uint64 {
	bits := v.TimestampRaw & voteDurationMask
	return 1 << (4 + bits)
}

func (v *Vote) IsFinal() bool {
	return v.TimestampRaw == FinalVoteTimestamp
}

// Digest is the blake2b-256 over the concatenated hash list.
func (v *Vote) Digest() Hash {
	parts := make([][]byte, 0, len(v.Hashes))
	for i := range v.Hashes {
		parts = append(parts, v.Hashes[i][:])
	}
	return blake2b256(parts...)
}

// MessageBytes is the signed message: digest of the hash list followed by
// the raw timestamp, little-endian.
func (v *Vote) MessageBytes() []byte {
	digest := v.Digest()
	out := make([]byte, 0, 40)
	out = append(out, digest[:]...)
	return appendU64le(out, v.TimestampRaw)
}

// FullHash keys the vote uniquer: content digest folded with the voting
// account and signature.
func (v *Vote) FullHash() Hash {
	digest := v.Digest()
	return blake2b256(digest[:], v.Account[:], v.Signature[:])
}

// SerializeVote renders account(32) signature(64) timestamp(u64-LE) hashes.
func SerializeVote(v *Vote) ([]byte, error) {
	if len(v.Hashes) == 0 || len(v.Hashes) > VoteMaxHashes {
		return nil, cerr(VOTE_ERR_HASH_COUNT, "hash count out of range")
	}
	out := make([]byte, 0, 32+64+8+32*len(v.Hashes))
	out = append(out, v.Account[:]...)
	out = append(out, v.Signature[:]...)
	out = appendU64le(out, v.TimestampRaw)
	for i := range v.Hashes {
		out = append(out, v.Hashes[i][:]...)
	}
	return out, nil
}

// DeserializeVote parses a vote message; the hash list runs to the end of
// the buffer and must be a whole number of hashes in [1, 255].
func DeserializeVote(data []byte) (*Vote, error) {
	off := 0
	account, err := read32(data, &off)
	if err != nil {
		return nil, err
	}
	sig, err := read64(data, &off)
	if err != nil {
		return nil, err
	}
	v := &Vote{Account: Account(account), Signature: Signature(sig)}
	if v.TimestampRaw, err = readU64le(data, &off); err != nil {
		return nil, err
	}
	rest := len(data) - off
	if rest == 0 || rest%32 != 0 || rest/32 > VoteMaxHashes {
		return nil, cerr(VOTE_ERR_HASH_COUNT, "hash list malformed")
	}
	v.Hashes = make([]Hash, 0, rest/32)
	for off < len(data) {
		h, err := read32(data, &off)
		if err != nil {
			return nil, err
		}
		v.Hashes = append(v.Hashes, Hash(h))
	}
	return v, nil
}
