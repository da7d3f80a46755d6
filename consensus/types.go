package consensus

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// Fixed-width identifiers used across the ledger. All multi-byte scalars on
// the wire are big-endian unless a codec says otherwise.

type Hash [32]byte

type Account [32]byte

type Signature [64]byte

// Root is either an account's opening root or a previous-block hash.
type Root [32]byte

// Link carries the state-block link field: a send destination, a receive
// source, or an epoch marker.
type Link [32]byte

func (h Hash) IsZero() bool    { return h == Hash{} }
func (a Account) IsZero() bool { return a == Account{} }
func (r Root) IsZero() bool    { return r == Root{} }
func (l Link) IsZero() bool    { return l == Link{} }

func (h Hash) String() string    { return hex.EncodeToString(h[:]) }
func (a Account) String() string { return hex.EncodeToString(a[:]) }

func (a Account) Link() Link { return Link(a) }
func (h Hash) Link() Link    { return Link(h) }

func (l Link) Hash() Hash       { return Hash(l) }
func (l Link) Account() Account { return Account(l) }

func HashFromHex(s string) (Hash, error) {
	var h Hash
	if err := fromHex(h[:], s); err != nil {
		return Hash{}, err
	}
	return h, nil
}

func AccountFromHex(s string) (Account, error) {
	var a Account
	if err := fromHex(a[:], s); err != nil {
		return Account{}, err
	}
	return a, nil
}

func fromHex(dst []byte, s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return fmt.Errorf("hex: expected %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}

// Amount is a 128-bit unsigned balance. It rides a uint256 restricted to the
// low 128 bits; every constructor and decoder enforces the bound.
type Amount struct {
	n uint256.Int
}

// MaxAmount is 2^128 - 1 raw, the dev network's total supply.
func MaxAmount() Amount {
	var a Amount
	a.n[0] = ^uint64(0)
	a.n[1] = ^uint64(0)
	return a
}

func AmountFromUint64(v uint64) Amount {
	var a Amount
	a.n.SetUint64(v)
	return a
}

func (a Amount) IsZero() bool { return a.n.IsZero() }

func (a Amount) Cmp(b Amount) int { return a.n.Cmp(&b.n) }

// Add returns a+b and reports overflow past 128 bits.
func (a Amount) Add(b Amount) (Amount, bool) {
	var out Amount
	_, carry := out.n.AddOverflow(&a.n, &b.n)
	if carry || out.n[2] != 0 || out.n[3] != 0 {
		return Amount{}, false
	}
	return out, true
}

// Sub returns a-b and reports underflow.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if a.n.Cmp(&b.n) < 0 {
		return Amount{}, false
	}
	var out Amount
	out.n.Sub(&a.n, &b.n)
	return out, true
}

// Bytes16 is the 16-byte big-endian wire form.
func (a Amount) Bytes16() [16]byte {
	var out [16]byte
	b32 := a.n.Bytes32()
	copy(out[:], b32[16:])
	return out
}

func AmountFromBytes16(b [16]byte) Amount {
	var a Amount
	a.n.SetBytes(b[:])
	return a
}

func (a Amount) Uint64() uint64 { return a.n.Uint64() }

func (a Amount) String() string { return a.n.Dec() }
