package types

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// AmountSize is the width, in bytes, of an Amount's canonical encoding.
const AmountSize = 16

// maxAmount is the largest value representable in AmountSize bytes (2^128 - 1).
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 8*AmountSize), big.NewInt(1))

// Amount is a nonnegative 128-bit integer denominated in the smallest unit
// of the native coin. It is never represented as a float anywhere in the
// ledger; every arithmetic operation below is overflow-checked.
type Amount struct {
	v big.Int
}

// ZeroAmount returns the additive identity.
func ZeroAmount() Amount {
	return Amount{}
}

// NewAmount builds an Amount from a uint64, which always fits.
func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// AmountFromBigInt validates and wraps a big.Int. The value must be
// nonnegative and fit in AmountSize bytes.
func AmountFromBigInt(v *big.Int) (Amount, error) {
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: negative value %s", v.String())
	}
	if v.Cmp(maxAmount) > 0 {
		return Amount{}, fmt.Errorf("amount: value %s exceeds 128 bits", v.String())
	}
	var a Amount
	a.v.Set(v)
	return a, nil
}

// BigInt returns a copy of the amount as a big.Int.
func (a Amount) BigInt() *big.Int {
	return new(big.Int).Set(&a.v)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.Sign() == 0
}

// Cmp compares two amounts the way big.Int.Cmp does.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Add returns a+b, erroring if the sum overflows 128 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := new(big.Int).Add(&a.v, &b.v)
	return AmountFromBigInt(sum)
}

// Sub returns a-b, erroring if b > a (amounts are never negative).
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Amount{}, fmt.Errorf("amount: subtraction underflow (%s - %s)", a.v.String(), b.v.String())
	}
	diff := new(big.Int).Sub(&a.v, &b.v)
	return AmountFromBigInt(diff)
}

// Rsh returns a right-shifted by n bits, used by the reward halving
// schedule. Shifting past the bit width yields zero, matching the
// behavior of an arithmetic right shift on an unsigned integer.
func (a Amount) Rsh(n uint) Amount {
	var out Amount
	out.v.Rsh(&a.v, n)
	return out
}

// Bytes encodes the amount as AmountSize big-endian bytes.
func (a Amount) Bytes() [AmountSize]byte {
	var out [AmountSize]byte
	b := a.v.Bytes()
	copy(out[AmountSize-len(b):], b)
	return out
}

// AmountFromBytes decodes AmountSize big-endian bytes into an Amount.
func AmountFromBytes(b []byte) (Amount, error) {
	if len(b) != AmountSize {
		return Amount{}, fmt.Errorf("amount: expected %d bytes, got %d", AmountSize, len(b))
	}
	var a Amount
	a.v.SetBytes(b)
	return a, nil
}

// String renders the amount in base 10.
func (a Amount) String() string {
	return a.v.String()
}

// MarshalJSON encodes the amount as a decimal string, avoiding float
// truncation of values beyond 2^53.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.String())
}

// UnmarshalJSON decodes a decimal string into an amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("amount: invalid decimal %q", s)
	}
	parsed, err := AmountFromBigInt(v)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
