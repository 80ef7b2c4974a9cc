// Package decimal implements the fixed-point rational arithmetic that
// every balance, price and amount in Galois is expressed in. It is a
// thin, scale- and precision-bounded layer over shopspring/decimal:
// shopspring gives us correctly-rounded arbitrary-precision decimal
// math, we add the domain's invariants on top (bounded scale, bounded
// significant digits, and the asymmetric truncate/ceil rounding rule
// that keeps the engine from ever minting dust in a user's favor).
package decimal

import (
	"fmt"
	"math/big"

	"github.com/cockroachdb/errors"
	shopspring "github.com/shopspring/decimal"
)

// MaxDigits is the maximum number of significant decimal digits a
// Decimal may carry. Any operation whose result exceeds this fails
// with ErrOverflow rather than silently truncating precision.
const MaxDigits = 28

// MaxScale is the largest scale (digits after the point) a symbol may
// declare for base or quote amounts.
const MaxScale = 18

// ErrOverflow is returned when a value would need more than MaxDigits
// significant digits to represent exactly.
var ErrOverflow = errors.New("decimal: overflow")

// Mode selects the rounding direction used by Rescale.
type Mode uint8

const (
	// Truncate drops digits beyond the target scale, rounding toward
	// zero. Used whenever the engine computes a credit to a user.
	Truncate Mode = iota
	// CeilAbs rounds toward positive infinity. Used whenever the
	// engine computes a debit, a fee, or a reserve against a user —
	// the direction asymmetry is what keeps the conservation
	// invariant from ever creating fractional dust in the user's
	// favor.
	CeilAbs
	// FloorAbs rounds toward negative infinity.
	FloorAbs
)

// Decimal is a fixed-point signed rational number bounded to
// MaxDigits significant digits.
type Decimal struct {
	v shopspring.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{v: shopspring.Zero}

// New builds a Decimal from an integer coefficient and a power-of-ten
// exponent, i.e. coefficient * 10^exponent.
func New(coefficient int64, exponent int32) Decimal {
	return Decimal{v: shopspring.New(coefficient, exponent)}
}

// NewFromString parses a base-10 literal such as "10.5000".
func NewFromString(s string) (Decimal, error) {
	v, err := shopspring.NewFromString(s)
	if err != nil {
		return Decimal{}, errors.Wrapf(err, "decimal: parse %q", s)
	}
	d := Decimal{v: v}
	if err := d.checkDigits(); err != nil {
		return Decimal{}, err
	}
	return d, nil
}

// MustFromString is NewFromString, panicking on error. Intended for
// constants and tests, never for input that crosses a trust boundary.
func MustFromString(s string) Decimal {
	d, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) checkDigits() error {
	coeff := d.v.Coefficient()
	digits := len(new(big.Int).Abs(coeff).Text(10))
	if coeff.Sign() == 0 {
		digits = 1
	}
	if digits > MaxDigits {
		return errors.Wrapf(ErrOverflow, "decimal: %d significant digits exceeds max %d", digits, MaxDigits)
	}
	return nil
}

// Add returns d+o.
func (d Decimal) Add(o Decimal) (Decimal, error) {
	r := Decimal{v: d.v.Add(o.v)}
	if err := r.checkDigits(); err != nil {
		return Decimal{}, err
	}
	return r, nil
}

// Sub returns d-o.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	r := Decimal{v: d.v.Sub(o.v)}
	if err := r.checkDigits(); err != nil {
		return Decimal{}, err
	}
	return r, nil
}

// Mul returns d*o at full intermediate precision (no implicit
// rescale); callers that need a bounded scale call Rescale explicitly,
// matching the "full intermediate precision, then a single rescale"
// rule for computing quote value from (price, amount).
func (d Decimal) Mul(o Decimal) (Decimal, error) {
	r := Decimal{v: d.v.Mul(o.v)}
	if err := r.checkDigits(); err != nil {
		return Decimal{}, err
	}
	return r, nil
}

// Div returns the quotient of d/o truncated toward zero to scale
// decimal places. Division is the one operation whose exact result can
// be non-terminating, so unlike Mul it must commit to a scale here.
func (d Decimal) Div(o Decimal, scale int32) (Decimal, error) {
	if o.v.IsZero() {
		return Decimal{}, errors.New("decimal: division by zero")
	}
	q, _ := d.v.QuoRem(o.v, scale)
	r := Decimal{v: q}
	if err := r.checkDigits(); err != nil {
		return Decimal{}, err
	}
	return r, nil
}

// Rescale rounds d to the given scale using mode, bounding scale to
// [0, MaxScale].
func (d Decimal) Rescale(scale int32, mode Mode) (Decimal, error) {
	if scale < 0 || scale > MaxScale {
		return Decimal{}, errors.Wrapf(ErrOverflow, "decimal: scale %d out of [0,%d]", scale, MaxScale)
	}
	var v shopspring.Decimal
	switch mode {
	case Truncate:
		v = d.v.Truncate(scale)
	case CeilAbs:
		v = d.v.RoundCeil(scale)
	case FloorAbs:
		v = d.v.RoundFloor(scale)
	default:
		return Decimal{}, errors.Newf("decimal: unknown rounding mode %d", mode)
	}
	r := Decimal{v: v}
	if err := r.checkDigits(); err != nil {
		return Decimal{}, err
	}
	return r, nil
}

// MulRescale is the common compound operation in §4.1: multiply at
// full precision then rescale once, e.g. trade_vol = price*amount
// rounded to quote_scale.
func (d Decimal) MulRescale(o Decimal, scale int32, mode Mode) (Decimal, error) {
	m, err := d.Mul(o)
	if err != nil {
		return Decimal{}, err
	}
	return m.Rescale(scale, mode)
}

// Cmp compares d to o: -1, 0, or 1.
func (d Decimal) Cmp(o Decimal) int { return d.v.Cmp(o.v) }

// Sign returns -1, 0 or 1.
func (d Decimal) Sign() int { return d.v.Sign() }

// IsZero reports whether d is exactly zero.
func (d Decimal) IsZero() bool { return d.v.IsZero() }

// IsNeg reports whether d is strictly negative.
func (d Decimal) IsNeg() bool { return d.v.Sign() < 0 }

// IsPos reports whether d is strictly positive.
func (d Decimal) IsPos() bool { return d.v.Sign() > 0 }

// GreaterThan reports d > o.
func (d Decimal) GreaterThan(o Decimal) bool { return d.v.Cmp(o.v) > 0 }

// GreaterThanOrEqual reports d >= o.
func (d Decimal) GreaterThanOrEqual(o Decimal) bool { return d.v.Cmp(o.v) >= 0 }

// LessThan reports d < o.
func (d Decimal) LessThan(o Decimal) bool { return d.v.Cmp(o.v) < 0 }

// LessThanOrEqual reports d <= o.
func (d Decimal) LessThanOrEqual(o Decimal) bool { return d.v.Cmp(o.v) <= 0 }

// Equal reports d == o (value equality, not representation equality).
func (d Decimal) Equal(o Decimal) bool { return d.v.Equal(o.v) }

// Neg returns -d.
func (d Decimal) Neg() Decimal { return Decimal{v: d.v.Neg()} }

// Scale returns the number of digits after the point in d's current
// representation (not a bound — callers compare against the symbol's
// declared scale separately).
func (d Decimal) Scale() int32 { return -d.v.Exponent() }

// Min returns the lesser of d and o.
func Min(d, o Decimal) Decimal {
	if d.LessThanOrEqual(o) {
		return d
	}
	return o
}

// String renders d using its native scale.
func (d Decimal) String() string { return d.v.String() }

// GoString supports %#v / debugger inspection.
func (d Decimal) GoString() string { return fmt.Sprintf("decimal.MustFromString(%q)", d.v.String()) }

// MarshalJSON renders d as a JSON string (e.g. "10.5000") rather than
// a bare JSON number, so that precision survives the command envelope
// wire format exactly as typed by the caller.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.v.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare JSON number.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = Zero
		return nil
	}
	v, err := NewFromString(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalBinary encodes d as a little-endian fixed-width record:
// 1 sign byte (0x00 non-negative, 0x01 negative), 1 scale byte, and a
// 96-bit (12 byte) little-endian mantissa magnitude — the layout
// normatively fixed by the committer's leaf encoding (§4.6).
func (d Decimal) MarshalBinary() ([]byte, error) {
	coeff := d.v.Coefficient()
	exp := d.v.Exponent()
	if exp > 0 {
		// A positive exponent (Zero carries one) is folded into the
		// coefficient so the value encodes at scale 0.
		coeff = new(big.Int).Mul(coeff, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
		exp = 0
	}
	scale := -exp
	if scale > MaxScale {
		return nil, errors.Wrapf(ErrOverflow, "decimal: scale %d exceeds max %d", scale, MaxScale)
	}

	mag := new(big.Int).Abs(coeff).Bytes() // big-endian magnitude
	if len(mag) > 12 {
		return nil, errors.Wrapf(ErrOverflow, "decimal: mantissa does not fit in 96 bits")
	}

	out := make([]byte, 14)
	if coeff.Sign() < 0 {
		out[0] = 0x01
	}
	out[1] = byte(scale)
	// place mag (big-endian) into the low bytes of a 12-byte
	// little-endian field.
	for i := 0; i < len(mag); i++ {
		out[2+i] = mag[len(mag)-1-i]
	}
	return out, nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (d *Decimal) UnmarshalBinary(b []byte) error {
	if len(b) != 14 {
		return errors.Newf("decimal: invalid encoded length %d", len(b))
	}
	neg := b[0] == 0x01
	scale := int32(b[1])

	mag := make([]byte, 12)
	copy(mag, b[2:14])
	// reverse little-endian -> big-endian for big.Int.SetBytes
	for i, j := 0, len(mag)-1; i < j; i, j = i+1, j-1 {
		mag[i], mag[j] = mag[j], mag[i]
	}

	v := shopspring.NewFromBigInt(new(big.Int).SetBytes(mag), -scale)
	if neg && !v.IsZero() {
		v = v.Neg()
	}
	*d = Decimal{v: v}
	return d.checkDigits()
}
