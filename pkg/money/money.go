// Package money implements fixed-point currency arithmetic on int64 minor
// units. All balance math in the engine goes through this type; floating
// point never touches an amount. The currency scale (0 for COP) is applied
// only when converting to or from decimal values at the API boundary.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrOverflow     = errors.New("money: int64 overflow")
	ErrDivideByZero = errors.New("money: division by zero")
	ErrPrecision    = errors.New("money: value has more precision than the currency scale")
)

// Money is an amount in minor units of the configured currency.
// The zero value is zero money.
type Money struct {
	amount int64
}

func FromMinor(v int64) Money {
	return Money{amount: v}
}

// FromDecimal converts a decimal amount to minor units. The decimal must not
// carry more fractional digits than the currency scale.
func FromDecimal(d decimal.Decimal, scale int32) (Money, error) {
	shifted := d.Shift(scale)
	if !shifted.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s at scale %d", ErrPrecision, d, scale)
	}
	if !shifted.BigInt().IsInt64() {
		return Money{}, ErrOverflow
	}
	return Money{amount: shifted.IntPart()}, nil
}

// Decimal renders the amount as a decimal at the given currency scale.
func (m Money) Decimal(scale int32) decimal.Decimal {
	return decimal.New(m.amount, -scale)
}

func (m Money) Minor() int64 { return m.amount }

func (m Money) IsZero() bool     { return m.amount == 0 }
func (m Money) IsNegative() bool { return m.amount < 0 }
func (m Money) IsPositive() bool { return m.amount > 0 }

func (m Money) Equal(o Money) bool    { return m.amount == o.amount }
func (m Money) LessThan(o Money) bool { return m.amount < o.amount }

// Cmp returns -1, 0 or 1 comparing m against o.
func (m Money) Cmp(o Money) int {
	switch {
	case m.amount < o.amount:
		return -1
	case m.amount > o.amount:
		return 1
	}
	return 0
}

func Min(a, b Money) Money {
	if a.amount < b.amount {
		return a
	}
	return b
}

func (m Money) Add(o Money) (Money, error) {
	sum := m.amount + o.amount
	if (o.amount > 0 && sum < m.amount) || (o.amount < 0 && sum > m.amount) {
		return Money{}, ErrOverflow
	}
	return Money{amount: sum}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	return m.Add(Money{amount: -o.amount})
}

func (m Money) Neg() Money { return Money{amount: -m.amount} }

// SubNonNeg returns m-o clamped at zero. It is the "outstanding portion"
// operation: both operands are non-negative balances by invariant, so the
// checked path is not needed.
func (m Money) SubNonNeg(o Money) Money {
	if m.amount <= o.amount {
		return Money{}
	}
	return Money{amount: m.amount - o.amount}
}

// MulRate multiplies the amount by the rational rate num/den and rounds
// half-up to the nearest minor unit. The intermediate product is computed in
// arbitrary precision, so only the final result can overflow.
func (m Money) MulRate(num, den int64) (Money, error) {
	if den == 0 {
		return Money{}, ErrDivideByZero
	}
	n := new(big.Int).Mul(big.NewInt(m.amount), big.NewInt(num))
	return RoundRatio(n, big.NewInt(den))
}

// DivRound divides by n rounding half-up.
func (m Money) DivRound(n int64) (Money, error) {
	return m.MulRate(1, n)
}

// DivFloor divides by n truncating toward zero. Used for even capital splits
// where the residual is reconciled on the last installment.
func (m Money) DivFloor(n int64) (Money, error) {
	if n == 0 {
		return Money{}, ErrDivideByZero
	}
	return Money{amount: m.amount / n}, nil
}

// RoundRatio computes num/den rounded half-up to an int64 amount. It is the
// single rounding primitive behind every rate computation, including the
// annuity factor arithmetic in the amortization builder.
func RoundRatio(num, den *big.Int) (Money, error) {
	if den.Sign() == 0 {
		return Money{}, ErrDivideByZero
	}
	n := new(big.Int).Set(num)
	d := new(big.Int).Set(den)
	neg := false
	if n.Sign() < 0 {
		neg = !neg
		n.Neg(n)
	}
	if d.Sign() < 0 {
		neg = !neg
		d.Neg(d)
	}
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	// half-up: bump when 2*r >= d
	r.Lsh(r, 1)
	if r.Cmp(d) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if neg {
		q.Neg(q)
	}
	if !q.IsInt64() {
		return Money{}, ErrOverflow
	}
	return Money{amount: q.Int64()}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d", m.amount)
}

// Value implements driver.Valuer; amounts persist as BIGINT minor units.
func (m Money) Value() (driver.Value, error) {
	return m.amount, nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		m.amount = v
		return nil
	case nil:
		m.amount = 0
		return nil
	}
	return fmt.Errorf("money: cannot scan %T", src)
}
