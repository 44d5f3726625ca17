package money

import (
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDecimal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		scale    int32
		expected int64
		wantErr  error
	}{
		{name: "COP whole pesos", input: "1000000", scale: 0, expected: 1000000},
		{name: "two decimal currency", input: "1234.56", scale: 2, expected: 123456},
		{name: "trailing zeros collapse", input: "50.00", scale: 0, expected: 50},
		{name: "negative amount", input: "-80.25", scale: 2, expected: -8025},
		{name: "excess precision rejected", input: "10.5", scale: 0, wantErr: ErrPrecision},
		{name: "sub-cent rejected", input: "0.001", scale: 2, wantErr: ErrPrecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.input)
			require.NoError(t, err)

			m, err := FromDecimal(d, tt.scale)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.Minor())
		})
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	m := FromMinor(123456)
	assert.Equal(t, "1234.56", m.Decimal(2).String())
	assert.Equal(t, "123456", m.Decimal(0).String())
}

func TestAddSubOverflow(t *testing.T) {
	a := FromMinor(math.MaxInt64)
	_, err := a.Add(FromMinor(1))
	assert.ErrorIs(t, err, ErrOverflow)

	b := FromMinor(math.MinInt64)
	_, err = b.Sub(FromMinor(1))
	assert.ErrorIs(t, err, ErrOverflow)

	sum, err := FromMinor(70000).Add(FromMinor(30000))
	require.NoError(t, err)
	assert.Equal(t, int64(100000), sum.Minor())
}

func TestMulRateHalfUp(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		num, den int64
		expected int64
	}{
		{name: "2 percent of a million", amount: 1000000, num: 200, den: 10000, expected: 20000},
		{name: "rounds half up", amount: 125, num: 1, den: 2, expected: 63}, // 62.5
		{name: "rounds down below half", amount: 124, num: 1, den: 2, expected: 62},
		{name: "negative rounds away from zero on half", amount: -125, num: 1, den: 2, expected: -63},
		{name: "zero rate", amount: 99999, num: 0, den: 10000, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromMinor(tt.amount).MulRate(tt.num, tt.den)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Minor())
		})
	}

	_, err := FromMinor(1).MulRate(1, 0)
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestMulRateNoIntermediateOverflow(t *testing.T) {
	// amount*num would overflow int64; the big.Int path must survive it.
	got, err := FromMinor(math.MaxInt64 / 2).MulRate(2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64/2), got.Minor())
}

func TestRoundRatio(t *testing.T) {
	got, err := RoundRatio(big.NewInt(945601), big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, int64(94560), got.Minor())

	huge := new(big.Int).Lsh(big.NewInt(1), 80)
	_, err = RoundRatio(huge, big.NewInt(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestDivFloor(t *testing.T) {
	got, err := FromMinor(1000000).DivFloor(12)
	require.NoError(t, err)
	assert.Equal(t, int64(83333), got.Minor())

	_, err = FromMinor(1).DivFloor(0)
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan(int64(4200)))
	assert.Equal(t, int64(4200), m.Minor())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	assert.Error(t, m.Scan("not-a-number"))
}
