package precision

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMulDivRounding(t *testing.T) {
	t.Run("TowardZero", func(t *testing.T) {
		// 10 / 3 truncated
		got := MulDiv(dec("10"), One, dec("3"), false)
		assert.True(t, got.LessThan(dec("3.3334")))
		assert.True(t, got.GreaterThan(dec("3.3333")))

		// negative values truncate toward zero too
		neg := MulDiv(dec("-10"), One, dec("3"), false)
		assert.True(t, neg.Neg().Equal(got))
	})

	t.Run("AwayFromZero", func(t *testing.T) {
		up := MulDiv(dec("10"), One, dec("3"), true)
		down := MulDiv(dec("10"), One, dec("3"), false)
		assert.True(t, up.GreaterThan(down))

		negUp := MulDiv(dec("-10"), One, dec("3"), true)
		assert.True(t, negUp.Neg().Equal(up))
	})

	t.Run("ExactDivision", func(t *testing.T) {
		got := MulDiv(dec("200000"), dec("3"), dec("4"), true)
		assert.True(t, got.Equal(dec("150000")))
	})

	t.Run("DivideByZeroPanics", func(t *testing.T) {
		assert.Panics(t, func() {
			MulDiv(One, One, Zero, false)
		})
	})
}

func TestApplyExponentFactor(t *testing.T) {
	t.Run("ExponentOne", func(t *testing.T) {
		got, err := ApplyExponentFactor(dec("200000"), One)
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("200000")))
	})

	t.Run("ExponentTwo", func(t *testing.T) {
		got, err := ApplyExponentFactor(dec("200000"), Two)
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("40000000000")))
	})

	t.Run("FractionalExponent", func(t *testing.T) {
		got, err := ApplyExponentFactor(dec("10000"), dec("1.5"))
		require.NoError(t, err)
		// 10000^1.5 = 1e6
		assert.True(t, got.Sub(dec("1000000")).Abs().LessThan(dec("0.0001")))
	})

	t.Run("ZeroBase", func(t *testing.T) {
		got, err := ApplyExponentFactor(Zero, Two)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("NegativeBaseRejected", func(t *testing.T) {
		_, err := ApplyExponentFactor(dec("-1"), Two)
		assert.Error(t, err)
	})
}

func TestApplyFactor(t *testing.T) {
	// 1e-8 * (2e5)^2 = 400, the reference impact magnitude
	sq, err := ApplyExponentFactor(dec("200000"), Two)
	require.NoError(t, err)
	got := ApplyFactor(sq, dec("0.00000001"))
	assert.True(t, got.Equal(dec("400")))
}

func TestBoundMagnitude(t *testing.T) {
	assert.True(t, BoundMagnitude(dec("500"), dec("400")).Equal(dec("400")))
	assert.True(t, BoundMagnitude(dec("-500"), dec("400")).Equal(dec("-400")))
	assert.True(t, BoundMagnitude(dec("300"), dec("400")).Equal(dec("300")))
	assert.True(t, BoundMagnitude(dec("300"), dec("-1")).IsZero())
}

func TestApplyFraction(t *testing.T) {
	// releasing 25% of a pending amount
	got := ApplyFraction(dec("0.08"), dec("50000"), dec("200000"))
	assert.True(t, got.Equal(dec("0.02")))

	// zero denominator releases nothing
	assert.True(t, ApplyFraction(dec("0.08"), One, Zero).IsZero())
}

func TestClampAndMinMax(t *testing.T) {
	assert.True(t, Clamp(dec("5"), dec("1"), dec("3")).Equal(dec("3")))
	assert.True(t, Clamp(dec("-5"), dec("1"), dec("3")).Equal(dec("1")))
	assert.True(t, Min(dec("1"), dec("2")).Equal(dec("1")))
	assert.True(t, Max(dec("1"), dec("2")).Equal(dec("2")))
}

func TestTokenConversions(t *testing.T) {
	// $400 at $5,000 per token = 0.08 tokens
	tokens := UsdToTokens(dec("400"), dec("5000"), false)
	assert.True(t, tokens.Equal(dec("0.08")))

	usd := TokensToUsd(tokens, dec("5000"))
	assert.True(t, usd.Equal(dec("400")))
}
