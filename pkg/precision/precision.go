// Package precision provides the deterministic fixed-point arithmetic used
// by the pricing and fee engines. All values are decimal.Decimal; divisions
// are performed at a fixed scale with an explicit rounding direction so that
// every node computing the same trade arrives at the same result.
package precision

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the scale (decimal places) carried through divisions
// and fractional powers. It matches the 10^30 float convention used for
// factors, so factor values like 5e-9 survive multiplication without loss.
const DivisionPrecision = 30

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
	Two  = decimal.NewFromInt(2)
)

// MulDiv returns value * numerator / denominator with an explicit rounding
// direction. roundUp rounds away from zero, otherwise the result is
// truncated toward zero. Division by zero is a programmer error.
func MulDiv(value, numerator, denominator decimal.Decimal, roundUp bool) decimal.Decimal {
	if denominator.IsZero() {
		panic("precision: division by zero")
	}
	q := value.Mul(numerator).DivRound(denominator, DivisionPrecision+2)
	if roundUp {
		if q.Sign() < 0 {
			return q.RoundFloor(DivisionPrecision)
		}
		return q.RoundCeil(DivisionPrecision)
	}
	if q.Sign() < 0 {
		return q.RoundCeil(DivisionPrecision)
	}
	return q.RoundFloor(DivisionPrecision)
}

// Div is MulDiv with a numerator of one.
func Div(value, denominator decimal.Decimal, roundUp bool) decimal.Decimal {
	return MulDiv(value, One, denominator, roundUp)
}

// ApplyFactor multiplies a value by a factor. Multiplication of decimals is
// exact, so no rounding direction is needed.
func ApplyFactor(value, factor decimal.Decimal) decimal.Decimal {
	return value.Mul(factor)
}

// ApplyExponentFactor raises a non-negative value to the given exponent.
// Exponents of one and two take exact fast paths; other exponents go
// through a fractional power at DivisionPrecision scale.
func ApplyExponentFactor(value, exponent decimal.Decimal) (decimal.Decimal, error) {
	if value.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("precision: negative base %s for exponent factor", value)
	}
	if value.IsZero() {
		return decimal.Zero, nil
	}
	switch {
	case exponent.Equal(One):
		return value, nil
	case exponent.Equal(Two):
		return value.Mul(value), nil
	}
	out, err := value.PowWithPrecision(exponent, DivisionPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("precision: pow(%s, %s): %w", value, exponent, err)
	}
	return out, nil
}

// ApplyFraction scales value by numerator/denominator, truncating toward
// zero. It is the proportional-release helper used for pending impact.
func ApplyFraction(value, numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimal.Zero
	}
	return MulDiv(value, numerator, denominator, false)
}

// BoundMagnitude clamps the magnitude of a signed value to maxMagnitude
// while preserving its sign. A negative maxMagnitude is treated as zero.
func BoundMagnitude(value, maxMagnitude decimal.Decimal) decimal.Decimal {
	if maxMagnitude.Sign() < 0 {
		maxMagnitude = decimal.Zero
	}
	if value.Abs().GreaterThan(maxMagnitude) {
		if value.Sign() < 0 {
			return maxMagnitude.Neg()
		}
		return maxMagnitude
	}
	return value
}

// Clamp bounds value to the closed interval [lo, hi].
func Clamp(value, lo, hi decimal.Decimal) decimal.Decimal {
	if value.LessThan(lo) {
		return lo
	}
	if value.GreaterThan(hi) {
		return hi
	}
	return value
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// UsdToTokens converts a USD amount to token units at the given price,
// with an explicit rounding direction.
func UsdToTokens(usd, price decimal.Decimal, roundUp bool) decimal.Decimal {
	return Div(usd, price, roundUp)
}

// TokensToUsd converts token units to a USD amount at the given price.
func TokensToUsd(tokens, price decimal.Decimal) decimal.Decimal {
	return tokens.Mul(price)
}
