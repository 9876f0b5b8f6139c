package synth

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/precision"
)

// impactParams bundles the asymmetric impact factors with the shared
// exponent. The positive factor rewards balance-improving flow, the
// negative factor penalizes balance-worsening flow, and positive ≤ negative
// keeps round trips non-profitable.
type impactParams struct {
	factorPositive decimal.Decimal
	factorNegative decimal.Decimal
	exponent       decimal.Decimal
}

func (st *marketState) positionImpactParams() impactParams {
	return impactParams{
		factorPositive: st.cfg.PositionImpactFactorPositive,
		factorNegative: st.cfg.PositionImpactFactorNegative,
		exponent:       st.cfg.PositionImpactExponent,
	}
}

func (st *marketState) swapImpactParams() impactParams {
	return impactParams{
		factorPositive: st.cfg.SwapImpactFactorPositive,
		factorNegative: st.cfg.SwapImpactFactorNegative,
		exponent:       st.cfg.SwapImpactExponent,
	}
}

// applyImpactFactor computes factor × imbalance^exponent, the virtual cost
// of holding a given imbalance.
func applyImpactFactor(imbalance, factor, exponent decimal.Decimal) (decimal.Decimal, error) {
	powed, err := precision.ApplyExponentFactor(imbalance.Abs(), exponent)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return precision.ApplyFactor(powed, factor), nil
}

// impactForDiff prices the move of a signed imbalance from initialDiff to
// nextDiff. Positive result means the move improved balance.
//
// When the move stays on one side of zero the improving or worsening factor
// applies to the whole move. When it crosses zero, the shrinking leg earns
// at the positive factor and the growing leg pays at the negative factor,
// and the result is the net of the two.
func impactForDiff(initialDiff, nextDiff decimal.Decimal, p impactParams) (decimal.Decimal, error) {
	sameSide := initialDiff.Sign() == 0 || nextDiff.Sign() == 0 ||
		initialDiff.Sign() == nextDiff.Sign()
	if sameSide {
		improved := nextDiff.Abs().LessThan(initialDiff.Abs())
		factor := p.factorNegative
		if improved {
			factor = p.factorPositive
		}
		before, err := applyImpactFactor(initialDiff, factor, p.exponent)
		if err != nil {
			return decimal.Decimal{}, err
		}
		after, err := applyImpactFactor(nextDiff, factor, p.exponent)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return before.Sub(after), nil
	}
	earned, err := applyImpactFactor(initialDiff, p.factorPositive, p.exponent)
	if err != nil {
		return decimal.Decimal{}, err
	}
	paid, err := applyImpactFactor(nextDiff, p.factorNegative, p.exponent)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return earned.Sub(paid), nil
}

// positionPriceImpact prices a position size change against the real open
// interest imbalance and, when the market is linked to a virtual token,
// against the cross-market virtual imbalance. A trade that improves the
// real balance keeps its positive impact even when the virtual imbalance
// disagrees; a worsening trade pays the worse of the two, so deep virtual
// inventory can never be exploited through one shallow market.
func (st *marketState) positionPriceImpact(sizeDeltaUsd decimal.Decimal, isLong, isIncrease bool) (decimal.Decimal, error) {
	delta := sizeDeltaUsd
	if !isIncrease {
		delta = delta.Neg()
	}
	if !isLong {
		delta = delta.Neg()
	}
	initial := st.openInterestDiff()
	impact, err := impactForDiff(initial, initial.Add(delta), st.positionImpactParams())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("position impact: %w", err)
	}
	if impact.Sign() < 0 && st.hasVirtualPosition {
		vInitial := st.virtualPositionInventory
		vImpact, err := impactForDiff(vInitial, vInitial.Add(delta), st.positionImpactParams())
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("virtual position impact: %w", err)
		}
		impact = precision.Min(impact, vImpact)
	}
	return impact, nil
}

// swapPriceImpact prices moving usdIn into one side of the pool and usdOut
// out of the other. The virtual swap inventory applies the same rule as
// positions: it can deepen a penalty but never takes away a pool-balancing
// reward.
func (st *marketState) swapPriceImpact(tokenIn, tokenOut string, usdIn, usdOut decimal.Decimal) (decimal.Decimal, error) {
	longUsd := st.poolAmount[st.market.LongToken].Mul(st.prices[st.market.LongToken].Mid())
	shortUsd := st.poolAmount[st.market.ShortToken].Mul(st.prices[st.market.ShortToken].Mid())
	nextLong, nextShort := longUsd, shortUsd
	if tokenIn == st.market.LongToken {
		nextLong = nextLong.Add(usdIn)
		nextShort = nextShort.Sub(usdOut)
	} else {
		nextShort = nextShort.Add(usdIn)
		nextLong = nextLong.Sub(usdOut)
	}
	impact, err := impactForDiff(longUsd.Sub(shortUsd), nextLong.Sub(nextShort), st.swapImpactParams())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("swap impact: %w", err)
	}
	if impact.Sign() < 0 && st.hasVirtualSwap {
		vLong := st.virtualSwapInventory[true]
		vShort := st.virtualSwapInventory[false]
		vNextLong, vNextShort := vLong, vShort
		if tokenIn == st.market.LongToken {
			vNextLong = vNextLong.Add(usdIn)
			vNextShort = vNextShort.Sub(usdOut)
		} else {
			vNextShort = vNextShort.Add(usdIn)
			vNextLong = vNextLong.Sub(usdOut)
		}
		vImpact, err := impactForDiff(vLong.Sub(vShort), vNextLong.Sub(vNextShort), st.swapImpactParams())
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("virtual swap impact: %w", err)
		}
		impact = precision.Min(impact, vImpact)
	}
	return impact, nil
}

// capImpactUsdByFactor clamps impact magnitude to maxFactor × sizeDeltaUsd.
// A zero factor leaves the impact unchanged.
func capImpactUsdByFactor(impactUsd, sizeDeltaUsd, maxFactor decimal.Decimal) decimal.Decimal {
	if maxFactor.IsZero() {
		return impactUsd
	}
	return precision.BoundMagnitude(impactUsd, precision.ApplyFactor(sizeDeltaUsd, maxFactor))
}

// positionImpactTokens converts a USD impact into index tokens. Positive
// impact converts at the max price rounding down so the pool never pays
// out more than the USD value; negative impact converts at the min price
// rounding up so the pool is always made whole.
func positionImpactTokens(impactUsd decimal.Decimal, indexPrice Price) decimal.Decimal {
	if impactUsd.Sign() >= 0 {
		return precision.UsdToTokens(impactUsd, indexPrice.Max, false)
	}
	return precision.UsdToTokens(impactUsd, indexPrice.Min, true)
}

// capPositiveImpactByPool limits a positive token payout to the available
// impact pool balance. Negative impact passes through untouched.
func capPositiveImpactByPool(impactTokens, poolBalance decimal.Decimal) decimal.Decimal {
	if impactTokens.Sign() <= 0 {
		return impactTokens
	}
	return precision.Min(impactTokens, poolBalance)
}

// realizePendingImpact releases the share of a position's deferred impact
// proportional to the size being closed. Truncation happens toward zero on
// the released share; a full close releases the exact remainder.
func realizePendingImpact(pending, sizeDeltaUsd, sizeInUsd decimal.Decimal) (released, remaining decimal.Decimal) {
	if sizeInUsd.IsZero() || sizeDeltaUsd.GreaterThanOrEqual(sizeInUsd) {
		return pending, decimal.Zero
	}
	released = precision.ApplyFraction(pending, sizeDeltaUsd, sizeInUsd)
	return released, pending.Sub(released)
}
