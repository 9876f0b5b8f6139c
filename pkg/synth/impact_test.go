package synth

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testImpactParams() impactParams {
	return impactParams{
		factorPositive: dec("0.000000005"),
		factorNegative: dec("0.00000001"),
		exponent:       dec("2"),
	}
}

func newImpactState(longOI, shortOI string) *marketState {
	st := &marketState{
		market: Market{
			MarketToken: "ETH-USD",
			IndexToken:  "ETH",
			LongToken:   "WETH",
			ShortToken:  "USDC",
		},
		cfg: MarketConfig{
			PositionImpactFactorPositive: dec("0.000000005"),
			PositionImpactFactorNegative: dec("0.00000001"),
			PositionImpactExponent:       dec("2"),
			SwapImpactFactorPositive:     dec("0.000000005"),
			SwapImpactFactorNegative:     dec("0.00000001"),
			SwapImpactExponent:           dec("2"),
		},
		poolAmount:           make(map[string]decimal.Decimal),
		swapImpactPool:       make(map[string]decimal.Decimal),
		openInterest:         make(map[sideKey]decimal.Decimal),
		openInterestInTokens: make(map[bool]decimal.Decimal),
		fundingFeePerSize:    make(map[sideKey]decimal.Decimal),
		claimableFundingPerSize:   make(map[sideKey]decimal.Decimal),
		cumulativeBorrowingFactor: make(map[bool]decimal.Decimal),
		virtualSwapInventory:      make(map[bool]decimal.Decimal),
		prices: map[string]Price{
			"ETH":  {Min: dec("5000"), Max: dec("5000")},
			"WETH": {Min: dec("5000"), Max: dec("5000")},
			"USDC": {Min: dec("1"), Max: dec("1")},
		},
	}
	st.openInterest[sideKey{"USDC", true}] = dec(longOI)
	st.openInterest[sideKey{"USDC", false}] = dec(shortOI)
	return st
}

func TestImpactForDiff(t *testing.T) {
	p := testImpactParams()

	t.Run("WorseningFromBalance", func(t *testing.T) {
		impact, err := impactForDiff(decimal.Zero, dec("200000"), p)
		require.NoError(t, err)
		assert.True(t, impact.Equal(dec("-400")), "got %s", impact)
	})

	t.Run("ImprovingToBalance", func(t *testing.T) {
		impact, err := impactForDiff(dec("200000"), decimal.Zero, p)
		require.NoError(t, err)
		assert.True(t, impact.Equal(dec("200")), "got %s", impact)
	})

	t.Run("SameSideWorsening", func(t *testing.T) {
		impact, err := impactForDiff(dec("-100000"), dec("-200000"), p)
		require.NoError(t, err)
		// 1e-8 * (1e10 - 4e10)
		assert.True(t, impact.Equal(dec("-300")), "got %s", impact)
	})

	t.Run("Crossover", func(t *testing.T) {
		impact, err := impactForDiff(dec("100000"), dec("-150000"), p)
		require.NoError(t, err)
		// earned 5e-9 * 1e10 = 50, paid 1e-8 * 2.25e10 = 225
		assert.True(t, impact.Equal(dec("-175")), "got %s", impact)
	})

	t.Run("NoMove", func(t *testing.T) {
		impact, err := impactForDiff(dec("50000"), dec("50000"), p)
		require.NoError(t, err)
		assert.True(t, impact.IsZero())
	})
}

func TestPositionPriceImpact(t *testing.T) {
	t.Run("IncreaseWorsensBalancedMarket", func(t *testing.T) {
		st := newImpactState("0", "0")
		impact, err := st.positionPriceImpact(dec("200000"), true, true)
		require.NoError(t, err)
		assert.True(t, impact.Equal(dec("-400")), "got %s", impact)
	})

	t.Run("IncreaseImprovesImbalancedMarket", func(t *testing.T) {
		st := newImpactState("0", "200000")
		impact, err := st.positionPriceImpact(dec("200000"), true, true)
		require.NoError(t, err)
		assert.True(t, impact.Equal(dec("200")), "got %s", impact)
	})

	t.Run("DecreaseMirrorsIncrease", func(t *testing.T) {
		st := newImpactState("200000", "0")
		impact, err := st.positionPriceImpact(dec("200000"), true, false)
		require.NoError(t, err)
		assert.True(t, impact.Equal(dec("200")), "got %s", impact)
	})

	t.Run("VirtualInventoryWorsens", func(t *testing.T) {
		st := newImpactState("0", "0")
		st.hasVirtualPosition = true
		st.virtualPositionInventory = dec("300000")
		impact, err := st.positionPriceImpact(dec("200000"), true, true)
		require.NoError(t, err)
		// real: -400, virtual 3e5 -> 5e5: -(2500-900) = -1600
		assert.True(t, impact.Equal(dec("-1600")), "got %s", impact)
	})

	t.Run("VirtualInventoryNeverImproves", func(t *testing.T) {
		st := newImpactState("0", "0")
		st.hasVirtualPosition = true
		st.virtualPositionInventory = dec("-300000")
		impact, err := st.positionPriceImpact(dec("200000"), true, true)
		require.NoError(t, err)
		// virtual leg improves to +400 but the real -400 still applies
		assert.True(t, impact.Equal(dec("-400")), "got %s", impact)
	})

	t.Run("BalanceImprovingTradeKeepsPositiveImpact", func(t *testing.T) {
		// Closing a short that holds the only open interest improves the
		// real balance. The positive impact stands even though the same
		// move worsens the virtual imbalance.
		st := newImpactState("0", "200000")
		st.hasVirtualPosition = true
		st.virtualPositionInventory = dec("0")
		impact, err := st.positionPriceImpact(dec("200000"), false, false)
		require.NoError(t, err)
		assert.True(t, impact.Equal(dec("200")), "got %s", impact)
	})
}

func TestSwapPriceImpact(t *testing.T) {
	st := newImpactState("0", "0")
	st.poolAmount["WETH"] = dec("100")
	st.poolAmount["USDC"] = dec("500000")

	t.Run("BalancedPoolWorsens", func(t *testing.T) {
		impact, err := st.swapPriceImpact("USDC", "WETH", dec("10000"), dec("10000"))
		require.NoError(t, err)
		// diff 0 -> -20000: -(1e-8 * 4e8) = -4
		assert.True(t, impact.Equal(dec("-4")), "got %s", impact)
	})

	t.Run("RebalancingEarns", func(t *testing.T) {
		heavy := newImpactState("0", "0")
		heavy.poolAmount["WETH"] = dec("96")
		heavy.poolAmount["USDC"] = dec("500000")
		// diff -20000 -> 0 at the positive factor
		got, err := heavy.swapPriceImpact("WETH", "USDC", dec("10000"), dec("10000"))
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("2")), "got %s", got)
	})

	t.Run("VirtualSwapInventoryWorsens", func(t *testing.T) {
		st2 := newImpactState("0", "0")
		st2.poolAmount["WETH"] = dec("100")
		st2.poolAmount["USDC"] = dec("500000")
		st2.hasVirtualSwap = true
		st2.virtualSwapInventory[true] = dec("900000")
		st2.virtualSwapInventory[false] = dec("850000")
		impact, err := st2.swapPriceImpact("WETH", "USDC", dec("10000"), dec("10000"))
		require.NoError(t, err)
		// real leg pays -4, virtual diff 50000 -> 70000 pays -(1e-8*(49e8-25e8))
		assert.True(t, impact.Equal(dec("-24")), "got %s", impact)
	})

	t.Run("PoolBalancingSwapKeepsPositiveImpact", func(t *testing.T) {
		// A swap that rebalances the real pool earns its positive impact
		// even when the virtual inventory says the move worsens balance.
		heavy := newImpactState("0", "0")
		heavy.poolAmount["WETH"] = dec("96")
		heavy.poolAmount["USDC"] = dec("500000")
		heavy.hasVirtualSwap = true
		heavy.virtualSwapInventory[true] = dec("500000")
		heavy.virtualSwapInventory[false] = dec("500000")
		impact, err := heavy.swapPriceImpact("WETH", "USDC", dec("10000"), dec("10000"))
		require.NoError(t, err)
		// real diff -20000 -> 0 earns +2; virtual 0 -> +20000 would pay -4
		assert.True(t, impact.Equal(dec("2")), "got %s", impact)
	})
}

func TestCapImpactUsdByFactor(t *testing.T) {
	assert.True(t, capImpactUsdByFactor(dec("-400"), dec("200000"), dec("0.001")).Equal(dec("-200")))
	assert.True(t, capImpactUsdByFactor(dec("400"), dec("200000"), dec("0.001")).Equal(dec("200")))
	assert.True(t, capImpactUsdByFactor(dec("-100"), dec("200000"), dec("0.001")).Equal(dec("-100")))
	assert.True(t, capImpactUsdByFactor(dec("-400"), dec("200000"), decimal.Zero).Equal(dec("-400")))
}

func TestPositionImpactTokens(t *testing.T) {
	price := Price{Min: dec("4999"), Max: dec("5000")}

	t.Run("PositiveConvertsAtMaxRoundingDown", func(t *testing.T) {
		got := positionImpactTokens(dec("100"), price)
		assert.True(t, got.Equal(dec("0.02")), "got %s", got)
	})

	t.Run("NegativeConvertsAtMinRoundingUp", func(t *testing.T) {
		got := positionImpactTokens(dec("-100"), price)
		// magnitude at least 100/4999
		assert.True(t, got.Neg().GreaterThanOrEqual(dec("0.02")), "got %s", got)
		assert.True(t, got.Sign() < 0)
	})
}

func TestCapPositiveImpactByPool(t *testing.T) {
	assert.True(t, capPositiveImpactByPool(dec("0.05"), dec("0.02")).Equal(dec("0.02")))
	assert.True(t, capPositiveImpactByPool(dec("0.01"), dec("0.02")).Equal(dec("0.01")))
	assert.True(t, capPositiveImpactByPool(dec("-0.05"), dec("0.02")).Equal(dec("-0.05")))
}

func TestRealizePendingImpact(t *testing.T) {
	t.Run("ProportionalRelease", func(t *testing.T) {
		released, remaining := realizePendingImpact(dec("-0.09"), dec("100000"), dec("300000"))
		assert.True(t, released.Equal(dec("-0.03")), "released %s", released)
		assert.True(t, remaining.Equal(dec("-0.06")), "remaining %s", remaining)
	})

	t.Run("FullCloseReleasesAll", func(t *testing.T) {
		released, remaining := realizePendingImpact(dec("-0.09"), dec("300000"), dec("300000"))
		assert.True(t, released.Equal(dec("-0.09")))
		assert.True(t, remaining.IsZero())
	})

	t.Run("ZeroSizeReleasesAll", func(t *testing.T) {
		released, remaining := realizePendingImpact(dec("0.01"), decimal.Zero, decimal.Zero)
		assert.True(t, released.Equal(dec("0.01")))
		assert.True(t, remaining.IsZero())
	})
}
