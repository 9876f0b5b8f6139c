package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fundingConfig() MarketConfig {
	return MarketConfig{
		FundingFactor:         dec("0.0000000005"),
		FundingExponentFactor: dec("1"),
		MinCollateralUsd:      dec("10"),
		MinPositionSizeUsd:    dec("100"),
	}
}

func TestFundingAccrual(t *testing.T) {
	e, oracle, clock, _ := newTestEngine(t)
	setupMarket(t, e, oracle, fundingConfig(), "1000", "1000000")

	// 200k long vs 100k short, both collateralized in the stable token
	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("200000"), CollateralDelta: dec("30000"),
	})
	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "bob", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: false,
		SizeDeltaUsd: dec("100000"), CollateralDelta: dec("20000"),
	})

	clock.Advance(14 * 24 * time.Hour)

	// rate = 5e-10 * 1209600 * 100000 / 300000 = 2.016e-4 per usd of size
	res := placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})
	require.Equal(t, OrderExecuted, res.State)
	assert.True(t, res.Fees.FundingFeeAmount.Equal(dec("40.32")),
		"funding %s", res.Fees.FundingFeeAmount)

	pos, err := e.GetPosition("alice", "ETH-USD", "USDC", true)
	require.NoError(t, err)
	assert.True(t, pos.CollateralAmount.Equal(dec("29959.68")),
		"collateral %s", pos.CollateralAmount)

	state, err := e.GetFundingState("ETH-USD", "USDC", true)
	require.NoError(t, err)
	assert.True(t, state.FundingFeeAmountPerSize.Equal(dec("0.0002016")),
		"per size %s", state.FundingFeeAmountPerSize)
	assert.Equal(t, clock.Now().Unix(), state.FundingUpdatedAt)
}

func TestFundingCreditsReceivingSide(t *testing.T) {
	e, oracle, clock, _ := newTestEngine(t)
	setupMarket(t, e, oracle, fundingConfig(), "1000", "1000000")

	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("200000"), CollateralDelta: dec("30000"),
	})
	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "bob", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: false,
		SizeDeltaUsd: dec("100000"), CollateralDelta: dec("20000"),
	})

	clock.Advance(14 * 24 * time.Hour)

	// the paying side settles first so its charge lands in the pool
	placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})

	// touching the short realizes its claimable share
	res := placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "bob", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: false,
		SizeDeltaUsd: dec("1000"),
	})
	require.Equal(t, OrderExecuted, res.State)
	assert.True(t, res.Fees.FundingFeeAmount.IsZero(), "receiving side owes nothing")

	claimable, err := e.GetClaimable(ClaimFunding, "ETH-USD", "USDC", "bob")
	require.NoError(t, err)
	assert.True(t, claimable.Equal(dec("40.32")), "claimable %s", claimable)

	paid, err := e.Claim(ClaimFunding, "ETH-USD", "USDC", "bob")
	require.NoError(t, err)
	assert.True(t, paid.Equal(dec("40.32")))

	_, err = e.Claim(ClaimFunding, "ETH-USD", "USDC", "bob")
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestFundingNoElapsedTimeNoCharge(t *testing.T) {
	e, oracle, clock, _ := newTestEngine(t)
	setupMarket(t, e, oracle, fundingConfig(), "1000", "1000000")

	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("200000"), CollateralDelta: dec("30000"),
	})
	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "bob", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: false,
		SizeDeltaUsd: dec("100000"), CollateralDelta: dec("20000"),
	})

	clock.Advance(14 * 24 * time.Hour)
	placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})

	// same timestamp, accumulators unchanged
	res := placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})
	require.Equal(t, OrderExecuted, res.State)
	assert.True(t, res.Fees.FundingFeeAmount.IsZero(),
		"funding %s", res.Fees.FundingFeeAmount)
}

func TestFundingBalancedMarketAccruesNothing(t *testing.T) {
	e, oracle, clock, _ := newTestEngine(t)
	setupMarket(t, e, oracle, fundingConfig(), "1000", "1000000")

	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("100000"), CollateralDelta: dec("20000"),
	})
	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "bob", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: false,
		SizeDeltaUsd: dec("100000"), CollateralDelta: dec("20000"),
	})

	clock.Advance(14 * 24 * time.Hour)
	res := placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})
	require.Equal(t, OrderExecuted, res.State)
	assert.True(t, res.Fees.FundingFeeAmount.IsZero())
}
