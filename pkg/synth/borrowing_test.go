package synth

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func borrowingConfig() MarketConfig {
	return MarketConfig{
		BorrowingFactorLong:   dec("0.0000000006"),
		BorrowingFactorShort:  dec("0.0000000006"),
		BorrowingExponentLong: dec("1"),
		BorrowingExponentShort: dec("1"),
		MinCollateralUsd:      dec("10"),
		MinPositionSizeUsd:    dec("100"),
	}
}

func TestBorrowingAccrual(t *testing.T) {
	e, oracle, clock, _ := newTestEngine(t)
	setupMarket(t, e, oracle, borrowingConfig(), "0", "1000000")

	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("200000"), CollateralDelta: dec("30000"),
	})

	clock.Advance(100000 * time.Second)

	// factor delta = 6e-10 * 100000 * 200000 / 1000000 = 1.2e-5
	res := placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})
	require.Equal(t, OrderExecuted, res.State)
	assert.True(t, res.Fees.BorrowingFeeUsd.Equal(dec("2.4")),
		"borrowing %s", res.Fees.BorrowingFeeUsd)
	assert.True(t, res.Fees.BorrowingFeeAmount.Equal(dec("2.4")))

	pos, err := e.GetPosition("alice", "ETH-USD", "USDC", true)
	require.NoError(t, err)
	assert.True(t, pos.CollateralAmount.Equal(dec("29997.6")),
		"collateral %s", pos.CollateralAmount)

	snap, err := e.Snapshot("ETH-USD")
	require.NoError(t, err)
	assert.True(t, snap.CumulativeBorrowingLong.Equal(dec("0.000012")),
		"cumulative %s", snap.CumulativeBorrowingLong)
	assert.True(t, snap.CumulativeBorrowingShort.IsZero(), "no short open interest")
}

func TestBorrowingSnapshotPreventsDoubleCharge(t *testing.T) {
	e, oracle, clock, _ := newTestEngine(t)
	setupMarket(t, e, oracle, borrowingConfig(), "0", "1000000")

	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("200000"), CollateralDelta: dec("30000"),
	})

	clock.Advance(100000 * time.Second)
	placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})

	// same timestamp, the snapshot already covers the accrued factor
	res := placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})
	require.Equal(t, OrderExecuted, res.State)
	assert.True(t, res.Fees.BorrowingFeeUsd.IsZero(),
		"borrowing %s", res.Fees.BorrowingFeeUsd)
}

func TestBorrowingReceiverCut(t *testing.T) {
	e, oracle, clock, _ := newTestEngine(t)
	require.NoError(t, e.SetGlobalConfig(GlobalConfig{
		FeeReceiverFactor:          dec("0.1"),
		BorrowingFeeReceiverFactor: dec("0.5"),
		MaxUIFeeFactor:             dec("0.0005"),
	}))
	setupMarket(t, e, oracle, borrowingConfig(), "0", "1000000")

	placeOrder(t, e, &Order{
		Kind: OrderIncrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("200000"), CollateralDelta: dec("30000"),
	})
	clock.Advance(100000 * time.Second)
	res := placeOrder(t, e, &Order{
		Kind: OrderDecrease, Account: "alice", Market: "ETH-USD",
		CollateralToken: "USDC", IsLong: true,
		SizeDeltaUsd: dec("1000"),
	})
	require.Equal(t, OrderExecuted, res.State)
	require.True(t, res.Fees.BorrowingFeeAmount.Equal(dec("2.4")))

	claimable, err := e.GetClaimable(ClaimFeeReceiver, "ETH-USD", "USDC", "")
	require.NoError(t, err)
	assert.True(t, claimable.Equal(dec("1.2")), "claimable %s", claimable)
}

func TestPositionBorrowingFeeUsdClampsNegativeDelta(t *testing.T) {
	st := newImpactState("200000", "0")
	st.cumulativeBorrowingFactor[true] = dec("0.00001")
	pos := &Position{IsLong: true, SizeInUsd: dec("200000"), BorrowingFactor: dec("0.00002")}
	assert.True(t, st.positionBorrowingFeeUsd(pos).Equal(decimal.Zero))

	pos.BorrowingFactor = dec("0.000005")
	assert.True(t, st.positionBorrowingFeeUsd(pos).Equal(dec("1")))
}
