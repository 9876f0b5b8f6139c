package synth

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedClaim struct {
	kind    string
	token   string
	account string
	amount  decimal.Decimal
}

// recordingLedger captures claim credits without touching the store.
type recordingLedger struct {
	claims []recordedClaim
}

func (l *recordingLedger) addClaimableFunding(market, token, account string, amount decimal.Decimal) {
	l.claims = append(l.claims, recordedClaim{"funding", token, account, amount})
}

func (l *recordingLedger) addAffiliateReward(market, token, affiliate string, amount decimal.Decimal) {
	l.claims = append(l.claims, recordedClaim{"affiliate", token, affiliate, amount})
}

func (l *recordingLedger) addClaimableUIFee(market, token, receiver string, amount decimal.Decimal) {
	l.claims = append(l.claims, recordedClaim{"ui", token, receiver, amount})
}

func (l *recordingLedger) addClaimableFee(market, token string, amount decimal.Decimal) {
	l.claims = append(l.claims, recordedClaim{"fee", token, "", amount})
}

func (l *recordingLedger) find(kind string) (recordedClaim, bool) {
	for _, c := range l.claims {
		if c.kind == kind {
			return c, true
		}
	}
	return recordedClaim{}, false
}

func feeState() *marketState {
	st := newImpactState("0", "0")
	st.cfg.PositionFeeFactorPositive = dec("0.00025")
	st.cfg.PositionFeeFactorNegative = dec("0.0005")
	return st
}

func TestComputePositionFeesWithReferral(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	require.NoError(t, e.RegisterReferralCode("gold", "aff-1", dec("0.2"), dec("0.5")))
	require.NoError(t, e.SetTraderReferralCode("trader-1", "gold"))

	st := feeState()
	ledger := &recordingLedger{}
	order := &Order{Account: "trader-1", Market: "ETH-USD", CollateralToken: "USDC"}

	fees, err := e.computePositionFees(st, order, dec("500000"), false, decimal.Zero, decimal.Zero, ledger)
	require.NoError(t, err)

	assert.True(t, fees.PositionFeeUsd.Equal(dec("250")), "gross %s", fees.PositionFeeUsd)
	assert.True(t, fees.TotalRebateUsd.Equal(dec("50")))
	assert.True(t, fees.TraderDiscount.Equal(dec("25")))
	assert.True(t, fees.AffiliateReward.Equal(dec("25")))
	assert.True(t, fees.ProtocolFeeUsd.Equal(dec("225")), "trader pays gross less discount")
	assert.True(t, fees.FeeReceiverUsd.Equal(dec("20")), "tenth of the 200 residual")
	assert.True(t, fees.PoolFeeUsd.Equal(dec("180")))
	assert.Equal(t, "aff-1", fees.Affiliate)
	assert.Equal(t, "gold", fees.ReferralCode)
	assert.True(t, fees.TotalCostAmount.Equal(dec("225")), "cost %s", fees.TotalCostAmount)

	aff, ok := ledger.find("affiliate")
	require.True(t, ok)
	assert.Equal(t, "aff-1", aff.account)
	assert.True(t, aff.amount.Equal(dec("25")))

	recv, ok := ledger.find("fee")
	require.True(t, ok)
	assert.True(t, recv.amount.Equal(dec("20")))

	assert.True(t, st.poolAmount["USDC"].Equal(dec("180")),
		"pool keeps the residual after claims, got %s", st.poolAmount["USDC"])
}

func TestComputePositionFeesWithoutReferral(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	st := feeState()
	ledger := &recordingLedger{}
	order := &Order{Account: "trader-2", Market: "ETH-USD", CollateralToken: "USDC"}

	fees, err := e.computePositionFees(st, order, dec("500000"), false, decimal.Zero, decimal.Zero, ledger)
	require.NoError(t, err)

	assert.True(t, fees.PositionFeeUsd.Equal(dec("250")))
	assert.True(t, fees.TotalRebateUsd.IsZero())
	assert.True(t, fees.ProtocolFeeUsd.Equal(dec("250")))
	assert.True(t, fees.FeeReceiverUsd.Equal(dec("25")))
	assert.True(t, fees.PoolFeeUsd.Equal(dec("225")))
	assert.Empty(t, fees.Affiliate)
	_, ok := ledger.find("affiliate")
	assert.False(t, ok)
}

func TestComputePositionFeesImprovedRate(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	st := feeState()
	ledger := &recordingLedger{}
	order := &Order{Account: "trader-2", Market: "ETH-USD", CollateralToken: "USDC"}

	fees, err := e.computePositionFees(st, order, dec("500000"), true, decimal.Zero, decimal.Zero, ledger)
	require.NoError(t, err)
	assert.True(t, fees.PositionFeeUsd.Equal(dec("125")),
		"balance-improving trades pay the lower rate, got %s", fees.PositionFeeUsd)
}

func TestUIFeeCappedByGlobalMax(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	require.NoError(t, e.SetUIFeeFactor("ui-1", dec("0.001")))

	st := feeState()
	ledger := &recordingLedger{}
	order := &Order{
		Account: "trader-2", Market: "ETH-USD",
		CollateralToken: "USDC", UIFeeReceiver: "ui-1",
	}

	fees, err := e.computePositionFees(st, order, dec("500000"), false, decimal.Zero, decimal.Zero, ledger)
	require.NoError(t, err)

	// registered 0.001 but the global max is 0.0005
	assert.True(t, fees.UIFeeUsd.Equal(dec("250")), "ui fee %s", fees.UIFeeUsd)
	assert.True(t, fees.TotalCostAmount.Equal(dec("500")), "cost %s", fees.TotalCostAmount)

	ui, ok := ledger.find("ui")
	require.True(t, ok)
	assert.Equal(t, "ui-1", ui.account)
	assert.True(t, ui.amount.Equal(dec("250")))
}

func TestFundingAndBorrowingFlowIntoCost(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	st := feeState()
	ledger := &recordingLedger{}
	order := &Order{Account: "trader-2", Market: "ETH-USD", CollateralToken: "USDC"}

	fees, err := e.computePositionFees(st, order, decimal.Zero, false, dec("40.32"), dec("2.4"), ledger)
	require.NoError(t, err)

	assert.True(t, fees.PositionFeeUsd.IsZero())
	assert.True(t, fees.FundingFeeAmount.Equal(dec("40.32")))
	assert.True(t, fees.BorrowingFeeAmount.Equal(dec("2.4")))
	assert.True(t, fees.TotalCostAmount.Equal(dec("42.72")), "cost %s", fees.TotalCostAmount)
	assert.True(t, st.poolAmount["USDC"].Equal(dec("42.72")),
		"funding and borrowing charges stay in the pool until claimed")
}
