package synth

import (
	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/events"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/precision"
)

// settleFunding advances the funding accumulators to now. The rate is
// computed from the open-interest imbalance, the larger side pays, and the
// per-size values are kept in collateral token units so position charges
// are a plain multiply by size.
//
// Paying-side debits round up and receiving-side credits round down, so the
// sum credited never exceeds the sum debited.
func (e *Engine) settleFunding(st *marketState, now int64) {
	elapsed := now - st.fundingUpdatedAt
	if st.fundingUpdatedAt == 0 {
		st.fundingUpdatedAt = now
		return
	}
	if elapsed <= 0 {
		return
	}
	st.fundingUpdatedAt = now

	longOI := st.sideOpenInterest(true)
	shortOI := st.sideOpenInterest(false)
	totalOI := longOI.Add(shortOI)
	imbalance := longOI.Sub(shortOI)
	if totalOI.IsZero() || imbalance.IsZero() || st.cfg.FundingFactor.IsZero() {
		return
	}

	exponent := st.cfg.FundingExponentFactor
	if exponent.IsZero() {
		exponent = precision.One
	}
	imbPow, err := precision.ApplyExponentFactor(imbalance.Abs(), exponent)
	if err != nil {
		e.log.Error("funding imbalance exponent failed",
			"market", st.market.MarketToken, "err", err)
		return
	}
	// USD of funding per USD of paying-side size over the elapsed window.
	rate := precision.MulDiv(
		st.cfg.FundingFactor.Mul(decimal.NewFromInt(elapsed)),
		imbPow, totalOI, false)
	if rate.IsZero() {
		return
	}

	payingIsLong := longOI.GreaterThan(shortOI)
	receivingOI := shortOI
	if !payingIsLong {
		receivingOI = longOI
	}

	for _, t := range st.market.CollateralTokens() {
		payKey := sideKey{t, payingIsLong}
		payOI := st.openInterest[payKey]
		if payOI.IsZero() {
			continue
		}
		price := st.prices[t].Max
		// Tokens of t charged per USD of paying size.
		perSize := precision.Div(rate, price, true)
		st.fundingFeePerSize[payKey] = st.fundingFeePerSize[payKey].Add(perSize)

		if receivingOI.IsZero() {
			continue
		}
		// Total tokens collected from positions holding t, spread over the
		// whole receiving side regardless of its collateral token.
		collected := precision.MulDiv(rate, payOI, price, false)
		recvKey := sideKey{t, !payingIsLong}
		perSizeRecv := precision.Div(collected, receivingOI, false)
		st.claimableFundingPerSize[recvKey] = st.claimableFundingPerSize[recvKey].Add(perSizeRecv)
	}

	e.emit(events.New(events.FundingUpdated).
		SetStr("market", st.market.MarketToken).
		SetNum("elapsed", decimal.NewFromInt(elapsed)).
		SetNum("rate", rate).
		SetNum("longOpenInterest", longOI).
		SetNum("shortOpenInterest", shortOI).
		SetFlag("payingIsLong", payingIsLong))
}

// settlePositionFunding charges the position its accrued funding debit and
// credits its claimable funding, both against the pre-trade size. Snapshots
// advance to the current accumulator values.
//
// The returned amount is in collateral tokens and is charged with the other
// trade fees. Claimable credits go into the trade's claim ledger.
func (e *Engine) settlePositionFunding(st *marketState, pos *Position, ledger claimLedger) decimal.Decimal {
	side := pos.IsLong
	payKey := sideKey{pos.CollateralToken, side}

	current := st.fundingFeePerSize[payKey]
	owed := current.Sub(pos.FundingFeeAmountPerSize).Mul(pos.SizeInUsd)
	pos.FundingFeeAmountPerSize = current

	longKey := sideKey{st.market.LongToken, side}
	longCur := st.claimableFundingPerSize[longKey]
	longDelta := longCur.Sub(pos.LongTokenClaimableFundingAmountPerSize).Mul(pos.SizeInUsd)
	pos.LongTokenClaimableFundingAmountPerSize = longCur
	if longDelta.Sign() > 0 {
		ledger.addClaimableFunding(st.market.MarketToken, st.market.LongToken, pos.Account, longDelta)
	}
	if !st.market.IsSingleToken() {
		shortKey := sideKey{st.market.ShortToken, side}
		shortCur := st.claimableFundingPerSize[shortKey]
		shortDelta := shortCur.Sub(pos.ShortTokenClaimableFundingAmountPerSize).Mul(pos.SizeInUsd)
		pos.ShortTokenClaimableFundingAmountPerSize = shortCur
		if shortDelta.Sign() > 0 {
			ledger.addClaimableFunding(st.market.MarketToken, st.market.ShortToken, pos.Account, shortDelta)
		}
	}
	if owed.Sign() < 0 {
		owed = decimal.Zero
	}
	return owed
}
