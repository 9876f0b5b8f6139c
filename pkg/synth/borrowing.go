package synth

import (
	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/events"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/precision"
)

// settleBorrowing advances the cumulative borrowing factors for both sides.
// The per-second rate scales with the side's open interest raised to the
// exponent and inversely with pool value, so utilization drives the cost.
func (e *Engine) settleBorrowing(st *marketState, now int64) {
	elapsed := now - st.borrowingUpdatedAt
	if st.borrowingUpdatedAt == 0 {
		st.borrowingUpdatedAt = now
		return
	}
	if elapsed <= 0 {
		return
	}
	st.borrowingUpdatedAt = now

	poolUsd := st.poolUsd(false)
	if poolUsd.IsZero() {
		return
	}
	elapsedDec := decimal.NewFromInt(elapsed)
	updated := false
	for _, isLong := range []bool{true, false} {
		factor := st.cfg.BorrowingFactorShort
		exponent := st.cfg.BorrowingExponentShort
		if isLong {
			factor = st.cfg.BorrowingFactorLong
			exponent = st.cfg.BorrowingExponentLong
		}
		if factor.IsZero() {
			continue
		}
		if exponent.IsZero() {
			exponent = precision.One
		}
		oi := st.sideOpenInterest(isLong)
		if oi.IsZero() {
			continue
		}
		oiPow, err := precision.ApplyExponentFactor(oi, exponent)
		if err != nil {
			e.log.Error("borrowing open interest exponent failed",
				"market", st.market.MarketToken, "err", err)
			continue
		}
		delta := precision.MulDiv(factor.Mul(elapsedDec), oiPow, poolUsd, false)
		if delta.IsZero() {
			continue
		}
		st.cumulativeBorrowingFactor[isLong] = st.cumulativeBorrowingFactor[isLong].Add(delta)
		updated = true
	}
	if updated {
		e.emit(events.New(events.BorrowingUpdated).
			SetStr("market", st.market.MarketToken).
			SetNum("elapsed", elapsedDec).
			SetNum("cumulativeBorrowingFactorLong", st.cumulativeBorrowingFactor[true]).
			SetNum("cumulativeBorrowingFactorShort", st.cumulativeBorrowingFactor[false]))
	}
}

// positionBorrowingFeeUsd is the position's accrued borrowing cost since
// its snapshot, against the pre-trade size.
func (st *marketState) positionBorrowingFeeUsd(pos *Position) decimal.Decimal {
	delta := st.cumulativeBorrowingFactor[pos.IsLong].Sub(pos.BorrowingFactor)
	if delta.Sign() <= 0 {
		return decimal.Zero
	}
	return precision.ApplyFactor(pos.SizeInUsd, delta)
}
