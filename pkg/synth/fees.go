package synth

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/datastore"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/precision"
)

// referralTier is the trader's resolved referral terms. A missing or
// unregistered code yields the zero tier.
type referralTier struct {
	code              string
	affiliate         string
	totalRebateFactor decimal.Decimal
	discountShare     decimal.Decimal
}

func (e *Engine) referralTierFor(account string) (referralTier, error) {
	code, err := e.store.GetString(datastore.ReferralCodeKey(account))
	if err != nil || code == "" {
		return referralTier{}, err
	}
	affiliate, err := e.store.GetString(datastore.AffiliateForCodeKey(code))
	if err != nil || affiliate == "" {
		return referralTier{}, err
	}
	rebate, err := e.store.GetDec(datastore.ReferralTotalRebateFactorKey(code))
	if err != nil {
		return referralTier{}, err
	}
	share, err := e.store.GetDec(datastore.ReferralDiscountShareKey(code))
	if err != nil {
		return referralTier{}, err
	}
	return referralTier{code: code, affiliate: affiliate, totalRebateFactor: rebate, discountShare: share}, nil
}

// uiFeeFactorFor resolves a UI fee receiver's registered factor, capped by
// the global maximum.
func (e *Engine) uiFeeFactorFor(receiver string) (decimal.Decimal, error) {
	if receiver == "" {
		return decimal.Zero, nil
	}
	factor, err := e.store.GetDec(datastore.UIFeeFactorKey(receiver))
	if err != nil {
		return decimal.Decimal{}, err
	}
	maxFactor, err := e.store.GetDec(datastore.MaxUIFeeFactorKey())
	if err != nil {
		return decimal.Decimal{}, err
	}
	return precision.Min(factor, maxFactor), nil
}

// computePositionFees builds the full fee breakdown for a position trade
// and applies its side effects: claimable credits into the trade ledger and
// the pool share into the working pool balance.
//
// The position fee rate depends on whether the trade improved the open
// interest balance. The referral discount reduces what the trader pays, the
// affiliate reward and fee-receiver cut come out of what remains, the rest
// stays in the pool. Funding and borrowing charges collected here flow to
// the pool, which later funds the corresponding claims.
func (e *Engine) computePositionFees(
	st *marketState,
	order *Order,
	sizeDeltaUsd decimal.Decimal,
	balanceWasImproved bool,
	fundingFeeAmount decimal.Decimal,
	borrowingFeeUsd decimal.Decimal,
	ledger claimLedger,
) (PositionFees, error) {
	var fees PositionFees
	collateralPrice := st.prices[order.CollateralToken]
	mt := st.market.MarketToken

	feeFactor := st.cfg.PositionFeeFactorNegative
	if balanceWasImproved {
		feeFactor = st.cfg.PositionFeeFactorPositive
	}
	fees.PositionFeeUsd = precision.ApplyFactor(sizeDeltaUsd, feeFactor)

	tier, err := e.referralTierFor(order.Account)
	if err != nil {
		return PositionFees{}, fmt.Errorf("resolve referral tier: %w", err)
	}
	if tier.affiliate != "" {
		fees.ReferralCode = tier.code
		fees.Affiliate = tier.affiliate
		fees.TotalRebateUsd = precision.ApplyFactor(fees.PositionFeeUsd, tier.totalRebateFactor)
		fees.TraderDiscount = precision.ApplyFactor(fees.TotalRebateUsd, tier.discountShare)
		fees.AffiliateReward = fees.TotalRebateUsd.Sub(fees.TraderDiscount)
	}
	// What the trader actually pays net of their discount.
	fees.ProtocolFeeUsd = fees.PositionFeeUsd.Sub(fees.TraderDiscount)

	// Receiver cut and pool share split the residual after the affiliate
	// reward is carved out.
	residualUsd := fees.ProtocolFeeUsd.Sub(fees.AffiliateReward)
	feeReceiverFactor, err := e.store.GetDec(datastore.FeeReceiverFactorKey())
	if err != nil {
		return PositionFees{}, err
	}
	fees.FeeReceiverUsd = precision.ApplyFactor(residualUsd, feeReceiverFactor)
	fees.PoolFeeUsd = residualUsd.Sub(fees.FeeReceiverUsd)

	uiFactor, err := e.uiFeeFactorFor(order.UIFeeReceiver)
	if err != nil {
		return PositionFees{}, err
	}
	fees.UIFeeUsd = precision.ApplyFactor(sizeDeltaUsd, uiFactor)

	fees.FundingFeeAmount = fundingFeeAmount
	fees.BorrowingFeeUsd = borrowingFeeUsd
	fees.BorrowingFeeAmount = precision.UsdToTokens(borrowingFeeUsd, collateralPrice.Min, true)

	// Charges round up, credits round down.
	protocolAmount := precision.UsdToTokens(fees.ProtocolFeeUsd, collateralPrice.Min, true)
	affiliateAmount := precision.UsdToTokens(fees.AffiliateReward, collateralPrice.Min, false)
	receiverAmount := precision.UsdToTokens(fees.FeeReceiverUsd, collateralPrice.Min, false)
	uiAmount := precision.UsdToTokens(fees.UIFeeUsd, collateralPrice.Min, true)

	if affiliateAmount.Sign() > 0 {
		ledger.addAffiliateReward(mt, order.CollateralToken, tier.affiliate, affiliateAmount)
	}
	if receiverAmount.Sign() > 0 {
		ledger.addClaimableFee(mt, order.CollateralToken, receiverAmount)
	}
	if uiAmount.Sign() > 0 {
		ledger.addClaimableUIFee(mt, order.CollateralToken, order.UIFeeReceiver, uiAmount)
	}

	borrowingReceiverFactor, err := e.store.GetDec(datastore.BorrowingFeeReceiverFactorKey())
	if err != nil {
		return PositionFees{}, err
	}
	borrowingReceiverAmount := precision.ApplyFactor(fees.BorrowingFeeAmount, borrowingReceiverFactor)
	if borrowingReceiverAmount.Sign() > 0 {
		ledger.addClaimableFee(mt, order.CollateralToken, borrowingReceiverAmount)
	}

	// Everything charged but not routed to a claimable ledger stays in the
	// pool. Funding charges sit in the pool until the receiving side claims.
	poolGain := protocolAmount.Sub(affiliateAmount).Sub(receiverAmount).
		Add(fees.BorrowingFeeAmount.Sub(borrowingReceiverAmount)).
		Add(fundingFeeAmount)
	st.poolAmount[order.CollateralToken] = st.poolAmount[order.CollateralToken].Add(poolGain)

	fees.TotalCostAmount = protocolAmount.
		Add(uiAmount).
		Add(fees.BorrowingFeeAmount).
		Add(fundingFeeAmount)
	return fees, nil
}
