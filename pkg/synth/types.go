// Package synth implements the pricing and fee-accrual core of the
// synthetics exchange: price impact over real and virtual inventory,
// deferred impact realization, funding and borrowing per-size accumulators,
// and protocol/referral/UI fee distribution. Trades are executed strictly
// sequentially and atomically against the backing datastore.
package synth

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market identifies a long/short token pair and an index asset. Long and
// short token may coincide, forming a single-token market. The virtual ids
// link the market into cross-market inventory shared with other markets.
type Market struct {
	MarketToken string `json:"marketToken"`
	IndexToken  string `json:"indexToken"`
	LongToken   string `json:"longToken"`
	ShortToken  string `json:"shortToken"`

	// VirtualMarketID shares swap-impact virtual inventory across markets.
	VirtualMarketID string `json:"virtualMarketId,omitempty"`
	// VirtualTokenID shares position-impact virtual inventory across
	// markets listing the same index asset.
	VirtualTokenID string `json:"virtualTokenId,omitempty"`
}

// IsSingleToken reports whether long and short token coincide.
func (m Market) IsSingleToken() bool {
	return m.LongToken == m.ShortToken
}

// CollateralTokens returns the distinct collateral tokens of the market.
func (m Market) CollateralTokens() []string {
	if m.IsSingleToken() {
		return []string{m.LongToken}
	}
	return []string{m.LongToken, m.ShortToken}
}

// MarketConfig holds the per-market pricing and fee factors. Factors are
// plain decimal rates (e.g. 5e-9), exponents are ≥ 1.
type MarketConfig struct {
	PositionImpactFactorPositive decimal.Decimal `json:"positionImpactFactorPositive"`
	PositionImpactFactorNegative decimal.Decimal `json:"positionImpactFactorNegative"`
	PositionImpactExponent       decimal.Decimal `json:"positionImpactExponent"`

	// MaxPositionImpactFactor clamps impact magnitude relative to the
	// order's notional; liquidations use the dedicated factor.
	MaxPositionImpactFactor                decimal.Decimal `json:"maxPositionImpactFactor"`
	MaxPositionImpactFactorForLiquidations decimal.Decimal `json:"maxPositionImpactFactorForLiquidations"`

	SwapImpactFactorPositive decimal.Decimal `json:"swapImpactFactorPositive"`
	SwapImpactFactorNegative decimal.Decimal `json:"swapImpactFactorNegative"`
	SwapImpactExponent       decimal.Decimal `json:"swapImpactExponent"`

	FundingFactor         decimal.Decimal `json:"fundingFactor"`
	FundingExponentFactor decimal.Decimal `json:"fundingExponentFactor"`

	BorrowingFactorLong    decimal.Decimal `json:"borrowingFactorLong"`
	BorrowingFactorShort   decimal.Decimal `json:"borrowingFactorShort"`
	BorrowingExponentLong  decimal.Decimal `json:"borrowingExponentLong"`
	BorrowingExponentShort decimal.Decimal `json:"borrowingExponentShort"`

	// PositionFeeFactorPositive applies to balance-improving trades and is
	// normally lower than the negative-impact rate.
	PositionFeeFactorPositive decimal.Decimal `json:"positionFeeFactorPositive"`
	PositionFeeFactorNegative decimal.Decimal `json:"positionFeeFactorNegative"`
	SwapFeeFactor             decimal.Decimal `json:"swapFeeFactor"`

	MinCollateralUsd   decimal.Decimal `json:"minCollateralUsd"`
	MinPositionSizeUsd decimal.Decimal `json:"minPositionSizeUsd"`
}

// Price is a validated min/max price pair. The engine uses the conservative
// side of each computation: collateral at Min, debt at Max.
type Price struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Pick returns Max when maximize is true, Min otherwise.
func (p Price) Pick(maximize bool) decimal.Decimal {
	if maximize {
		return p.Max
	}
	return p.Min
}

// Mid returns the midpoint, used only for reporting.
func (p Price) Mid() decimal.Decimal {
	return p.Min.Add(p.Max).Div(decimal.NewFromInt(2))
}

// IsZero reports whether both sides are zero.
func (p Price) IsZero() bool {
	return p.Min.IsZero() && p.Max.IsZero()
}

// Oracle supplies validated prices. Aggregation and signature validation
// happen outside the core.
type Oracle interface {
	GetPrice(token string) (Price, error)
}

// Position is account + market + collateral token + direction, with the
// settlement snapshots used by the accumulator-plus-snapshot fee mechanic
// and the deferred impact balance.
type Position struct {
	Account         string `json:"account"`
	Market          string `json:"market"`
	CollateralToken string `json:"collateralToken"`
	IsLong          bool   `json:"isLong"`

	SizeInUsd        decimal.Decimal `json:"sizeInUsd"`
	SizeInTokens     decimal.Decimal `json:"sizeInTokens"`
	CollateralAmount decimal.Decimal `json:"collateralAmount"`

	// Settlement snapshots: the accumulator values at last touch.
	FundingFeeAmountPerSize                 decimal.Decimal `json:"fundingFeeAmountPerSize"`
	LongTokenClaimableFundingAmountPerSize  decimal.Decimal `json:"longTokenClaimableFundingAmountPerSize"`
	ShortTokenClaimableFundingAmountPerSize decimal.Decimal `json:"shortTokenClaimableFundingAmountPerSize"`
	BorrowingFactor                         decimal.Decimal `json:"borrowingFactor"`

	// PendingImpactAmount is the signed impact (in index tokens) deferred
	// from increases and not yet realized.
	PendingImpactAmount decimal.Decimal `json:"pendingImpactAmount"`

	IncreasedAt int64 `json:"increasedAt"`
	DecreasedAt int64 `json:"decreasedAt"`
}

// IsEmpty reports whether the position has no size and no collateral.
func (p *Position) IsEmpty() bool {
	return p.SizeInUsd.IsZero() && p.SizeInTokens.IsZero() && p.CollateralAmount.IsZero()
}

// OrderKind distinguishes the trade request types the orchestrator executes.
type OrderKind int

const (
	OrderIncrease OrderKind = iota
	OrderDecrease
	OrderSwap
	OrderLiquidation
)

func (k OrderKind) String() string {
	switch k {
	case OrderIncrease:
		return "increase"
	case OrderDecrease:
		return "decrease"
	case OrderSwap:
		return "swap"
	case OrderLiquidation:
		return "liquidation"
	}
	return "unknown"
}

// OrderState is the orchestrator state machine. Frozen retains the request
// pending a fresh price; Cancelled is terminal.
type OrderState int

const (
	OrderCreated OrderState = iota
	OrderExecuted
	OrderCancelled
	OrderFrozen
)

func (s OrderState) String() string {
	switch s {
	case OrderCreated:
		return "created"
	case OrderExecuted:
		return "executed"
	case OrderCancelled:
		return "cancelled"
	case OrderFrozen:
		return "frozen"
	}
	return "unknown"
}

// Order is one trade request against a market.
type Order struct {
	ID      string    `json:"id"`
	Kind    OrderKind `json:"kind"`
	Account string    `json:"account"`
	Market  string    `json:"market"`

	// Position orders.
	CollateralToken string          `json:"collateralToken,omitempty"`
	IsLong          bool            `json:"isLong,omitempty"`
	SizeDeltaUsd    decimal.Decimal `json:"sizeDeltaUsd"`
	CollateralDelta decimal.Decimal `json:"collateralDelta"`
	AcceptablePrice decimal.Decimal `json:"acceptablePrice"`

	// Swap orders.
	TokenIn  string          `json:"tokenIn,omitempty"`
	AmountIn decimal.Decimal `json:"amountIn"`

	UIFeeReceiver string `json:"uiFeeReceiver,omitempty"`

	State     OrderState `json:"state"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// PositionFees is the per-trade fee breakdown. It is never persisted as an
// entity, only applied as deltas to balances and claimable accumulators.
type PositionFees struct {
	PositionFeeUsd  decimal.Decimal `json:"positionFeeUsd"`
	TotalRebateUsd  decimal.Decimal `json:"totalRebateUsd"`
	TraderDiscount  decimal.Decimal `json:"traderDiscountUsd"`
	AffiliateReward decimal.Decimal `json:"affiliateRewardUsd"`
	UIFeeUsd        decimal.Decimal `json:"uiFeeUsd"`

	// ProtocolFeeUsd = PositionFeeUsd − TotalRebateUsd + AffiliateReward,
	// i.e. what the trader pays net of their discount.
	ProtocolFeeUsd decimal.Decimal `json:"protocolFeeUsd"`
	FeeReceiverUsd decimal.Decimal `json:"feeReceiverUsd"`
	PoolFeeUsd     decimal.Decimal `json:"poolFeeUsd"`

	FundingFeeAmount   decimal.Decimal `json:"fundingFeeAmount"`
	BorrowingFeeUsd    decimal.Decimal `json:"borrowingFeeUsd"`
	BorrowingFeeAmount decimal.Decimal `json:"borrowingFeeAmount"`

	Affiliate    string `json:"affiliate,omitempty"`
	ReferralCode string `json:"referralCode,omitempty"`

	// TotalCostAmount is the collateral-token amount charged to the trader
	// for this trade (position + funding + borrowing + ui fees).
	TotalCostAmount decimal.Decimal `json:"totalCostAmount"`
}

// TradeResult is the outcome of executing one order.
type TradeResult struct {
	Order          *Order          `json:"order"`
	State          OrderState      `json:"state"`
	Reason         string          `json:"reason,omitempty"`
	ExecutionPrice decimal.Decimal `json:"executionPrice"`
	PriceImpactUsd decimal.Decimal `json:"priceImpactUsd"`

	// ImpactTokens is the signed deferred (increase) or realized (decrease)
	// impact in index tokens.
	ImpactTokens decimal.Decimal `json:"impactTokens"`

	SizeDeltaUsd    decimal.Decimal `json:"sizeDeltaUsd"`
	SizeDeltaTokens decimal.Decimal `json:"sizeDeltaTokens"`
	RealizedPnlUsd  decimal.Decimal `json:"realizedPnlUsd"`
	PayoutAmount    decimal.Decimal `json:"payoutAmount"`

	// Swap results.
	AmountIn  decimal.Decimal `json:"amountIn"`
	AmountOut decimal.Decimal `json:"amountOut"`
	TokenOut  string          `json:"tokenOut,omitempty"`

	Fees PositionFees `json:"fees"`
}

// ClaimKind selects a claimable ledger.
type ClaimKind int

const (
	ClaimFunding ClaimKind = iota
	ClaimAffiliateReward
	ClaimUIFee
	ClaimFeeReceiver
)

func (k ClaimKind) String() string {
	switch k {
	case ClaimFunding:
		return "funding"
	case ClaimAffiliateReward:
		return "affiliate_reward"
	case ClaimUIFee:
		return "ui_fee"
	case ClaimFeeReceiver:
		return "fee_receiver"
	}
	return "unknown"
}
