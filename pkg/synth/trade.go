package synth

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/datastore"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/events"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/precision"
)

func cancelResult(reason string) *TradeResult {
	return &TradeResult{State: OrderCancelled, Reason: reason}
}

func freezeResult(reason string) *TradeResult {
	return &TradeResult{State: OrderFrozen, Reason: reason}
}

// increaseExecutionPrice folds the USD impact into the fill price. A long
// increase fills against the max price and negative impact makes it worse
// (higher); shorts mirror. Trader-adverse rounding on both sides.
func increaseExecutionPrice(indexPrice Price, isLong bool, sizeDeltaUsd, impactUsd decimal.Decimal) decimal.Decimal {
	if isLong {
		return precision.MulDiv(indexPrice.Max, sizeDeltaUsd, sizeDeltaUsd.Add(impactUsd), true)
	}
	return precision.MulDiv(indexPrice.Min, sizeDeltaUsd.Add(impactUsd), sizeDeltaUsd, false)
}

// decreaseExecutionPrice mirrors the increase adjustment: positive impact
// improves the exit price for the closing side.
func decreaseExecutionPrice(indexPrice Price, isLong bool, sizeDeltaUsd, impactUsd decimal.Decimal) decimal.Decimal {
	if isLong {
		return precision.MulDiv(indexPrice.Min, sizeDeltaUsd.Add(impactUsd), sizeDeltaUsd, false)
	}
	return precision.MulDiv(indexPrice.Max, sizeDeltaUsd, sizeDeltaUsd.Add(impactUsd), true)
}

func acceptableViolated(kind OrderKind, isLong bool, executionPrice, acceptable decimal.Decimal) bool {
	if acceptable.Sign() <= 0 {
		return false
	}
	increase := kind == OrderIncrease
	if isLong == increase {
		// Long increase and short decrease want a price at or below the
		// acceptable bound.
		return executionPrice.GreaterThan(acceptable)
	}
	return executionPrice.LessThan(acceptable)
}

func (e *Engine) executeIncrease(o *Order) (*TradeResult, error) {
	st, err := e.loadMarketState(o.Market)
	if err != nil {
		return nil, err
	}
	if o.CollateralToken != st.market.LongToken && o.CollateralToken != st.market.ShortToken {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCollateral, o.CollateralToken)
	}
	now := e.now().Unix()
	e.settleFunding(st, now)
	e.settleBorrowing(st, now)
	ledger := newTradeLedger(e.store)

	pos, err := e.loadPosition(o.Account, o.Market, o.CollateralToken, o.IsLong)
	if err != nil {
		return nil, err
	}
	isNew := pos == nil
	if isNew {
		side := o.IsLong
		pos = &Position{
			Account:         o.Account,
			Market:          o.Market,
			CollateralToken: o.CollateralToken,
			IsLong:          side,
			FundingFeeAmountPerSize:                 st.fundingFeePerSize[sideKey{o.CollateralToken, side}],
			LongTokenClaimableFundingAmountPerSize:  st.claimableFundingPerSize[sideKey{st.market.LongToken, side}],
			ShortTokenClaimableFundingAmountPerSize: st.claimableFundingPerSize[sideKey{st.market.ShortToken, side}],
			BorrowingFactor:                         st.cumulativeBorrowingFactor[side],
		}
	}
	fundingOwed := e.settlePositionFunding(st, pos, ledger)
	borrowingUsd := st.positionBorrowingFeeUsd(pos)
	pos.BorrowingFactor = st.cumulativeBorrowingFactor[pos.IsLong]

	sizeDelta := o.SizeDeltaUsd
	impactUsd := decimal.Zero
	executionPrice := st.indexPrice().Pick(o.IsLong)
	sizeDeltaTokens := decimal.Zero
	impactTokens := decimal.Zero
	if sizeDelta.Sign() > 0 {
		impactUsd, err = st.positionPriceImpact(sizeDelta, o.IsLong, true)
		if err != nil {
			return nil, err
		}
		impactUsd = capImpactUsdByFactor(impactUsd, sizeDelta, st.cfg.MaxPositionImpactFactor)
		if impactUsd.Sign() < 0 && impactUsd.Abs().GreaterThanOrEqual(sizeDelta) {
			return cancelResult(ReasonPriceImpactTooLarge), nil
		}
		executionPrice = increaseExecutionPrice(st.indexPrice(), o.IsLong, sizeDelta, impactUsd)
		if acceptableViolated(OrderIncrease, o.IsLong, executionPrice, o.AcceptablePrice) {
			return freezeResult(ReasonUnacceptablePrice), nil
		}
		// Longs round token size down, shorts round their debt up.
		sizeDeltaTokens = precision.Div(sizeDelta, executionPrice, !o.IsLong)
		impactTokens = positionImpactTokens(impactUsd, st.indexPrice())
		pos.PendingImpactAmount = pos.PendingImpactAmount.Add(impactTokens)
	}

	fees, err := e.computePositionFees(st, o, sizeDelta, impactUsd.Sign() > 0, fundingOwed, borrowingUsd, ledger)
	if err != nil {
		return nil, err
	}
	pos.CollateralAmount = pos.CollateralAmount.Add(o.CollateralDelta).Sub(fees.TotalCostAmount)
	if pos.CollateralAmount.Sign() < 0 {
		return cancelResult(ReasonInsufficientCollateral), nil
	}
	pos.SizeInUsd = pos.SizeInUsd.Add(sizeDelta)
	pos.SizeInTokens = pos.SizeInTokens.Add(sizeDeltaTokens)
	pos.IncreasedAt = now

	collateralUsd := precision.TokensToUsd(pos.CollateralAmount, st.prices[o.CollateralToken].Min)
	if collateralUsd.LessThan(st.cfg.MinCollateralUsd) {
		return cancelResult(ReasonInsufficientCollateral), nil
	}
	if pos.SizeInUsd.Sign() > 0 && pos.SizeInUsd.LessThan(st.cfg.MinPositionSizeUsd) {
		return cancelResult(ReasonPositionTooSmall), nil
	}

	st.applyOpenInterestDelta(o.CollateralToken, o.IsLong, sizeDelta, sizeDeltaTokens)

	b := e.store.NewBatch()
	if err := st.stage(b); err != nil {
		return nil, err
	}
	if err := e.stagePosition(b, pos); err != nil {
		return nil, err
	}
	if err := ledger.flush(b); err != nil {
		return nil, err
	}
	if err := e.stageOrderExecuted(b, o); err != nil {
		return nil, err
	}
	if err := b.Write(); err != nil {
		return nil, err
	}

	e.emit(events.New(events.PositionIncrease).
		SetStr("account", o.Account).
		SetStr("market", o.Market).
		SetStr("collateralToken", o.CollateralToken).
		SetFlag("isLong", o.IsLong).
		SetNum("sizeDeltaUsd", sizeDelta).
		SetNum("sizeDeltaTokens", sizeDeltaTokens).
		SetNum("executionPrice", executionPrice).
		SetNum("priceImpactUsd", impactUsd).
		SetNum("pendingImpactAmount", pos.PendingImpactAmount).
		SetNum("sizeInUsd", pos.SizeInUsd).
		SetNum("collateralAmount", pos.CollateralAmount).
		SetFlag("isNew", isNew))
	e.emitFeeEvents(o, &fees)
	e.publishMarketGauges(st)

	return &TradeResult{
		State:           OrderExecuted,
		ExecutionPrice:  executionPrice,
		PriceImpactUsd:  impactUsd,
		ImpactTokens:    impactTokens,
		SizeDeltaUsd:    sizeDelta,
		SizeDeltaTokens: sizeDeltaTokens,
		Fees:            fees,
	}, nil
}

func (e *Engine) executeDecrease(o *Order, isLiquidation bool) (*TradeResult, error) {
	st, err := e.loadMarketState(o.Market)
	if err != nil {
		return nil, err
	}
	if o.CollateralToken != st.market.LongToken && o.CollateralToken != st.market.ShortToken {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCollateral, o.CollateralToken)
	}
	now := e.now().Unix()
	e.settleFunding(st, now)
	e.settleBorrowing(st, now)
	ledger := newTradeLedger(e.store)

	pos, err := e.loadPosition(o.Account, o.Market, o.CollateralToken, o.IsLong)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.IsEmpty() {
		return cancelResult(ReasonEmptyPosition), nil
	}

	sizeDelta := o.SizeDeltaUsd
	if isLiquidation {
		sizeDelta = pos.SizeInUsd
	}
	if sizeDelta.GreaterThan(pos.SizeInUsd) {
		return cancelResult(ReasonSizeExceedsPosition), nil
	}
	collateralDelta := precision.Min(o.CollateralDelta, pos.CollateralAmount)
	if isLiquidation {
		collateralDelta = decimal.Zero
	}

	// Dust guard: a partial close may not leave less than the minimum size
	// or collateral behind; escalate to a full close instead.
	if sizeDelta.LessThan(pos.SizeInUsd) {
		remainingSize := pos.SizeInUsd.Sub(sizeDelta)
		remainingCollateralUsd := precision.TokensToUsd(
			pos.CollateralAmount.Sub(collateralDelta), st.prices[o.CollateralToken].Min)
		if remainingSize.LessThan(st.cfg.MinPositionSizeUsd) ||
			remainingCollateralUsd.LessThan(st.cfg.MinCollateralUsd) {
			sizeDelta = pos.SizeInUsd
			e.emit(events.New(events.PositionAutoClosed).
				SetStr("account", o.Account).
				SetStr("market", o.Market).
				SetNum("sizeInUsd", pos.SizeInUsd).
				SetNum("requestedSizeDeltaUsd", o.SizeDeltaUsd))
		}
	}
	fullClose := sizeDelta.Equal(pos.SizeInUsd)

	fundingOwed := e.settlePositionFunding(st, pos, ledger)
	borrowingUsd := st.positionBorrowingFeeUsd(pos)
	pos.BorrowingFactor = st.cumulativeBorrowingFactor[pos.IsLong]

	impactUsd, err := st.positionPriceImpact(sizeDelta, o.IsLong, false)
	if err != nil {
		return nil, err
	}
	maxFactor := st.cfg.MaxPositionImpactFactor
	if isLiquidation {
		maxFactor = st.cfg.MaxPositionImpactFactorForLiquidations
	}
	impactUsd = capImpactUsdByFactor(impactUsd, sizeDelta, maxFactor)

	// Realize the proportional share of deferred impact together with the
	// impact of this decrease, then settle the net against the impact pool.
	released, remaining := realizePendingImpact(pos.PendingImpactAmount, sizeDelta, pos.SizeInUsd)
	pos.PendingImpactAmount = remaining
	totalImpactTokens := released.Add(positionImpactTokens(impactUsd, st.indexPrice()))

	indexPrice := st.indexPrice()
	var impactNetUsd decimal.Decimal
	if totalImpactTokens.Sign() > 0 {
		paid := capPositiveImpactByPool(totalImpactTokens, st.positionImpactPool)
		st.positionImpactPool = st.positionImpactPool.Sub(paid)
		impactNetUsd = precision.TokensToUsd(paid, indexPrice.Min)
		totalImpactTokens = paid
	} else {
		st.positionImpactPool = st.positionImpactPool.Add(totalImpactTokens.Abs())
		impactNetUsd = precision.TokensToUsd(totalImpactTokens, indexPrice.Min)
	}
	e.emit(events.New(events.PositionImpactPoolUpdated).
		SetStr("market", o.Market).
		SetNum("poolAmount", st.positionImpactPool).
		SetNum("impactTokens", totalImpactTokens))

	// Collateral-only withdrawals have no size delta and fill at the base
	// exit price.
	executionPrice := indexPrice.Pick(!o.IsLong)
	if sizeDelta.Sign() > 0 {
		executionPrice = decreaseExecutionPrice(indexPrice, o.IsLong, sizeDelta, impactNetUsd)
	}
	if !isLiquidation && acceptableViolated(OrderDecrease, o.IsLong, executionPrice, o.AcceptablePrice) {
		return freezeResult(ReasonUnacceptablePrice), nil
	}

	// Tokens leave the position proportionally to the size closed.
	sizeDeltaTokens := pos.SizeInTokens
	if !fullClose {
		sizeDeltaTokens = precision.ApplyFraction(pos.SizeInTokens, sizeDelta, pos.SizeInUsd)
	}

	var pnlUsd decimal.Decimal
	if o.IsLong {
		pnlUsd = precision.TokensToUsd(sizeDeltaTokens, indexPrice.Min).Sub(sizeDelta)
	} else {
		pnlUsd = sizeDelta.Sub(precision.TokensToUsd(sizeDeltaTokens, indexPrice.Max))
	}

	fees, err := e.computePositionFees(st, o, sizeDelta, impactUsd.Sign() > 0, fundingOwed, borrowingUsd, ledger)
	if err != nil {
		return nil, err
	}

	collateralPrice := st.prices[o.CollateralToken]
	payout := collateralDelta
	pos.CollateralAmount = pos.CollateralAmount.Sub(collateralDelta)

	// Profit and positive impact are paid from the pool; losses, negative
	// impact and fees come out of collateral, with the pool absorbing any
	// shortfall on liquidation.
	netUsd := pnlUsd.Add(impactNetUsd)
	if netUsd.Sign() > 0 {
		gain := precision.UsdToTokens(netUsd, collateralPrice.Max, false)
		if gain.GreaterThan(st.poolAmount[o.CollateralToken]) {
			return cancelResult(ReasonInsufficientPoolAmount), nil
		}
		st.poolAmount[o.CollateralToken] = st.poolAmount[o.CollateralToken].Sub(gain)
		payout = payout.Add(gain)
	} else if netUsd.Sign() < 0 {
		loss := precision.UsdToTokens(netUsd.Abs(), collateralPrice.Min, true)
		charged := precision.Min(loss, pos.CollateralAmount)
		pos.CollateralAmount = pos.CollateralAmount.Sub(charged)
		st.poolAmount[o.CollateralToken] = st.poolAmount[o.CollateralToken].Add(charged)
		if charged.LessThan(loss) && !isLiquidation {
			return cancelResult(ReasonInsufficientCollateral), nil
		}
	}
	if fees.TotalCostAmount.Sign() > 0 {
		// Fee side effects were already applied against the full amount;
		// charge what the collateral can bear.
		if pos.CollateralAmount.LessThan(fees.TotalCostAmount) {
			if !isLiquidation {
				return cancelResult(ReasonInsufficientCollateral), nil
			}
			shortfall := fees.TotalCostAmount.Sub(pos.CollateralAmount)
			st.poolAmount[o.CollateralToken] = st.poolAmount[o.CollateralToken].Sub(shortfall)
			pos.CollateralAmount = decimal.Zero
		} else {
			pos.CollateralAmount = pos.CollateralAmount.Sub(fees.TotalCostAmount)
		}
	}

	pos.SizeInUsd = pos.SizeInUsd.Sub(sizeDelta)
	pos.SizeInTokens = pos.SizeInTokens.Sub(sizeDeltaTokens)
	pos.DecreasedAt = now
	if fullClose {
		payout = payout.Add(pos.CollateralAmount)
		pos.CollateralAmount = decimal.Zero
	}

	st.applyOpenInterestDelta(o.CollateralToken, o.IsLong, sizeDelta.Neg(), sizeDeltaTokens.Neg())

	b := e.store.NewBatch()
	if err := st.stage(b); err != nil {
		return nil, err
	}
	if fullClose {
		if err := e.stageRemovePosition(b, pos); err != nil {
			return nil, err
		}
	} else {
		if err := e.stagePosition(b, pos); err != nil {
			return nil, err
		}
	}
	if err := ledger.flush(b); err != nil {
		return nil, err
	}
	if err := e.stageOrderExecuted(b, o); err != nil {
		return nil, err
	}
	if err := b.Write(); err != nil {
		return nil, err
	}

	e.emit(events.New(events.PositionDecrease).
		SetStr("account", o.Account).
		SetStr("market", o.Market).
		SetStr("collateralToken", o.CollateralToken).
		SetFlag("isLong", o.IsLong).
		SetFlag("isLiquidation", isLiquidation).
		SetNum("sizeDeltaUsd", sizeDelta).
		SetNum("executionPrice", executionPrice).
		SetNum("priceImpactUsd", impactUsd).
		SetNum("realizedImpactTokens", totalImpactTokens).
		SetNum("realizedPnlUsd", pnlUsd).
		SetNum("payoutAmount", payout).
		SetNum("sizeInUsd", pos.SizeInUsd).
		SetFlag("fullClose", fullClose))
	e.emitFeeEvents(o, &fees)
	e.publishMarketGauges(st)

	return &TradeResult{
		State:           OrderExecuted,
		ExecutionPrice:  executionPrice,
		PriceImpactUsd:  impactUsd,
		ImpactTokens:    totalImpactTokens,
		SizeDeltaUsd:    sizeDelta,
		SizeDeltaTokens: sizeDeltaTokens,
		RealizedPnlUsd:  pnlUsd,
		PayoutAmount:    payout,
		Fees:            fees,
	}, nil
}

func (e *Engine) executeSwap(o *Order) (*TradeResult, error) {
	st, err := e.loadMarketState(o.Market)
	if err != nil {
		return nil, err
	}
	if st.market.IsSingleToken() {
		return nil, fmt.Errorf("%w: single token market has no swap path", ErrInvalidOrder)
	}
	var tokenOut string
	switch o.TokenIn {
	case st.market.LongToken:
		tokenOut = st.market.ShortToken
	case st.market.ShortToken:
		tokenOut = st.market.LongToken
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidCollateral, o.TokenIn)
	}
	ledger := newTradeLedger(e.store)
	priceIn := st.prices[o.TokenIn]
	priceOut := st.prices[tokenOut]

	feeAmount := precision.ApplyFactor(o.AmountIn, st.cfg.SwapFeeFactor)
	feeReceiverFactor, err := e.store.GetDec(datastore.FeeReceiverFactorKey())
	if err != nil {
		return nil, err
	}
	receiverCut := precision.ApplyFactor(feeAmount, feeReceiverFactor)
	if receiverCut.Sign() > 0 {
		ledger.addClaimableFee(o.Market, o.TokenIn, receiverCut)
	}
	uiFactor, err := e.uiFeeFactorFor(o.UIFeeReceiver)
	if err != nil {
		return nil, err
	}
	uiAmount := precision.ApplyFactor(o.AmountIn, uiFactor)
	if uiAmount.Sign() > 0 {
		ledger.addClaimableUIFee(o.Market, o.TokenIn, o.UIFeeReceiver, uiAmount)
	}

	amountInAfterFees := o.AmountIn.Sub(feeAmount).Sub(uiAmount)
	if amountInAfterFees.Sign() <= 0 {
		return cancelResult(ReasonInsufficientCollateral), nil
	}
	usdIn := precision.TokensToUsd(amountInAfterFees, priceIn.Min)

	impactUsd, err := st.swapPriceImpact(o.TokenIn, tokenOut, usdIn, usdIn)
	if err != nil {
		return nil, err
	}

	var amountOut, bonus decimal.Decimal
	usdOut := usdIn
	if impactUsd.Sign() > 0 {
		bonusTokens := precision.UsdToTokens(impactUsd, priceOut.Max, false)
		bonus = capPositiveImpactByPool(bonusTokens, st.swapImpactPool[tokenOut])
		st.swapImpactPool[tokenOut] = st.swapImpactPool[tokenOut].Sub(bonus)
	} else if impactUsd.Sign() < 0 {
		if impactUsd.Abs().GreaterThanOrEqual(usdIn) {
			return cancelResult(ReasonPriceImpactTooLarge), nil
		}
		usdOut = usdIn.Add(impactUsd)
		penalty := precision.UsdToTokens(impactUsd.Abs(), priceOut.Max, false)
		st.swapImpactPool[tokenOut] = st.swapImpactPool[tokenOut].Add(penalty)
		st.poolAmount[tokenOut] = st.poolAmount[tokenOut].Sub(penalty)
	}
	amountOut = precision.UsdToTokens(usdOut, priceOut.Max, false).Add(bonus)

	// Pool conservation: everything the trader sent except the receiver and
	// ui cuts stays in the in-side pool.
	st.poolAmount[o.TokenIn] = st.poolAmount[o.TokenIn].
		Add(o.AmountIn).Sub(receiverCut).Sub(uiAmount)
	st.poolAmount[tokenOut] = st.poolAmount[tokenOut].Sub(precision.UsdToTokens(usdOut, priceOut.Max, false))
	if st.poolAmount[tokenOut].Sign() < 0 {
		return cancelResult(ReasonInsufficientPoolAmount), nil
	}

	if st.hasVirtualSwap {
		inIsLong := o.TokenIn == st.market.LongToken
		st.virtualSwapInventory[inIsLong] = st.virtualSwapInventory[inIsLong].Add(usdIn)
		st.virtualSwapInventory[!inIsLong] = st.virtualSwapInventory[!inIsLong].Sub(usdOut)
	}

	b := e.store.NewBatch()
	if err := st.stage(b); err != nil {
		return nil, err
	}
	if err := ledger.flush(b); err != nil {
		return nil, err
	}
	if err := e.stageOrderExecuted(b, o); err != nil {
		return nil, err
	}
	if err := b.Write(); err != nil {
		return nil, err
	}

	e.emit(events.New(events.SwapExecuted).
		SetStr("account", o.Account).
		SetStr("market", o.Market).
		SetStr("tokenIn", o.TokenIn).
		SetStr("tokenOut", tokenOut).
		SetNum("amountIn", o.AmountIn).
		SetNum("amountOut", amountOut).
		SetNum("priceImpactUsd", impactUsd).
		SetNum("feeAmount", feeAmount))
	e.emit(events.New(events.SwapImpactPoolUpdated).
		SetStr("market", o.Market).
		SetStr("token", tokenOut).
		SetNum("poolAmount", st.swapImpactPool[tokenOut]))
	if st.hasVirtualSwap {
		e.emit(events.New(events.VirtualInventoryUpdated).
			SetStr("virtualMarketId", st.market.VirtualMarketID).
			SetNum("longUsd", st.virtualSwapInventory[true]).
			SetNum("shortUsd", st.virtualSwapInventory[false]))
	}

	return &TradeResult{
		State:          OrderExecuted,
		PriceImpactUsd: impactUsd,
		AmountIn:       o.AmountIn,
		AmountOut:      amountOut,
		TokenOut:       tokenOut,
		Fees:           PositionFees{PositionFeeUsd: precision.TokensToUsd(feeAmount, priceIn.Min), UIFeeUsd: precision.TokensToUsd(uiAmount, priceIn.Min)},
	}, nil
}

// stageOrderExecuted persists the executed order record inside the trade
// batch so order state and trade effects commit together.
func (e *Engine) stageOrderExecuted(b *datastore.Batch, o *Order) error {
	clone := *o
	clone.State = OrderExecuted
	clone.Reason = ""
	clone.UpdatedAt = e.now()
	raw, err := json.Marshal(&clone)
	if err != nil {
		return err
	}
	return b.SetBytes(datastore.OrderKey(o.ID), raw)
}

func (e *Engine) emitFeeEvents(o *Order, fees *PositionFees) {
	ev := events.New(events.PositionFeesCollected).
		SetStr("account", o.Account).
		SetStr("market", o.Market).
		SetStr("collateralToken", o.CollateralToken).
		SetNum("positionFeeUsd", fees.PositionFeeUsd).
		SetNum("protocolFeeUsd", fees.ProtocolFeeUsd).
		SetNum("feeReceiverUsd", fees.FeeReceiverUsd).
		SetNum("poolFeeUsd", fees.PoolFeeUsd).
		SetNum("uiFeeUsd", fees.UIFeeUsd).
		SetNum("fundingFeeAmount", fees.FundingFeeAmount).
		SetNum("borrowingFeeUsd", fees.BorrowingFeeUsd).
		SetNum("totalCostAmount", fees.TotalCostAmount)
	if fees.Affiliate != "" {
		ev.SetStr("affiliate", fees.Affiliate).
			SetStr("referralCode", fees.ReferralCode).
			SetNum("traderDiscountUsd", fees.TraderDiscount).
			SetNum("affiliateRewardUsd", fees.AffiliateReward)
	}
	e.emit(ev)
}

// publishMarketGauges pushes open interest and impact pool gauges.
func (e *Engine) publishMarketGauges(st *marketState) {
	longOI, _ := st.sideOpenInterest(true).Float64()
	shortOI, _ := st.sideOpenInterest(false).Float64()
	pool, _ := st.positionImpactPool.Float64()
	e.metrics.SetOpenInterest(st.market.MarketToken, "long", longOI)
	e.metrics.SetOpenInterest(st.market.MarketToken, "short", shortOI)
	e.metrics.SetImpactPool(st.market.MarketToken, pool)
}
