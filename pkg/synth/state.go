package synth

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/datastore"
)

// sideKey addresses per-collateral-token, per-direction accumulators.
type sideKey struct {
	token  string
	isLong bool
}

// marketState is the in-memory working copy of one market's mutable state.
// A trade loads it, mutates it freely, and stages the result into a single
// batch. Nothing is visible to readers until the batch commits.
type marketState struct {
	market Market
	cfg    MarketConfig

	poolAmount         map[string]decimal.Decimal
	positionImpactPool decimal.Decimal
	swapImpactPool     map[string]decimal.Decimal

	openInterest         map[sideKey]decimal.Decimal
	openInterestInTokens map[bool]decimal.Decimal

	fundingUpdatedAt        int64
	fundingFeePerSize       map[sideKey]decimal.Decimal
	claimableFundingPerSize map[sideKey]decimal.Decimal

	borrowingUpdatedAt        int64
	cumulativeBorrowingFactor map[bool]decimal.Decimal

	hasVirtualPosition       bool
	virtualPositionInventory decimal.Decimal
	hasVirtualSwap           bool
	virtualSwapInventory     map[bool]decimal.Decimal

	prices map[string]Price
}

// sideOpenInterest returns the USD open interest of one side summed over
// collateral tokens.
func (st *marketState) sideOpenInterest(isLong bool) decimal.Decimal {
	total := decimal.Zero
	for _, t := range st.market.CollateralTokens() {
		total = total.Add(st.openInterest[sideKey{t, isLong}])
	}
	return total
}

// openInterestDiff is signed long minus short USD open interest.
func (st *marketState) openInterestDiff() decimal.Decimal {
	return st.sideOpenInterest(true).Sub(st.sideOpenInterest(false))
}

// poolUsd values the pool at the given price side.
func (st *marketState) poolUsd(maximize bool) decimal.Decimal {
	total := decimal.Zero
	for _, t := range st.market.CollateralTokens() {
		total = total.Add(st.poolAmount[t].Mul(st.prices[t].Pick(maximize)))
	}
	return total
}

func (st *marketState) price(token string) Price {
	return st.prices[token]
}

func (st *marketState) indexPrice() Price {
	return st.prices[st.market.IndexToken]
}

// loadMarket reads a market definition from the store.
func (e *Engine) loadMarket(marketToken string) (Market, error) {
	raw, err := e.store.GetBytes(datastore.MarketKey(marketToken))
	if err != nil {
		return Market{}, err
	}
	if len(raw) == 0 {
		return Market{}, fmt.Errorf("%w: %s", ErrMarketNotFound, marketToken)
	}
	var m Market
	if err := json.Unmarshal(raw, &m); err != nil {
		return Market{}, fmt.Errorf("decode market %s: %w", marketToken, err)
	}
	return m, nil
}

// loadConfig reads the per-market factor set.
func (e *Engine) loadConfig(m Market) (MarketConfig, error) {
	mt := m.MarketToken
	var cfg MarketConfig
	var err error
	read := func(key []byte) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var v decimal.Decimal
		v, err = e.store.GetDec(key)
		return v
	}
	cfg.PositionImpactFactorPositive = read(datastore.PositionImpactFactorKey(mt, true))
	cfg.PositionImpactFactorNegative = read(datastore.PositionImpactFactorKey(mt, false))
	cfg.PositionImpactExponent = read(datastore.PositionImpactExponentFactorKey(mt))
	cfg.MaxPositionImpactFactor = read(datastore.MaxPositionImpactFactorKey(mt))
	cfg.MaxPositionImpactFactorForLiquidations = read(datastore.MaxPositionImpactFactorForLiquidationsKey(mt))
	cfg.SwapImpactFactorPositive = read(datastore.SwapImpactFactorKey(mt, true))
	cfg.SwapImpactFactorNegative = read(datastore.SwapImpactFactorKey(mt, false))
	cfg.SwapImpactExponent = read(datastore.SwapImpactExponentFactorKey(mt))
	cfg.FundingFactor = read(datastore.FundingFactorKey(mt))
	cfg.FundingExponentFactor = read(datastore.FundingExponentFactorKey(mt))
	cfg.BorrowingFactorLong = read(datastore.BorrowingFactorKey(mt, true))
	cfg.BorrowingFactorShort = read(datastore.BorrowingFactorKey(mt, false))
	cfg.BorrowingExponentLong = read(datastore.BorrowingExponentFactorKey(mt, true))
	cfg.BorrowingExponentShort = read(datastore.BorrowingExponentFactorKey(mt, false))
	cfg.PositionFeeFactorPositive = read(datastore.PositionFeeFactorKey(mt, true))
	cfg.PositionFeeFactorNegative = read(datastore.PositionFeeFactorKey(mt, false))
	cfg.SwapFeeFactor = read(datastore.SwapFeeFactorKey(mt))
	cfg.MinCollateralUsd = read(datastore.MinCollateralUsdKey())
	cfg.MinPositionSizeUsd = read(datastore.MinPositionSizeUsdKey())
	if err != nil {
		return MarketConfig{}, fmt.Errorf("load config %s: %w", mt, err)
	}
	return cfg, nil
}

// loadMarketState builds the working copy for a trade, including oracle
// prices for every token the market touches.
func (e *Engine) loadMarketState(marketToken string) (*marketState, error) {
	m, err := e.loadMarket(marketToken)
	if err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(m)
	if err != nil {
		return nil, err
	}
	st := &marketState{
		market:                  m,
		cfg:                     cfg,
		poolAmount:              make(map[string]decimal.Decimal),
		swapImpactPool:          make(map[string]decimal.Decimal),
		openInterest:            make(map[sideKey]decimal.Decimal),
		openInterestInTokens:    make(map[bool]decimal.Decimal),
		fundingFeePerSize:       make(map[sideKey]decimal.Decimal),
		claimableFundingPerSize: make(map[sideKey]decimal.Decimal),
		cumulativeBorrowingFactor: map[bool]decimal.Decimal{
			true:  decimal.Zero,
			false: decimal.Zero,
		},
		prices: make(map[string]Price),
	}
	mt := m.MarketToken
	var lerr error
	dec := func(key []byte) decimal.Decimal {
		if lerr != nil {
			return decimal.Zero
		}
		var v decimal.Decimal
		v, lerr = e.store.GetDec(key)
		return v
	}
	for _, t := range m.CollateralTokens() {
		st.poolAmount[t] = dec(datastore.PoolAmountKey(mt, t))
		st.swapImpactPool[t] = dec(datastore.SwapImpactPoolAmountKey(mt, t))
		for _, isLong := range []bool{true, false} {
			k := sideKey{t, isLong}
			st.openInterest[k] = dec(datastore.OpenInterestKey(mt, t, isLong))
			st.fundingFeePerSize[k] = dec(datastore.FundingFeeAmountPerSizeKey(mt, t, isLong))
			st.claimableFundingPerSize[k] = dec(datastore.ClaimableFundingAmountPerSizeKey(mt, t, isLong))
		}
	}
	st.positionImpactPool = dec(datastore.PositionImpactPoolAmountKey(mt))
	for _, isLong := range []bool{true, false} {
		st.openInterestInTokens[isLong] = dec(datastore.OpenInterestInTokensKey(mt, isLong))
		st.cumulativeBorrowingFactor[isLong] = dec(datastore.CumulativeBorrowingFactorKey(mt, isLong))
	}
	if m.VirtualTokenID != "" {
		st.hasVirtualPosition = true
		st.virtualPositionInventory = dec(datastore.VirtualInventoryForPositionsKey(m.VirtualTokenID))
	}
	if m.VirtualMarketID != "" {
		st.hasVirtualSwap = true
		st.virtualSwapInventory = map[bool]decimal.Decimal{
			true:  dec(datastore.VirtualInventoryForSwapsKey(m.VirtualMarketID, true)),
			false: dec(datastore.VirtualInventoryForSwapsKey(m.VirtualMarketID, false)),
		}
	}
	if lerr != nil {
		return nil, fmt.Errorf("load market state %s: %w", mt, lerr)
	}
	st.fundingUpdatedAt, lerr = e.store.GetInt64(datastore.FundingUpdatedAtKey(mt))
	if lerr != nil {
		return nil, lerr
	}
	st.borrowingUpdatedAt, lerr = e.store.GetInt64(datastore.BorrowingUpdatedAtKey(mt))
	if lerr != nil {
		return nil, lerr
	}

	tokens := map[string]struct{}{m.IndexToken: {}}
	for _, t := range m.CollateralTokens() {
		tokens[t] = struct{}{}
	}
	for t := range tokens {
		p, err := e.oracle.GetPrice(t)
		if err != nil {
			return nil, err
		}
		st.prices[t] = p
	}
	return st, nil
}

// stage writes the full working copy into the batch. Writing everything is
// cheaper than tracking dirtiness and keeps the commit trivially correct.
func (st *marketState) stage(b *datastore.Batch) error {
	mt := st.market.MarketToken
	var err error
	put := func(key []byte, v decimal.Decimal) {
		if err == nil {
			err = b.SetDec(key, v)
		}
	}
	for _, t := range st.market.CollateralTokens() {
		put(datastore.PoolAmountKey(mt, t), st.poolAmount[t])
		put(datastore.SwapImpactPoolAmountKey(mt, t), st.swapImpactPool[t])
		for _, isLong := range []bool{true, false} {
			k := sideKey{t, isLong}
			put(datastore.OpenInterestKey(mt, t, isLong), st.openInterest[k])
			put(datastore.FundingFeeAmountPerSizeKey(mt, t, isLong), st.fundingFeePerSize[k])
			put(datastore.ClaimableFundingAmountPerSizeKey(mt, t, isLong), st.claimableFundingPerSize[k])
		}
	}
	put(datastore.PositionImpactPoolAmountKey(mt), st.positionImpactPool)
	for _, isLong := range []bool{true, false} {
		put(datastore.OpenInterestInTokensKey(mt, isLong), st.openInterestInTokens[isLong])
		put(datastore.CumulativeBorrowingFactorKey(mt, isLong), st.cumulativeBorrowingFactor[isLong])
	}
	if err == nil {
		err = b.SetInt64(datastore.FundingUpdatedAtKey(mt), st.fundingUpdatedAt)
	}
	if err == nil {
		err = b.SetInt64(datastore.BorrowingUpdatedAtKey(mt), st.borrowingUpdatedAt)
	}
	if st.hasVirtualPosition {
		put(datastore.VirtualInventoryForPositionsKey(st.market.VirtualTokenID), st.virtualPositionInventory)
	}
	if st.hasVirtualSwap {
		put(datastore.VirtualInventoryForSwapsKey(st.market.VirtualMarketID, true), st.virtualSwapInventory[true])
		put(datastore.VirtualInventoryForSwapsKey(st.market.VirtualMarketID, false), st.virtualSwapInventory[false])
	}
	return err
}

// applyOpenInterestDelta moves USD and token open interest for one side.
func (st *marketState) applyOpenInterestDelta(collateralToken string, isLong bool, usdDelta, tokenDelta decimal.Decimal) {
	k := sideKey{collateralToken, isLong}
	st.openInterest[k] = st.openInterest[k].Add(usdDelta)
	st.openInterestInTokens[isLong] = st.openInterestInTokens[isLong].Add(tokenDelta)
	if st.hasVirtualPosition {
		if isLong {
			st.virtualPositionInventory = st.virtualPositionInventory.Add(usdDelta)
		} else {
			st.virtualPositionInventory = st.virtualPositionInventory.Sub(usdDelta)
		}
	}
}
