package synth

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/datastore"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/events"
)

// Metrics receives engine observations. The noop implementation keeps the
// hot path free of nil checks.
type Metrics interface {
	ObserveTrade(kind, state string, seconds float64)
	ObserveClaim(kind string)
	SetOpenInterest(market, side string, usd float64)
	SetImpactPool(market string, tokens float64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTrade(string, string, float64)    {}
func (noopMetrics) ObserveClaim(string)                     {}
func (noopMetrics) SetOpenInterest(string, string, float64) {}
func (noopMetrics) SetImpactPool(string, float64)           {}

// Engine executes trades and claims against the datastore. Execution is
// strictly sequential: one mutex serializes all writes, each trade works on
// an in-memory copy of market state and commits through a single batch, so
// partial effects are never visible.
type Engine struct {
	mu      sync.Mutex
	store   *datastore.Store
	oracle  Oracle
	emitter events.Emitter
	log     log.Logger
	metrics Metrics
	now     func() time.Time

	orderSeq atomic.Uint64

	// pending buffers events during a trade; they are published only after
	// the batch commits.
	pending []*events.Event
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter sets the event sink.
func WithEmitter(em events.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source, used by tests to control funding
// and borrowing windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over the given store and price source.
func NewEngine(store *datastore.Store, oracle Oracle, logger log.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		oracle:  oracle,
		emitter: events.NewMemoryEmitter(0),
		log:     logger,
		metrics: noopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// emit buffers an event until the current trade commits. Outside a trade
// the buffer is flushed immediately by the caller.
func (e *Engine) emit(ev *events.Event) {
	e.pending = append(e.pending, ev)
}

func (e *Engine) flushEvents() {
	for _, ev := range e.pending {
		e.emitter.Emit(ev)
	}
	e.pending = nil
}

func (e *Engine) discardEvents() {
	e.pending = nil
}

// GlobalConfig holds the factors shared by every market.
type GlobalConfig struct {
	FeeReceiverFactor          decimal.Decimal `json:"feeReceiverFactor"`
	BorrowingFeeReceiverFactor decimal.Decimal `json:"borrowingFeeReceiverFactor"`
	MaxUIFeeFactor             decimal.Decimal `json:"maxUiFeeFactor"`
	MinCollateralUsd           decimal.Decimal `json:"minCollateralUsd"`
	MinPositionSizeUsd         decimal.Decimal `json:"minPositionSizeUsd"`
}

// SetGlobalConfig persists the shared factor set.
func (e *Engine) SetGlobalConfig(cfg GlobalConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.store.NewBatch()
	if err := b.SetDec(datastore.FeeReceiverFactorKey(), cfg.FeeReceiverFactor); err != nil {
		return err
	}
	if err := b.SetDec(datastore.BorrowingFeeReceiverFactorKey(), cfg.BorrowingFeeReceiverFactor); err != nil {
		return err
	}
	if err := b.SetDec(datastore.MaxUIFeeFactorKey(), cfg.MaxUIFeeFactor); err != nil {
		return err
	}
	if err := b.SetDec(datastore.MinCollateralUsdKey(), cfg.MinCollateralUsd); err != nil {
		return err
	}
	if err := b.SetDec(datastore.MinPositionSizeUsdKey(), cfg.MinPositionSizeUsd); err != nil {
		return err
	}
	return b.Write()
}

// CreateMarket registers a market. The market token is the identity and
// must be unique.
func (e *Engine) CreateMarket(m Market) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m.MarketToken == "" || m.IndexToken == "" || m.LongToken == "" || m.ShortToken == "" {
		return fmt.Errorf("%w: market tokens must be set", ErrInvalidOrder)
	}
	exists, err := e.store.Has(datastore.MarketKey(m.MarketToken))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrMarketExists, m.MarketToken)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := e.store.SetBytes(datastore.MarketKey(m.MarketToken), raw); err != nil {
		return err
	}
	if err := e.store.ListAdd(datastore.MarketListKey(), m.MarketToken); err != nil {
		return err
	}
	e.log.Info("market created", "market", m.MarketToken,
		"index", m.IndexToken, "long", m.LongToken, "short", m.ShortToken)
	return nil
}

// ConfigureMarket persists the per-market factor set.
func (e *Engine) ConfigureMarket(marketToken string, cfg MarketConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.loadMarket(marketToken); err != nil {
		return err
	}
	b := e.store.NewBatch()
	var err error
	put := func(key []byte, v decimal.Decimal) {
		if err == nil {
			err = b.SetDec(key, v)
		}
	}
	put(datastore.PositionImpactFactorKey(marketToken, true), cfg.PositionImpactFactorPositive)
	put(datastore.PositionImpactFactorKey(marketToken, false), cfg.PositionImpactFactorNegative)
	put(datastore.PositionImpactExponentFactorKey(marketToken), cfg.PositionImpactExponent)
	put(datastore.MaxPositionImpactFactorKey(marketToken), cfg.MaxPositionImpactFactor)
	put(datastore.MaxPositionImpactFactorForLiquidationsKey(marketToken), cfg.MaxPositionImpactFactorForLiquidations)
	put(datastore.SwapImpactFactorKey(marketToken, true), cfg.SwapImpactFactorPositive)
	put(datastore.SwapImpactFactorKey(marketToken, false), cfg.SwapImpactFactorNegative)
	put(datastore.SwapImpactExponentFactorKey(marketToken), cfg.SwapImpactExponent)
	put(datastore.FundingFactorKey(marketToken), cfg.FundingFactor)
	put(datastore.FundingExponentFactorKey(marketToken), cfg.FundingExponentFactor)
	put(datastore.BorrowingFactorKey(marketToken, true), cfg.BorrowingFactorLong)
	put(datastore.BorrowingFactorKey(marketToken, false), cfg.BorrowingFactorShort)
	put(datastore.BorrowingExponentFactorKey(marketToken, true), cfg.BorrowingExponentLong)
	put(datastore.BorrowingExponentFactorKey(marketToken, false), cfg.BorrowingExponentShort)
	put(datastore.PositionFeeFactorKey(marketToken, true), cfg.PositionFeeFactorPositive)
	put(datastore.PositionFeeFactorKey(marketToken, false), cfg.PositionFeeFactorNegative)
	put(datastore.SwapFeeFactorKey(marketToken), cfg.SwapFeeFactor)
	if err != nil {
		return err
	}
	return b.Write()
}

// GetMarket returns a registered market.
func (e *Engine) GetMarket(marketToken string) (Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadMarket(marketToken)
}

// Markets lists all registered market tokens.
func (e *Engine) Markets() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.List(datastore.MarketListKey())
}

// AddPoolAmount deposits tokens into a market's pool. Liquidity accounting
// beyond the raw balance lives outside the engine.
func (e *Engine) AddPoolAmount(marketToken, token string, amount decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.loadMarket(marketToken)
	if err != nil {
		return err
	}
	if token != m.LongToken && token != m.ShortToken {
		return fmt.Errorf("%w: %s", ErrInvalidCollateral, token)
	}
	key := datastore.PoolAmountKey(marketToken, token)
	current, err := e.store.GetDec(key)
	if err != nil {
		return err
	}
	return e.store.SetDec(key, current.Add(amount))
}

// AddPositionImpactPool seeds a market's position impact pool.
func (e *Engine) AddPositionImpactPool(marketToken string, amount decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.loadMarket(marketToken); err != nil {
		return err
	}
	key := datastore.PositionImpactPoolAmountKey(marketToken)
	current, err := e.store.GetDec(key)
	if err != nil {
		return err
	}
	return e.store.SetDec(key, current.Add(amount))
}

// RegisterReferralCode binds a code to its affiliate with tier terms.
func (e *Engine) RegisterReferralCode(code, affiliate string, totalRebateFactor, discountShare decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if code == "" || affiliate == "" {
		return fmt.Errorf("%w: code and affiliate required", ErrInvalidOrder)
	}
	b := e.store.NewBatch()
	if err := b.SetString(datastore.AffiliateForCodeKey(code), affiliate); err != nil {
		return err
	}
	if err := b.SetDec(datastore.ReferralTotalRebateFactorKey(code), totalRebateFactor); err != nil {
		return err
	}
	if err := b.SetDec(datastore.ReferralDiscountShareKey(code), discountShare); err != nil {
		return err
	}
	return b.Write()
}

// SetTraderReferralCode links a trader to a referral code.
func (e *Engine) SetTraderReferralCode(account, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.SetString(datastore.ReferralCodeKey(account), code)
}

// SetUIFeeFactor registers a UI fee receiver's factor. The global maximum
// still caps it at charge time.
func (e *Engine) SetUIFeeFactor(receiver string, factor decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.SetDec(datastore.UIFeeFactorKey(receiver), factor)
}

// CreateOrder validates and persists an order in the created state.
func (e *Engine) CreateOrder(o *Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.validateOrder(o); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = fmt.Sprintf("order-%d-%d", e.now().UnixNano(), e.orderSeq.Add(1))
	}
	o.State = OrderCreated
	o.CreatedAt = e.now()
	o.UpdatedAt = o.CreatedAt
	if err := e.saveOrder(o); err != nil {
		return err
	}
	if err := e.store.ListAdd(datastore.OrderListKey(), o.ID); err != nil {
		return err
	}
	e.log.Info("order created", "order", o.ID, "kind", o.Kind.String(),
		"account", o.Account, "market", o.Market)
	return nil
}

func (e *Engine) validateOrder(o *Order) error {
	if o.Account == "" || o.Market == "" {
		return fmt.Errorf("%w: account and market required", ErrInvalidOrder)
	}
	switch o.Kind {
	case OrderIncrease:
		if o.SizeDeltaUsd.Sign() <= 0 && o.CollateralDelta.Sign() <= 0 {
			return fmt.Errorf("%w: increase needs size or collateral delta", ErrInvalidOrder)
		}
	case OrderDecrease:
		if o.SizeDeltaUsd.Sign() <= 0 && o.CollateralDelta.Sign() <= 0 {
			return fmt.Errorf("%w: decrease needs size or collateral delta", ErrInvalidOrder)
		}
	case OrderLiquidation:
		// Size is taken from the position at execution time.
	case OrderSwap:
		if o.TokenIn == "" || o.AmountIn.Sign() <= 0 {
			return fmt.Errorf("%w: swap needs token in and amount", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidOrder, o.Kind)
	}
	if o.SizeDeltaUsd.Sign() < 0 || o.CollateralDelta.Sign() < 0 || o.AmountIn.Sign() < 0 {
		return fmt.Errorf("%w: negative amounts", ErrInvalidOrder)
	}
	return nil
}

func (e *Engine) saveOrder(o *Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return e.store.SetBytes(datastore.OrderKey(o.ID), raw)
}

func (e *Engine) loadOrder(id string) (*Order, error) {
	raw, err := e.store.GetBytes(datastore.OrderKey(id))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	var o Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", id, err)
	}
	return &o, nil
}

// GetOrder returns an order by id.
func (e *Engine) GetOrder(id string) (*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadOrder(id)
}

// CancelOrder cancels a created or frozen order.
func (e *Engine) CancelOrder(id, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.loadOrder(id)
	if err != nil {
		return err
	}
	if o.State != OrderCreated && o.State != OrderFrozen {
		return fmt.Errorf("%w: %s is %s", ErrOrderNotRetryable, id, o.State)
	}
	o.State = OrderCancelled
	o.Reason = reason
	o.UpdatedAt = e.now()
	if err := e.saveOrder(o); err != nil {
		return err
	}
	e.emit(events.New(events.OrderCancelled).
		SetStr("order", o.ID).SetStr("reason", reason))
	e.flushEvents()
	e.metrics.ObserveTrade(o.Kind.String(), OrderCancelled.String(), 0)
	return nil
}

// ExecuteOrder runs a created or frozen order through the trade pipeline.
// The returned result carries the terminal state of this attempt; a frozen
// order stays retryable.
func (e *Engine) ExecuteOrder(id string) (*TradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if o.State != OrderCreated && o.State != OrderFrozen {
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderNotRetryable, id, o.State)
	}
	start := e.now()
	res, err := e.execute(o)
	if err != nil {
		e.discardEvents()
		return nil, err
	}

	o.State = res.State
	o.Reason = res.Reason
	o.UpdatedAt = e.now()
	if res.State != OrderExecuted {
		// Terminal bookkeeping for failed attempts happens outside the
		// trade batch; there is no market state to roll back.
		e.discardEvents()
		if err := e.saveOrder(o); err != nil {
			return nil, err
		}
		switch res.State {
		case OrderFrozen:
			e.emitter.Emit(events.New(events.OrderFrozen).
				SetStr("order", o.ID).SetStr("reason", res.Reason))
		case OrderCancelled:
			e.emitter.Emit(events.New(events.OrderCancelled).
				SetStr("order", o.ID).SetStr("reason", res.Reason))
		}
		e.log.Info("order not executed", "order", o.ID,
			"state", res.State.String(), "reason", res.Reason)
		e.metrics.ObserveTrade(o.Kind.String(), res.State.String(), e.now().Sub(start).Seconds())
		res.Order = o
		return res, nil
	}

	e.flushEvents()
	e.log.Info("order executed", "order", o.ID, "kind", o.Kind.String(),
		"market", o.Market, "executionPrice", res.ExecutionPrice.String(),
		"priceImpactUsd", res.PriceImpactUsd.String())
	e.metrics.ObserveTrade(o.Kind.String(), OrderExecuted.String(), e.now().Sub(start).Seconds())
	res.Order = o
	return res, nil
}

// execute dispatches by order kind. State-changing paths persist the order
// record inside the trade batch so the order and its effects commit
// together.
func (e *Engine) execute(o *Order) (*TradeResult, error) {
	switch o.Kind {
	case OrderIncrease:
		return e.executeIncrease(o)
	case OrderDecrease:
		return e.executeDecrease(o, false)
	case OrderLiquidation:
		return e.executeDecrease(o, true)
	case OrderSwap:
		return e.executeSwap(o)
	}
	return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidOrder, o.Kind)
}

// Claim pays out a claimable balance from the market pool and zeroes the
// ledger entry. ClaimFeeReceiver ignores the account argument.
func (e *Engine) Claim(kind ClaimKind, market, token, account string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var key []byte
	switch kind {
	case ClaimFunding:
		key = datastore.ClaimableFundingAmountKey(market, token, account)
	case ClaimAffiliateReward:
		key = datastore.AffiliateRewardKey(market, token, account)
	case ClaimUIFee:
		key = datastore.ClaimableUIFeeAmountKey(market, token, account)
	case ClaimFeeReceiver:
		key = datastore.ClaimableFeeAmountKey(market, token)
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unknown claim kind %d", ErrInvalidOrder, kind)
	}
	amount, err := e.store.GetDec(key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if amount.Sign() <= 0 {
		return decimal.Decimal{}, ErrNothingToClaim
	}
	poolKey := datastore.PoolAmountKey(market, token)
	pool, err := e.store.GetDec(poolKey)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if pool.LessThan(amount) {
		return decimal.Decimal{}, fmt.Errorf("%w: pool %s, claim %s",
			ErrInsufficientPool, pool.String(), amount.String())
	}
	b := e.store.NewBatch()
	if err := b.SetDec(key, decimal.Zero); err != nil {
		return decimal.Decimal{}, err
	}
	if err := b.SetDec(poolKey, pool.Sub(amount)); err != nil {
		return decimal.Decimal{}, err
	}
	if err := b.Write(); err != nil {
		return decimal.Decimal{}, err
	}
	e.emitter.Emit(events.New(events.ClaimProcessed).
		SetStr("kind", kind.String()).
		SetStr("market", market).
		SetStr("token", token).
		SetStr("account", account).
		SetNum("amount", amount))
	e.metrics.ObserveClaim(kind.String())
	e.log.Info("claim processed", "kind", kind.String(), "market", market,
		"token", token, "account", account, "amount", amount.String())
	return amount, nil
}

// GetClaimable reads a claimable balance without modifying it.
func (e *Engine) GetClaimable(kind ClaimKind, market, token, account string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch kind {
	case ClaimFunding:
		return e.store.GetDec(datastore.ClaimableFundingAmountKey(market, token, account))
	case ClaimAffiliateReward:
		return e.store.GetDec(datastore.AffiliateRewardKey(market, token, account))
	case ClaimUIFee:
		return e.store.GetDec(datastore.ClaimableUIFeeAmountKey(market, token, account))
	case ClaimFeeReceiver:
		return e.store.GetDec(datastore.ClaimableFeeAmountKey(market, token))
	}
	return decimal.Decimal{}, fmt.Errorf("%w: unknown claim kind %d", ErrInvalidOrder, kind)
}

// MarketSnapshot is the observable state of one market.
type MarketSnapshot struct {
	Market                   Market                     `json:"market"`
	LongOpenInterestUsd      decimal.Decimal            `json:"longOpenInterestUsd"`
	ShortOpenInterestUsd     decimal.Decimal            `json:"shortOpenInterestUsd"`
	PoolAmounts              map[string]decimal.Decimal `json:"poolAmounts"`
	PositionImpactPool       decimal.Decimal            `json:"positionImpactPool"`
	SwapImpactPools          map[string]decimal.Decimal `json:"swapImpactPools"`
	FundingUpdatedAt         int64                      `json:"fundingUpdatedAt"`
	BorrowingUpdatedAt       int64                      `json:"borrowingUpdatedAt"`
	CumulativeBorrowingLong  decimal.Decimal            `json:"cumulativeBorrowingFactorLong"`
	CumulativeBorrowingShort decimal.Decimal            `json:"cumulativeBorrowingFactorShort"`
}

// Snapshot reads the observable state of a market.
func (e *Engine) Snapshot(marketToken string) (*MarketSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.loadMarketState(marketToken)
	if err != nil {
		return nil, err
	}
	snap := &MarketSnapshot{
		Market:                   st.market,
		LongOpenInterestUsd:      st.sideOpenInterest(true),
		ShortOpenInterestUsd:     st.sideOpenInterest(false),
		PoolAmounts:              make(map[string]decimal.Decimal),
		PositionImpactPool:       st.positionImpactPool,
		SwapImpactPools:          make(map[string]decimal.Decimal),
		FundingUpdatedAt:         st.fundingUpdatedAt,
		BorrowingUpdatedAt:       st.borrowingUpdatedAt,
		CumulativeBorrowingLong:  st.cumulativeBorrowingFactor[true],
		CumulativeBorrowingShort: st.cumulativeBorrowingFactor[false],
	}
	for _, t := range st.market.CollateralTokens() {
		snap.PoolAmounts[t] = st.poolAmount[t]
		snap.SwapImpactPools[t] = st.swapImpactPool[t]
	}
	return snap, nil
}

// FundingState exposes the funding accumulators of a market for one
// collateral token and side.
type FundingState struct {
	FundingFeeAmountPerSize       decimal.Decimal `json:"fundingFeeAmountPerSize"`
	ClaimableFundingAmountPerSize decimal.Decimal `json:"claimableFundingAmountPerSize"`
	FundingUpdatedAt              int64           `json:"fundingUpdatedAt"`
}

// GetFundingState reads the funding accumulators for a token and side.
func (e *Engine) GetFundingState(marketToken, token string, isLong bool) (*FundingState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fee, err := e.store.GetDec(datastore.FundingFeeAmountPerSizeKey(marketToken, token, isLong))
	if err != nil {
		return nil, err
	}
	claimable, err := e.store.GetDec(datastore.ClaimableFundingAmountPerSizeKey(marketToken, token, isLong))
	if err != nil {
		return nil, err
	}
	at, err := e.store.GetInt64(datastore.FundingUpdatedAtKey(marketToken))
	if err != nil {
		return nil, err
	}
	return &FundingState{
		FundingFeeAmountPerSize:       fee,
		ClaimableFundingAmountPerSize: claimable,
		FundingUpdatedAt:              at,
	}, nil
}
