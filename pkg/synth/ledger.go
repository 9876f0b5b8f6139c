package synth

import (
	"github.com/shopspring/decimal"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/datastore"
)

// claimLedger accrues claimable-balance deltas during a trade.
type claimLedger interface {
	addClaimableFunding(market, token, account string, amount decimal.Decimal)
	addAffiliateReward(market, token, affiliate string, amount decimal.Decimal)
	addClaimableUIFee(market, token, receiver string, amount decimal.Decimal)
	addClaimableFee(market, token string, amount decimal.Decimal)
}

// tradeLedger collects claimable deltas in memory and flushes them as
// read-modify-write entries in the commit batch. Per-key accumulation means
// a trade touching the same ledger twice still produces one store write.
type tradeLedger struct {
	store  *datastore.Store
	deltas map[string]decimal.Decimal
	order  []string
}

func newTradeLedger(store *datastore.Store) *tradeLedger {
	return &tradeLedger{
		store:  store,
		deltas: make(map[string]decimal.Decimal),
	}
}

func (l *tradeLedger) add(key []byte, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	k := string(key)
	if _, ok := l.deltas[k]; !ok {
		l.order = append(l.order, k)
	}
	l.deltas[k] = l.deltas[k].Add(amount)
}

func (l *tradeLedger) addClaimableFunding(market, token, account string, amount decimal.Decimal) {
	l.add(datastore.ClaimableFundingAmountKey(market, token, account), amount)
}

func (l *tradeLedger) addAffiliateReward(market, token, affiliate string, amount decimal.Decimal) {
	l.add(datastore.AffiliateRewardKey(market, token, affiliate), amount)
}

func (l *tradeLedger) addClaimableUIFee(market, token, receiver string, amount decimal.Decimal) {
	l.add(datastore.ClaimableUIFeeAmountKey(market, token, receiver), amount)
}

func (l *tradeLedger) addClaimableFee(market, token string, amount decimal.Decimal) {
	l.add(datastore.ClaimableFeeAmountKey(market, token), amount)
}

// flush stages every accumulated delta on top of the stored balances.
// Deterministic order keeps batches reproducible.
func (l *tradeLedger) flush(b *datastore.Batch) error {
	for _, k := range l.order {
		key := []byte(k)
		current, err := l.store.GetDec(key)
		if err != nil {
			return err
		}
		if err := b.SetDec(key, current.Add(l.deltas[k])); err != nil {
			return err
		}
	}
	return nil
}
