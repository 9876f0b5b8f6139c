package synth

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticOracle is a thread-safe in-memory price source. The daemon feeds it
// from external market data; tests set prices directly.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]Price
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]Price)}
}

// SetPrice sets both sides of a token price.
func (o *StaticOracle) SetPrice(token string, min, max decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[token] = Price{Min: min, Max: max}
}

// SetSpot sets a zero-spread price.
func (o *StaticOracle) SetSpot(token string, price decimal.Decimal) {
	o.SetPrice(token, price, price)
}

func (o *StaticOracle) GetPrice(token string) (Price, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[token]
	if !ok || p.IsZero() {
		return Price{}, fmt.Errorf("%w: %s", ErrEmptyPrice, token)
	}
	return p, nil
}
