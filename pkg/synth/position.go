package synth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/datastore"
)

// positionMember encodes list membership for a position. The separator is
// safe because token and account identifiers never contain '|'.
func positionMember(account, market, collateralToken string, isLong bool) string {
	side := "short"
	if isLong {
		side = "long"
	}
	return strings.Join([]string{account, market, collateralToken, side}, "|")
}

func parsePositionMember(member string) (account, market, collateralToken string, isLong bool, err error) {
	parts := strings.Split(member, "|")
	if len(parts) != 4 {
		return "", "", "", false, fmt.Errorf("corrupt position list member %q", member)
	}
	return parts[0], parts[1], parts[2], parts[3] == "long", nil
}

func (e *Engine) loadPosition(account, market, collateralToken string, isLong bool) (*Position, error) {
	raw, err := e.store.GetBytes(datastore.PositionKey(account, market, collateralToken, isLong))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var p Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return &p, nil
}

// stagePosition writes the position record and its list memberships into
// the trade batch.
func (e *Engine) stagePosition(b *datastore.Batch, p *Position) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := b.SetBytes(datastore.PositionKey(p.Account, p.Market, p.CollateralToken, p.IsLong), raw); err != nil {
		return err
	}
	member := positionMember(p.Account, p.Market, p.CollateralToken, p.IsLong)
	if err := e.stageListAdd(b, datastore.AccountPositionListKey(p.Account), member); err != nil {
		return err
	}
	return e.stageListAdd(b, datastore.MarketPositionListKey(p.Market), member)
}

// stageRemovePosition deletes the record and removes list memberships.
func (e *Engine) stageRemovePosition(b *datastore.Batch, p *Position) error {
	if err := b.Delete(datastore.PositionKey(p.Account, p.Market, p.CollateralToken, p.IsLong)); err != nil {
		return err
	}
	member := positionMember(p.Account, p.Market, p.CollateralToken, p.IsLong)
	if err := e.stageListRemove(b, datastore.AccountPositionListKey(p.Account), member); err != nil {
		return err
	}
	return e.stageListRemove(b, datastore.MarketPositionListKey(p.Market), member)
}

func (e *Engine) stageListAdd(b *datastore.Batch, key []byte, member string) error {
	list, err := e.store.List(key)
	if err != nil {
		return err
	}
	for _, m := range list {
		if m == member {
			return nil
		}
	}
	return b.SetList(key, append(list, member))
}

func (e *Engine) stageListRemove(b *datastore.Batch, key []byte, member string) error {
	list, err := e.store.List(key)
	if err != nil {
		return err
	}
	out := list[:0]
	for _, m := range list {
		if m != member {
			out = append(out, m)
		}
	}
	return b.SetList(key, out)
}

// GetPosition returns a position, or ErrPositionNotFound.
func (e *Engine) GetPosition(account, market, collateralToken string, isLong bool) (*Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.loadPosition(account, market, collateralToken, isLong)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPositionNotFound
	}
	return p, nil
}

// GetAccountPositions returns all open positions of an account.
func (e *Engine) GetAccountPositions(account string) ([]*Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	members, err := e.store.List(datastore.AccountPositionListKey(account))
	if err != nil {
		return nil, err
	}
	out := make([]*Position, 0, len(members))
	for _, m := range members {
		acct, market, token, isLong, err := parsePositionMember(m)
		if err != nil {
			return nil, err
		}
		p, err := e.loadPosition(acct, market, token, isLong)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetMarketPositions returns all open positions in a market.
func (e *Engine) GetMarketPositions(market string) ([]*Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	members, err := e.store.List(datastore.MarketPositionListKey(market))
	if err != nil {
		return nil, err
	}
	out := make([]*Position, 0, len(members))
	for _, m := range members {
		acct, mkt, token, isLong, err := parsePositionMember(m)
		if err != nil {
			return nil, err
		}
		p, err := e.loadPosition(acct, mkt, token, isLong)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}
