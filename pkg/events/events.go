// Package events defines the structured event records the engine emits for
// off-chain indexers, and the sinks that carry them.
package events

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Event names emitted by the engine.
const (
	PositionIncrease          = "PositionIncrease"
	PositionDecrease          = "PositionDecrease"
	PositionFeesCollected     = "PositionFeesCollected"
	FundingUpdated            = "FundingUpdated"
	ClaimableFundingUpdated   = "ClaimableFundingUpdated"
	BorrowingUpdated          = "BorrowingUpdated"
	PositionImpactPoolUpdated = "PositionImpactPoolUpdated"
	SwapImpactPoolUpdated     = "SwapImpactPoolUpdated"
	VirtualInventoryUpdated   = "VirtualInventoryUpdated"
	OrderFrozen               = "OrderFrozen"
	OrderCancelled            = "OrderCancelled"
	ClaimProcessed            = "ClaimProcessed"
	SwapExecuted              = "SwapExecuted"
	PositionAutoClosed        = "PositionAutoClosed"
)

// Event is a typed key-value record. Numeric fields stay decimal so
// indexers receive exact values.
type Event struct {
	Name  string                     `json:"name"`
	Time  time.Time                  `json:"time"`
	Str   map[string]string          `json:"str,omitempty"`
	Num   map[string]decimal.Decimal `json:"num,omitempty"`
	Flags map[string]bool            `json:"flags,omitempty"`
}

// New creates an empty event with the given name, stamped now.
func New(name string) *Event {
	return &Event{
		Name:  name,
		Time:  time.Now(),
		Str:   make(map[string]string),
		Num:   make(map[string]decimal.Decimal),
		Flags: make(map[string]bool),
	}
}

// SetStr sets a string field and returns the event for chaining.
func (e *Event) SetStr(key, value string) *Event {
	e.Str[key] = value
	return e
}

// SetNum sets a numeric field.
func (e *Event) SetNum(key string, value decimal.Decimal) *Event {
	e.Num[key] = value
	return e
}

// SetFlag sets a boolean field.
func (e *Event) SetFlag(key string, value bool) *Event {
	e.Flags[key] = value
	return e
}

// Emitter is the event sink consumed by the engine. Emit must not block
// trade execution.
type Emitter interface {
	Emit(event *Event)
}

// MemoryEmitter buffers events in a bounded ring. It backs tests and the
// daemon's standalone mode.
type MemoryEmitter struct {
	mu     sync.RWMutex
	events []*Event
	limit  int
}

// NewMemoryEmitter creates a memory sink holding at most limit events.
func NewMemoryEmitter(limit int) *MemoryEmitter {
	if limit <= 0 {
		limit = 4096
	}
	return &MemoryEmitter{limit: limit}
}

// Emit appends an event, dropping the oldest once the limit is reached.
func (m *MemoryEmitter) Emit(event *Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if len(m.events) > m.limit {
		m.events = m.events[len(m.events)-m.limit:]
	}
}

// All returns a snapshot of buffered events.
func (m *MemoryEmitter) All() []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByName returns buffered events with the given name.
func (m *MemoryEmitter) ByName(name string) []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Event
	for _, e := range m.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent event with the given name, or nil.
func (m *MemoryEmitter) Last(name string) *Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Name == name {
			return m.events[i]
		}
	}
	return nil
}

// MultiEmitter fans one event out to several sinks.
type MultiEmitter struct {
	sinks []Emitter
}

// NewMultiEmitter combines sinks; nil sinks are skipped.
func NewMultiEmitter(sinks ...Emitter) *MultiEmitter {
	out := &MultiEmitter{}
	for _, s := range sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

// Emit delivers the event to every sink.
func (m *MultiEmitter) Emit(event *Event) {
	for _, s := range m.sinks {
		s.Emit(event)
	}
}
