// Package datastore exposes the engine's persisted state as typed records
// over a key-value database. Every entity is addressed by a deterministic
// keccak-derived key; missing keys read as zero values, never as errors.
package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/luxfi/database"
	"github.com/shopspring/decimal"
)

// Store wraps a database.Database with typed get/set plus ordered list
// operations.
type Store struct {
	db database.Database
}

// New creates a store over the given database.
func New(db database.Database) *Store {
	return &Store{db: db}
}

// DB returns the underlying database, used by the daemon for health checks.
func (s *Store) DB() database.Database {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getRaw(key []byte) ([]byte, bool, error) {
	val, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// GetDec reads a decimal value, returning zero for a missing key.
func (s *Store) GetDec(key []byte) (decimal.Decimal, error) {
	raw, ok, err := s.getRaw(key)
	if err != nil || !ok {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("datastore: corrupt decimal record: %w", err)
	}
	return d, nil
}

// SetDec writes a decimal value.
func (s *Store) SetDec(key []byte, value decimal.Decimal) error {
	return s.db.Put(key, []byte(value.String()))
}

// GetInt64 reads a signed integer (timestamps, counters), zero if missing.
func (s *Store) GetInt64(key []byte) (int64, error) {
	raw, ok, err := s.getRaw(key)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("datastore: corrupt int record: %w", err)
	}
	return v, nil
}

// SetInt64 writes a signed integer.
func (s *Store) SetInt64(key []byte, value int64) error {
	return s.db.Put(key, []byte(strconv.FormatInt(value, 10)))
}

// GetBool reads a boolean, false if missing.
func (s *Store) GetBool(key []byte) (bool, error) {
	raw, ok, err := s.getRaw(key)
	if err != nil || !ok {
		return false, err
	}
	return string(raw) == "1", nil
}

// SetBool writes a boolean.
func (s *Store) SetBool(key []byte, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return s.db.Put(key, []byte(v))
}

// GetString reads a string record, empty if missing.
func (s *Store) GetString(key []byte) (string, error) {
	raw, _, err := s.getRaw(key)
	return string(raw), err
}

// SetString writes a string record.
func (s *Store) SetString(key []byte, value string) error {
	return s.db.Put(key, []byte(value))
}

// GetBytes reads a raw record, nil if missing.
func (s *Store) GetBytes(key []byte) ([]byte, error) {
	raw, _, err := s.getRaw(key)
	return raw, err
}

// SetBytes writes a raw record.
func (s *Store) SetBytes(key []byte, value []byte) error {
	return s.db.Put(key, value)
}

// Has reports whether a record exists.
func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

// Delete removes a record.
func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key)
}

// List operations. Lists are ordered string arrays stored as JSON under a
// single key; members are unique.

func (s *Store) readList(key []byte) ([]string, error) {
	raw, ok, err := s.getRaw(key)
	if err != nil || !ok {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("datastore: corrupt list record: %w", err)
	}
	return list, nil
}

func (s *Store) writeList(key []byte, list []string) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.db.Put(key, raw)
}

// List returns all members of a list. A missing list is empty.
func (s *Store) List(key []byte) ([]string, error) {
	return s.readList(key)
}

// ListAdd appends a member to a list if not already present.
func (s *Store) ListAdd(key []byte, member string) error {
	list, err := s.readList(key)
	if err != nil {
		return err
	}
	for _, m := range list {
		if m == member {
			return nil
		}
	}
	return s.writeList(key, append(list, member))
}

// ListRemove removes a member from a list; removing a missing member is a
// no-op.
func (s *Store) ListRemove(key []byte, member string) error {
	list, err := s.readList(key)
	if err != nil {
		return err
	}
	out := list[:0]
	for _, m := range list {
		if m != member {
			out = append(out, m)
		}
	}
	return s.writeList(key, out)
}

// ListCount returns the number of members in a list.
func (s *Store) ListCount(key []byte) (int, error) {
	list, err := s.readList(key)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// ListRange returns members in the half-open interval [start, end). An end
// beyond the list is clamped.
func (s *Store) ListRange(key []byte, start, end int) ([]string, error) {
	list, err := s.readList(key)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		start = 0
	}
	if end > len(list) {
		end = len(list)
	}
	if start >= end {
		return nil, nil
	}
	out := make([]string, end-start)
	copy(out, list[start:end])
	return out, nil
}

// NewBatch returns a typed writer whose mutations are staged and applied
// atomically on Write. A trade's effects are committed through exactly one
// batch, so they are either fully applied or fully discarded.
func (s *Store) NewBatch() *Batch {
	return &Batch{inner: s.db.NewBatch()}
}

// Batch stages typed writes over a database batch.
type Batch struct {
	inner database.Batch
}

// SetDec stages a decimal write.
func (b *Batch) SetDec(key []byte, value decimal.Decimal) error {
	return b.inner.Put(key, []byte(value.String()))
}

// SetInt64 stages an integer write.
func (b *Batch) SetInt64(key []byte, value int64) error {
	return b.inner.Put(key, []byte(strconv.FormatInt(value, 10)))
}

// SetString stages a string write.
func (b *Batch) SetString(key []byte, value string) error {
	return b.inner.Put(key, []byte(value))
}

// SetBytes stages a raw write.
func (b *Batch) SetBytes(key []byte, value []byte) error {
	return b.inner.Put(key, value)
}

// SetList stages a full list replacement.
func (b *Batch) SetList(key []byte, list []string) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return b.inner.Put(key, raw)
}

// Delete stages a record removal.
func (b *Batch) Delete(key []byte) error {
	return b.inner.Delete(key)
}

// Write applies all staged mutations atomically.
func (b *Batch) Write() error {
	return b.inner.Write()
}

// Reset discards staged mutations.
func (b *Batch) Reset() {
	b.inner.Reset()
}
