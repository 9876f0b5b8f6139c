package datastore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/luxfi/database"
)

// memDB is a mutex-guarded in-memory database.Database. It backs tests and
// the daemon's fallback path when BadgerDB is unavailable.
type memDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemDB returns an empty in-memory database.
func NewMemDB() database.Database {
	return &memDB{
		data: make(map[string][]byte),
	}
}

func (m *memDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[string(key)]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *memDB) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[string(key)] = stored
	return nil
}

func (m *memDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *memDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *memDB) Close() error {
	return nil
}

func (m *memDB) Compact(start []byte, limit []byte) error {
	return nil
}

func (m *memDB) HealthCheck(ctx context.Context) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"type": "memDB",
		"size": len(m.data),
	}, nil
}

func (m *memDB) NewBatch() database.Batch {
	return &memBatch{db: m, ops: make([]batchOp, 0)}
}

func (m *memDB) NewIterator() database.Iterator {
	return m.NewIteratorWithStartAndPrefix(nil, nil)
}

func (m *memDB) NewIteratorWithStart(start []byte) database.Iterator {
	return m.NewIteratorWithStartAndPrefix(start, nil)
}

func (m *memDB) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return m.NewIteratorWithStartAndPrefix(nil, prefix)
}

func (m *memDB) NewIteratorWithStartAndPrefix(start, prefix []byte) database.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if prefix != nil && !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if start != nil && bytes.Compare([]byte(k), start) < 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	it := &memIterator{entries: make([]kvPair, 0, len(keys)), index: -1}
	for _, k := range keys {
		val := make([]byte, len(m.data[k]))
		copy(val, m.data[k])
		it.entries = append(it.entries, kvPair{key: []byte(k), value: val})
	}
	return it
}

type kvPair struct {
	key   []byte
	value []byte
}

// memIterator iterates over a sorted snapshot taken at creation time.
type memIterator struct {
	entries []kvPair
	index   int
}

func (it *memIterator) Next() bool {
	it.index++
	return it.index < len(it.entries)
}

func (it *memIterator) Error() error {
	return nil
}

func (it *memIterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.entries) {
		return nil
	}
	return it.entries[it.index].key
}

func (it *memIterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.entries) {
		return nil
	}
	return it.entries[it.index].value
}

func (it *memIterator) Release() {
	it.entries = nil
	it.index = -1
}

// memBatch implements database.Batch. Writes are staged and applied
// atomically under the database mutex on Write.
type memBatch struct {
	db  *memDB
	ops []batchOp
}

type batchOp struct {
	delete bool
	key    []byte
	value  []byte
}

func (b *memBatch) Put(key, value []byte) error {
	k := make([]byte, len(key))
	copy(k, key)
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, batchOp{key: k, value: v})
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	k := make([]byte, len(key))
	copy(k, key)
	b.ops = append(b.ops, batchOp{delete: true, key: k})
	return nil
}

func (b *memBatch) ValueSize() int {
	size := 0
	for _, op := range b.ops {
		size += len(op.value)
	}
	return size
}

func (b *memBatch) Size() int {
	size := 0
	for _, op := range b.ops {
		size += len(op.key) + len(op.value)
	}
	return size
}

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.db.data, string(op.key))
		} else {
			b.db.data[string(op.key)] = op.value
		}
	}
	return nil
}

func (b *memBatch) Reset() {
	b.ops = b.ops[:0]
}

func (b *memBatch) Replay(w database.KeyValueWriterDeleter) error {
	for _, op := range b.ops {
		if op.delete {
			if err := w.Delete(op.key); err != nil {
				return err
			}
		} else {
			if err := w.Put(op.key, op.value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *memBatch) Inner() database.Batch {
	return b
}
