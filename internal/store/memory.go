package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process KV. It is used in tests and by `simulate`.
type Memory struct {
	mu   sync.RWMutex
	data map[string]Record

	// failNext, when set, makes the next AtomicCommit fail with the error.
	failNext error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]Record)}
}

func (m *Memory) Get(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.data[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(r), nil
}

func (m *Memory) Scan(ctx context.Context, prefix string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for k, r := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) AtomicCommit(ctx context.Context, writes []Write) error {
	if err := checkWrites(writes); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}

	for _, w := range writes {
		cur := m.data[w.Key].Version
		if cur != w.Version {
			return conflict(w.Key, w.Version, cur)
		}
	}
	for _, w := range writes {
		if w.Delete {
			delete(m.data, w.Key)
			continue
		}
		m.data[w.Key] = Record{
			Key:     w.Key,
			Value:   append([]byte(nil), w.Value...),
			Version: w.Version + 1,
		}
	}
	return nil
}

// FailNextCommit makes the next AtomicCommit return err without applying
// anything.
func (m *Memory) FailNextCommit(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *Memory) Close() error { return nil }

func copyRecord(r Record) Record {
	r.Value = append([]byte(nil), r.Value...)
	return r
}
