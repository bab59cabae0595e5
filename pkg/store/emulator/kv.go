package emulator

import (
	"sort"
	"strings"
	"sync"
)

// Entry is one key-value pair returned by a scan.
type Entry struct {
	Key   string
	Value []byte
}

// KV is the storage engine under the emulator.
//
// Values handed to and returned from a KV are owned by the caller.
type KV interface {
	// Get returns the value stored under key. ok is false if it is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Scan returns every entry whose key starts with prefix, sorted by key.
	Scan(prefix string) ([]Entry, error)

	// Apply writes puts and removes deletes as one batch.
	Apply(puts map[string][]byte, deletes []string) error

	// Close releases the engine.
	Close() error
}

// memoryKV is a map-backed KV. Nothing survives Close.
type memoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory engine.
func NewMemoryKV() KV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *memoryKV) Scan(prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Entry{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryKV) Apply(puts map[string][]byte, deletes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range deletes {
		delete(m.data, k)
	}
	for k, v := range puts {
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *memoryKV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}
