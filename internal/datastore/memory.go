package datastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/juju/errors"
)

// MemoryStore keeps content in a map. Content lives as long as the store,
// so a store handle evicted from the storage cache takes its content with
// it. This implementation is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	content map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{content: make(map[string][]byte)}
}

func memoryKey(domain, p string) (string, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return domain + "/" + rel, nil
}

func (m *MemoryStore) Save(ctx context.Context, domain, p string, r io.Reader, size int64) (int64, error) {
	key, err := memoryKey(domain, p)
	if err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}
	if err := checkSize(size, int64(len(data))); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[key] = data
	return int64(len(data)), nil
}

func (m *MemoryStore) Open(ctx context.Context, domain, p string) (io.ReadCloser, error) {
	key, err := memoryKey(domain, p)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[key]
	if !ok {
		return nil, errors.NotFoundf("content %q", p)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) Delete(ctx context.Context, domain, p string) (int64, error) {
	key, err := memoryKey(domain, p)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.content[key]
	if !ok {
		return 0, nil
	}
	delete(m.content, key)
	return int64(len(data)), nil
}

func (m *MemoryStore) Exists(ctx context.Context, domain, p string) (bool, error) {
	key, err := memoryKey(domain, p)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.content[key]
	return ok, nil
}

func (m *MemoryStore) Size(ctx context.Context, domain, p string) (int64, error) {
	key, err := memoryKey(domain, p)
	if err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.content[key]
	if !ok {
		return 0, errors.NotFoundf("content %q", p)
	}
	return int64(len(data)), nil
}

// Len returns the number of stored items.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}
