package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
)

// MemoryStorage keeps serialized carts in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, owner string) (*domain.Cart, error) {
	m.mu.RLock()
	data, ok := m.blobs[storageKey(owner)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCartNotFound
	}

	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

func (m *MemoryStorage) Save(_ context.Context, c *domain.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	m.mu.Lock()
	m.blobs[storageKey(c.Owner)] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, owner string) error {
	m.mu.Lock()
	delete(m.blobs, storageKey(owner))
	m.mu.Unlock()
	return nil
}
