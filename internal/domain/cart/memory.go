package cart

import (
	"context"
	"sync"
)

// MemoryStore keeps carts in process memory. It is used when no Redis
// address is configured.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]map[string]int)}
}

func (m *MemoryStore) Items(ctx context.Context, userID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make(map[string]int, len(m.carts[userID]))
	for id, qty := range m.carts[userID] {
		items[id] = qty
	}
	return items, nil
}

func (m *MemoryStore) SetItem(ctx context.Context, userID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.carts[userID] == nil {
		m.carts[userID] = make(map[string]int)
	}
	m.carts[userID][productID] = quantity
	return nil
}

func (m *MemoryStore) RemoveItem(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts[userID], productID)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, userID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
