package subscription

import (
	"context"
	"sort"
	"sync"
	"time"

	"stripe-webhook-router/internal/common/errors"
)

// MemoryStore keeps subscriptions in process. Used when DATABASE_TYPE=memory
// and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Subscription
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Subscription)}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.byID[id]
	if !ok {
		return nil, errors.NotFoundError("subscription")
	}
	return sub.Clone(), nil
}

func (m *MemoryStore) GetByEndpoint(ctx context.Context, endpoint string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.byID {
		if sub.Endpoint == endpoint {
			return sub.Clone(), nil
		}
	}
	return nil, errors.NotFoundError("subscription")
}

func (m *MemoryStore) List(ctx context.Context) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]*Subscription, 0, len(m.byID))
	for _, sub := range m.byID {
		subs = append(subs, sub.Clone())
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

func (m *MemoryStore) ListExpiring(ctx context.Context, after, before time.Time) ([]*Subscription, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	expiring := all[:0]
	for _, sub := range all {
		if sub.ExpiresAt.After(after) && sub.ExpiresAt.Before(before) {
			expiring = append(expiring, sub)
		}
	}
	return expiring, nil
}

func (m *MemoryStore) Save(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.byID {
		if id != sub.ID && existing.Endpoint == sub.Endpoint {
			return errors.ValidationError("endpoint already in use")
		}
	}
	m.byID[sub.ID] = sub.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return errors.NotFoundError("subscription")
	}
	delete(m.byID, id)
	return nil
}

func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
