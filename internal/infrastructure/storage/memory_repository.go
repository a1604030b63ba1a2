package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/ports"
)

// MemoryRepository keeps resources in process memory. It is the test fake and
// the "memory" storage driver.
type MemoryRepository struct {
	mu        sync.Mutex
	seq       int64
	resources map[string][]domain.TrackedResource
	paused    map[string]bool
	now       func() time.Time
}

var _ ports.ResourceRegistry = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty registry.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		resources: map[string][]domain.TrackedResource{},
		paused:    map[string]bool{},
		now:       time.Now,
	}
}

func (m *MemoryRepository) Register(_ context.Context, ownerID, url, rule string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, res := range m.resources[ownerID] {
		if res.URL == url {
			return false, nil
		}
	}
	m.seq++
	m.resources[ownerID] = append(m.resources[ownerID], domain.TrackedResource{
		ID:        m.seq,
		OwnerID:   ownerID,
		URL:       url,
		Rule:      rule,
		CreatedAt: m.now().UTC(),
	})
	return true, nil
}

func (m *MemoryRepository) Get(_ context.Context, ownerID, url string) (domain.TrackedResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, res := range m.resources[ownerID] {
		if res.URL == url {
			return clone(res), nil
		}
	}
	return domain.TrackedResource{}, domain.ErrNotFound
}

func (m *MemoryRepository) List(_ context.Context, ownerID string) ([]domain.TrackedResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return cloneAll(m.resources[ownerID]), nil
}

func (m *MemoryRepository) ListActive(_ context.Context) ([]domain.TrackedResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owners := make([]string, 0, len(m.resources))
	for owner := range m.resources {
		if !m.paused[owner] {
			owners = append(owners, owner)
		}
	}
	sort.Strings(owners)

	result := make([]domain.TrackedResource, 0)
	for _, owner := range owners {
		result = append(result, cloneAll(m.resources[owner])...)
	}
	return result, nil
}

func (m *MemoryRepository) Remove(_ context.Context, ownerID string, sel domain.Selector) (domain.TrackedResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.resources[ownerID]
	target, ok := sel.Pick(list)
	if !ok {
		return domain.TrackedResource{}, domain.ErrNotFound
	}

	kept := make([]domain.TrackedResource, 0, len(list)-1)
	for _, res := range list {
		if res.ID != target.ID {
			kept = append(kept, res)
		}
	}
	m.resources[ownerID] = kept
	return clone(target), nil
}

func (m *MemoryRepository) RecordResult(_ context.Context, ownerID, url, fingerprint string, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.resources[ownerID]
	for i := range list {
		if list[i].URL == url {
			fp := fingerprint
			ts := checkedAt.UTC()
			list[i].LastFingerprint = &fp
			list[i].LastCheckedAt = &ts
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MemoryRepository) SetPaused(_ context.Context, ownerID string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused[ownerID] = paused
	return nil
}

func (m *MemoryRepository) RemoveOwner(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.resources, ownerID)
	delete(m.paused, ownerID)
	return nil
}

func clone(res domain.TrackedResource) domain.TrackedResource {
	if res.LastFingerprint != nil {
		fp := *res.LastFingerprint
		res.LastFingerprint = &fp
	}
	if res.LastCheckedAt != nil {
		ts := *res.LastCheckedAt
		res.LastCheckedAt = &ts
	}
	return res
}

func cloneAll(list []domain.TrackedResource) []domain.TrackedResource {
	out := make([]domain.TrackedResource, 0, len(list))
	for _, res := range list {
		out = append(out, clone(res))
	}
	return out
}
