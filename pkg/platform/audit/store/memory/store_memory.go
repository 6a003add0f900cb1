package memory

import (
	"context"
	"sync"

	id "doccontrol/pkg/domain"
	audit "doccontrol/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.TenantID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.TenantID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.TenantID] = append(s.events[event.TenantID], event)
	return nil
}

// ListByTenant returns a tenant's events in append order.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[tenantID]...), nil
}

// ListByAction filters a tenant's events by action.
func (s *InMemoryStore) ListByAction(_ context.Context, tenantID id.TenantID, action audit.AuditEvent) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events[tenantID] {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}
