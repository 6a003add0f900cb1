package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"doccontrol/internal/identity/models"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
)

// InMemory keeps tenants, users and contracts in maps. It backs tests and
// the single-process development mode.
type InMemory struct {
	mu        sync.RWMutex
	tenants   map[id.TenantID]*models.Tenant
	users     map[id.UserID]*models.User
	contracts map[id.ContractID]*models.Contract
}

func NewInMemory() *InMemory {
	return &InMemory{
		tenants:   make(map[id.TenantID]*models.Tenant),
		users:     make(map[id.UserID]*models.User),
		contracts: make(map[id.ContractID]*models.Contract),
	}
}

func (s *InMemory) CreateTenant(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if strings.EqualFold(existing.Name, t.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *InMemory) FindTenant(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemory) UpdateTenant(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *InMemory) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.TenantID == u.TenantID && strings.EqualFold(existing.Email, u.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// FindUsers returns the subset of userIDs that belong to tenantID.
func (s *InMemory) FindUsers(_ context.Context, tenantID id.TenantID, userIDs []id.UserID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(userIDs))
	for _, uid := range userIDs {
		if u, ok := s.users[uid]; ok && u.TenantID == tenantID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) ListActiveUsers(_ context.Context, tenantID id.TenantID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.TenantID == tenantID && u.Active {
			cp := *u
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.User) int { return strings.Compare(a.Email, b.Email) })
	return out, nil
}

func (s *InMemory) CreateContract(_ context.Context, c *models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.contracts {
		if existing.TenantID == c.TenantID && existing.Code == c.Code {
			return sentinel.ErrAlreadyUsed
		}
	}
	cp := *c
	s.contracts[c.ID] = &cp
	return nil
}

func (s *InMemory) FindContract(_ context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[contractID]
	if !ok || c.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}
