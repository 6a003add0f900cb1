package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"doccontrol/internal/distribution/models"
	id "doccontrol/pkg/domain"
)

type contractKey struct {
	tenant   id.TenantID
	contract id.ContractID
}

// InMemory keeps rules per (tenant, contract), one per user.
type InMemory struct {
	mu    sync.RWMutex
	rules map[contractKey]map[id.UserID]*models.Rule
}

func NewInMemory() *InMemory {
	return &InMemory{rules: make(map[contractKey]map[id.UserID]*models.Rule)}
}

// ListByContract returns the contract's rules ordered by user id.
func (s *InMemory) ListByContract(_ context.Context, tenantID id.TenantID, contractID id.ContractID) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := s.rules[contractKey{tenantID, contractID}]
	out := make([]*models.Rule, 0, len(byUser))
	for _, r := range byUser {
		out = append(out, cloneRule(r))
	}
	slices.SortFunc(out, func(a, b *models.Rule) int {
		return cmp.Compare(a.UserID.String(), b.UserID.String())
	})
	return out, nil
}

// ListSubscribers returns the users whose rule for the contract covers area.
func (s *InMemory) ListSubscribers(ctx context.Context, tenantID id.TenantID, contractID id.ContractID, area string) ([]id.UserID, error) {
	rules, err := s.ListByContract(ctx, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	return models.Recipients(rules, area), nil
}

// Upsert replaces each named user's area set in one step.
func (s *InMemory) Upsert(_ context.Context, rules []*models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rules {
		key := contractKey{r.TenantID, r.ContractID}
		byUser := s.rules[key]
		if byUser == nil {
			byUser = make(map[id.UserID]*models.Rule)
			s.rules[key] = byUser
		}
		byUser[r.UserID] = cloneRule(r)
	}
	return nil
}

func cloneRule(r *models.Rule) *models.Rule {
	cp := *r
	cp.Areas = slices.Clone(r.Areas)
	if cp.Areas == nil {
		cp.Areas = []string{}
	}
	return &cp
}
