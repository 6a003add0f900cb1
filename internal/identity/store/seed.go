package store

import (
	"context"
	"fmt"
	"time"

	"doccontrol/internal/identity/models"
	id "doccontrol/pkg/domain"
)

// Directory is the write side both stores implement, used for seeding.
type Directory interface {
	CreateTenant(ctx context.Context, t *models.Tenant) error
	CreateUser(ctx context.Context, u *models.User) error
	CreateContract(ctx context.Context, c *models.Contract) error
}

// Demo is the bootstrap data created by SeedDemo.
type Demo struct {
	Tenant   *models.Tenant
	Admin    *models.User
	Members  []*models.User
	Contract *models.Contract
}

// SeedDemo creates one tenant with an admin, two members and a contract so a
// fresh development instance is usable straight away.
func SeedDemo(ctx context.Context, dir Directory, now time.Time) (*Demo, error) {
	tenant, err := models.NewTenant(id.NewTenantID(), "demo", now)
	if err != nil {
		return nil, err
	}
	if err := dir.CreateTenant(ctx, tenant); err != nil {
		return nil, fmt.Errorf("seed tenant: %w", err)
	}

	newUser := func(email, name string) (*models.User, error) {
		u := &models.User{
			ID:        id.NewUserID(),
			TenantID:  tenant.ID,
			Email:     email,
			Name:      name,
			Active:    true,
			CreatedAt: now,
		}
		if err := dir.CreateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", email, err)
		}
		return u, nil
	}

	admin, err := newUser("admin@demo.local", "Demo Admin")
	if err != nil {
		return nil, err
	}
	alice, err := newUser("alice@demo.local", "Alice")
	if err != nil {
		return nil, err
	}
	bob, err := newUser("bob@demo.local", "Bob")
	if err != nil {
		return nil, err
	}

	contract := &models.Contract{
		ID:        id.NewContractID(),
		TenantID:  tenant.ID,
		Code:      "C1",
		Name:      "Demo contract",
		CreatedAt: now,
	}
	if err := dir.CreateContract(ctx, contract); err != nil {
		return nil, fmt.Errorf("seed contract: %w", err)
	}

	return &Demo{Tenant: tenant, Admin: admin, Members: []*models.User{alice, bob}, Contract: contract}, nil
}
