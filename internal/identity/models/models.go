// Package models holds the tenant directory read by the document-control
// services: tenants, their users and their contracts.
package models

import (
	"strings"
	"time"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
)

// CanTransitionTo allows active <-> inactive only.
func (s TenantStatus) CanTransitionTo(next TenantStatus) bool {
	switch s {
	case TenantStatusActive:
		return next == TenantStatusInactive
	case TenantStatusInactive:
		return next == TenantStatusActive
	default:
		return false
	}
}

// Tenant is the isolation boundary for every document, rule and
// notification.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Status is either active or inactive
//
// An inactive tenant keeps its data but every core operation is refused
// until it is reactivated.
type Tenant struct {
	ID        id.TenantID  `json:"id"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// CanDeactivate checks if the tenant can transition to inactive status.
func (t *Tenant) CanDeactivate() error {
	if !t.Status.CanTransitionTo(TenantStatusInactive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already inactive")
	}
	return nil
}

func (t *Tenant) ApplyDeactivation(now time.Time) {
	t.Status = TenantStatusInactive
	t.UpdatedAt = now
}

// CanReactivate checks if the tenant can transition to active status.
func (t *Tenant) CanReactivate() error {
	if !t.Status.CanTransitionTo(TenantStatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	return nil
}

func (t *Tenant) ApplyReactivation(now time.Time) {
	t.Status = TenantStatusActive
	t.UpdatedAt = now
}

func NewTenant(tenantID id.TenantID, name string, now time.Time) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	return &Tenant{
		ID:        tenantID,
		Name:      name,
		Status:    TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// User is a tenant member who can author documents and receive
// notifications. Inactive users are skipped by tenant-wide broadcasts.
type User struct {
	ID        id.UserID   `json:"id"`
	TenantID  id.TenantID `json:"tenant_id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// Contract groups documents and owns the distribution rules that route
// their approval notifications.
type Contract struct {
	ID        id.ContractID `json:"id"`
	TenantID  id.TenantID   `json:"tenant_id"`
	Code      string        `json:"code"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
}
