// Package service answers the directory questions the document-control
// services ask: is this tenant active, who belongs to it, does this contract
// exist.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"doccontrol/internal/identity/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/platform/sentinel"
	pstrings "doccontrol/pkg/platform/strings"
	"doccontrol/pkg/requestcontext"
)

type TenantStore interface {
	FindTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, t *models.Tenant) error
}

type UserStore interface {
	FindUsers(ctx context.Context, tenantID id.TenantID, userIDs []id.UserID) ([]*models.User, error)
	ListActiveUsers(ctx context.Context, tenantID id.TenantID) ([]*models.User, error)
}

type ContractStore interface {
	FindContract(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error)
}

// Service is the read side of the tenant directory.
type Service struct {
	tenants   TenantStore
	users     UserStore
	contracts ContractStore
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(tenants TenantStore, users UserStore, contracts ContractStore, opts ...Option) *Service {
	s := &Service{tenants: tenants, users: users, contracts: contracts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequireActiveTenant fails with forbidden when the tenant is unknown or
// inactive.
func (s *Service) RequireActiveTenant(ctx context.Context, tenantID id.TenantID) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "tenant is required")
	}
	t, err := s.tenants.FindTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "tenant is not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	if !t.IsActive() {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "operation refused for inactive tenant",
				"tenant_id", tenantID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return dErrors.New(dErrors.CodeForbidden, "tenant is inactive")
	}
	return nil
}

// RequireMember fails with not_found when userID is not part of tenantID.
func (s *Service) RequireMember(ctx context.Context, tenantID id.TenantID, userID id.UserID) error {
	_, err := s.ResolveTenantUsers(ctx, tenantID, []id.UserID{userID})
	return err
}

// ResolveTenantUsers dedupes userIDs and checks each belongs to tenantID.
// Any foreign or unknown id fails the whole call with not_found.
func (s *Service) ResolveTenantUsers(ctx context.Context, tenantID id.TenantID, userIDs []id.UserID) ([]id.UserID, error) {
	wanted := pstrings.Dedupe(userIDs)
	if len(wanted) == 0 {
		return nil, nil
	}
	found, err := s.users.FindUsers(ctx, tenantID, wanted)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load users")
	}
	members := make(map[id.UserID]struct{}, len(found))
	for _, u := range found {
		members[u.ID] = struct{}{}
	}
	for _, uid := range wanted {
		if _, ok := members[uid]; !ok {
			return nil, dErrors.New(dErrors.CodeNotFound, "user "+uid.String()+" not found in tenant").
				WithField("user_ids", "unknown")
		}
	}
	return wanted, nil
}

// ActiveUserIDs lists every active member of the tenant.
func (s *Service) ActiveUserIDs(ctx context.Context, tenantID id.TenantID) ([]id.UserID, error) {
	users, err := s.users.ListActiveUsers(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	out := make([]id.UserID, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out, nil
}

// RequireContract fails with not_found when the contract is not in the tenant.
func (s *Service) RequireContract(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) error {
	if _, err := s.contracts.FindContract(ctx, tenantID, contractID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "contract not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}
	return nil
}

// DeactivateTenant blocks every core operation for the tenant.
func (s *Service) DeactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.changeTenantStatus(ctx, tenantID, (*models.Tenant).CanDeactivate, (*models.Tenant).ApplyDeactivation)
}

// ReactivateTenant lifts a deactivation.
func (s *Service) ReactivateTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.changeTenantStatus(ctx, tenantID, (*models.Tenant).CanReactivate, (*models.Tenant).ApplyReactivation)
}

func (s *Service) changeTenantStatus(
	ctx context.Context,
	tenantID id.TenantID,
	check func(*models.Tenant) error,
	apply func(*models.Tenant, time.Time),
) (*models.Tenant, error) {
	t, err := s.tenants.FindTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
	}
	if err := check(t); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, err.Error())
	}
	apply(t, requestcontext.Now(ctx))
	if err := s.tenants.UpdateTenant(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	return t, nil
}
