// Package service resolves who must hear about a document and lets admins
// maintain the per-contract subscription rules behind that answer.
package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"doccontrol/internal/distribution/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	audit "doccontrol/pkg/platform/audit"
	"doccontrol/pkg/platform/lock"
	"doccontrol/pkg/platform/sentinel"
	pstrings "doccontrol/pkg/platform/strings"
	"doccontrol/pkg/requestcontext"
)

type Store interface {
	ListByContract(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) ([]*models.Rule, error)
	ListSubscribers(ctx context.Context, tenantID id.TenantID, contractID id.ContractID, area string) ([]id.UserID, error)
	Upsert(ctx context.Context, rules []*models.Rule) error
}

type Directory interface {
	RequireActiveTenant(ctx context.Context, tenantID id.TenantID) error
	RequireContract(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) error
	ResolveTenantUsers(ctx context.Context, tenantID id.TenantID, userIDs []id.UserID) ([]id.UserID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store     Store
	directory Directory
	locker    lock.Locker
	auditor   AuditPublisher
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func New(store Store, directory Directory, opts ...Option) *Service {
	s := &Service{store: store, directory: directory}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = lock.NewSharded()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Resolve returns the users subscribed to area on the contract, deduplicated.
// Users without a rule for the contract are never included.
func (s *Service) Resolve(ctx context.Context, tenantID id.TenantID, contractID id.ContractID, area string) ([]id.UserID, error) {
	users, err := s.store.ListSubscribers(ctx, tenantID, contractID, area)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve recipients")
	}
	return pstrings.Dedupe(users), nil
}

// GetRules lists the contract's rules.
func (s *Service) GetRules(ctx context.Context, p id.Principal, contractID id.ContractID) ([]*models.Rule, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	if err := s.directory.RequireContract(ctx, p.TenantID, contractID); err != nil {
		return nil, err
	}
	rules, err := s.store.ListByContract(ctx, p.TenantID, contractID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rules")
	}
	return rules, nil
}

// SaveRules replaces the area set of every user named in rulesByUser. Users
// not named keep their rules. Saves on the same contract are serialized and
// the last one wins.
func (s *Service) SaveRules(ctx context.Context, p id.Principal, contractID id.ContractID, rulesByUser map[id.UserID][]string) ([]*models.Rule, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	if !p.Can(id.PermissionManageRules) {
		return nil, dErrors.New(dErrors.CodeForbidden, "managing distribution rules requires the distribution:manage permission")
	}
	if err := s.directory.RequireContract(ctx, p.TenantID, contractID); err != nil {
		return nil, err
	}
	userIDs := slices.SortedFunc(maps.Keys(rulesByUser), func(a, b id.UserID) int {
		return cmp.Compare(a.String(), b.String())
	})
	if _, err := s.directory.ResolveTenantUsers(ctx, p.TenantID, userIDs); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, "contract:"+contractID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrLockNotAcquired) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "rules are being saved, try again")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock contract")
	}
	defer unlock()

	now := requestcontext.Now(ctx)
	rules := make([]*models.Rule, 0, len(userIDs))
	for _, uid := range userIDs {
		areas := pstrings.NormalizeAreas(rulesByUser[uid])
		if areas == nil {
			areas = []string{}
		}
		rules = append(rules, &models.Rule{
			TenantID:   p.TenantID,
			ContractID: contractID,
			UserID:     uid,
			Areas:      areas,
			UpdatedAt:  now,
		})
	}
	if err := s.store.Upsert(ctx, rules); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save rules")
	}

	s.logger.InfoContext(ctx, "distribution rules saved",
		"contract_id", contractID.String(),
		"users", len(rules),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			TenantID:  p.TenantID,
			ActorID:   p.UserID,
			Subject:   contractID.String(),
			Action:    string(audit.EventDistributionRulesSaved),
			Count:     len(rules),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
		}
	}

	saved, err := s.store.ListByContract(ctx, p.TenantID, contractID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rules")
	}
	return saved, nil
}

func (s *Service) authorize(ctx context.Context, p id.Principal) error {
	if !p.Authenticated() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.directory.RequireActiveTenant(ctx, p.TenantID)
}
