// Package service creates user notifications, either for the subscribers of
// an approved document or as an admin broadcast, and serves each user's
// inbox.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	notifmetrics "doccontrol/internal/notification/metrics"
	"doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	audit "doccontrol/pkg/platform/audit"
)

const (
	defaultWorkers          = 8
	defaultRecipientTimeout = 2 * time.Second
)

// Store persists notifications. Every read and write is scoped to one
// (tenant, user) pair except Create and DetachDocument.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, tenantID id.TenantID, userID id.UserID, unreadOnly bool) ([]*models.Notification, error)
	CountUnread(ctx context.Context, tenantID id.TenantID, userID id.UserID) (int, error)
	MarkRead(ctx context.Context, tenantID id.TenantID, userID id.UserID, ids []id.NotificationID, now time.Time) (int, error)
	MarkAllRead(ctx context.Context, tenantID id.TenantID, userID id.UserID, now time.Time) (int, error)
	Delete(ctx context.Context, tenantID id.TenantID, userID id.UserID, nid id.NotificationID) (bool, error)
	DeleteAllRead(ctx context.Context, tenantID id.TenantID, userID id.UserID) (int, error)
	DetachDocument(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) (int, error)
}

// Resolver computes the subscribers of a contract area.
type Resolver interface {
	Resolve(ctx context.Context, tenantID id.TenantID, contractID id.ContractID, area string) ([]id.UserID, error)
}

type Directory interface {
	RequireActiveTenant(ctx context.Context, tenantID id.TenantID) error
	ResolveTenantUsers(ctx context.Context, tenantID id.TenantID, userIDs []id.UserID) ([]id.UserID, error)
	ActiveUserIDs(ctx context.Context, tenantID id.TenantID) ([]id.UserID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store            Store
	resolver         Resolver
	directory        Directory
	workers          int
	recipientTimeout time.Duration
	auditor          AuditPublisher
	metrics          *notifmetrics.Metrics
	logger           *slog.Logger
	tracer           trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *notifmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithWorkers bounds how many notification rows are written concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRecipientTimeout bounds each recipient's write.
func WithRecipientTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recipientTimeout = d
		}
	}
}

func New(store Store, resolver Resolver, directory Directory, opts ...Option) *Service {
	s := &Service{
		store:            store,
		resolver:         resolver,
		directory:        directory,
		workers:          defaultWorkers,
		recipientTimeout: defaultRecipientTimeout,
		tracer:           otel.Tracer("doccontrol/notification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

func (s *Service) authorize(ctx context.Context, p id.Principal) error {
	if !p.Authenticated() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.directory.RequireActiveTenant(ctx, p.TenantID)
}
