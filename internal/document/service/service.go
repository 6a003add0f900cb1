// Package service implements the revision ledger: creating documents,
// appending revisions, moving them through the approval table and triggering
// distribution when a revision is approved.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	docmetrics "doccontrol/internal/document/metrics"
	"doccontrol/internal/document/models"
	notifmodels "doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	audit "doccontrol/pkg/platform/audit"
	"doccontrol/pkg/platform/lock"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/requestcontext"
)

// Store persists documents together with their revisions and approval
// events. Every mutating method is atomic.
type Store interface {
	Create(ctx context.Context, doc *models.Document, event *models.ApprovalEvent) error
	FindByID(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) (*models.Document, error)
	List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Document, error)
	AppendRevision(ctx context.Context, doc *models.Document, rev *models.Revision, event *models.ApprovalEvent) error
	SaveTransition(ctx context.Context, doc *models.Document, event *models.ApprovalEvent) error
	SetDeleted(ctx context.Context, doc *models.Document) error
	Purge(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) error
	ListEvents(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) ([]*models.ApprovalEvent, error)
}

// Directory answers tenant membership questions.
type Directory interface {
	RequireActiveTenant(ctx context.Context, tenantID id.TenantID) error
	RequireMember(ctx context.Context, tenantID id.TenantID, userID id.UserID) error
	RequireContract(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) error
}

// Dispatcher fans an approval out to the users subscribed to its area.
type Dispatcher interface {
	NotifyRelevantUsers(ctx context.Context, ref notifmodels.DocumentRef) (notifmodels.DispatchResult, error)
}

// TextExtractor turns an attachment into searchable text. It never fails;
// implementations return a placeholder instead.
type TextExtractor interface {
	ExtractText(ctx context.Context, link, name, mimeType string) string
}

// NotificationLinks drops the document reference from notifications when a
// document is purged.
type NotificationLinks interface {
	DetachDocument(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the revision ledger.
type Service struct {
	store      Store
	directory  Directory
	locker     lock.Locker
	dispatcher Dispatcher
	extractor  TextExtractor
	links      NotificationLinks
	auditor    AuditPublisher
	metrics    *docmetrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *docmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithDispatcher enables notifications on approval.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

func WithTextExtractor(e TextExtractor) Option {
	return func(s *Service) {
		s.extractor = e
	}
}

func WithNotificationLinks(l NotificationLinks) Option {
	return func(s *Service) {
		s.links = l
	}
}

// WithLocker replaces the in-process lock, e.g. with a Redis lock shared by
// several instances.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func New(store Store, directory Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		tracer:    otel.Tracer("doccontrol/document"),
	}
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

// authorize rejects anonymous callers and callers whose tenant is inactive.
func (s *Service) authorize(ctx context.Context, p id.Principal) error {
	if !p.Authenticated() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.directory.RequireActiveTenant(ctx, p.TenantID)
}

func documentLockKey(docID id.DocumentID) string {
	return "document:" + docID.String()
}

func (s *Service) lockDocument(ctx context.Context, docID id.DocumentID) (lock.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, documentLockKey(docID))
	if err != nil {
		if errors.Is(err, sentinel.ErrLockNotAcquired) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "document is busy, try again")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock document")
	}
	return unlock, nil
}

// loadLive returns a document that has not been soft-deleted.
func (s *Service) loadLive(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.store.FindByID(ctx, tenantID, docID)
	if err != nil {
		return nil, wrapDocumentErr(err, "load document")
	}
	if doc.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	return doc, nil
}

func wrapDocumentErr(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Validation("document code already exists", map[string]string{"code": "duplicate"})
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, p id.Principal, doc *models.Document, reason string, count int) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		TenantID:  doc.TenantID,
		ActorID:   p.UserID,
		Subject:   doc.ID.String(),
		Action:    string(action),
		Status:    string(doc.Status),
		Reason:    reason,
		Count:     count,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(action),
			"document_id", doc.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
