package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	notifmetrics "doccontrol/internal/notification/metrics"
	"doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	audit "doccontrol/pkg/platform/audit"
	"doccontrol/pkg/requestcontext"
)

// NotifyRelevantUsers creates one notification per subscriber of the
// document's contract area. A recipient whose write fails is logged and
// counted; the others still get theirs. The error is non-nil only when the
// recipients could not be resolved at all.
func (s *Service) NotifyRelevantUsers(ctx context.Context, ref models.DocumentRef) (models.DispatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "notification.NotifyRelevantUsers", trace.WithAttributes(
		attribute.String("document.id", ref.DocumentID.String()),
		attribute.String("document.area", ref.Area),
	))
	defer span.End()

	recipients, err := s.resolver.Resolve(ctx, ref.TenantID, ref.ContractID, ref.Area)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve recipients")
		return models.DispatchResult{}, dErrors.Wrap(err, dErrors.CodeDispatchPartial, "failed to resolve recipients")
	}

	docID := ref.DocumentID
	res := s.fanOut(ctx, notifmetrics.SourceApproval, ref.TenantID, recipients, models.ApprovalContent(ref), &docID)
	span.SetAttributes(
		attribute.Int("notifications.sent", res.Sent),
		attribute.Int("notifications.failed", res.Failed),
	)

	s.logger.InfoContext(ctx, "approval notifications dispatched",
		"document_id", ref.DocumentID.String(),
		"recipients", res.Recipients,
		"sent", res.Sent,
		"failed", res.Failed,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventNotificationsDispatched, ref.TenantID, ref.ActorID, ref.DocumentID.String(), res.Sent)
	return res, nil
}

// SendNotification broadcasts content to every active user of the tenant or
// to an explicit list of its users.
func (s *Service) SendNotification(ctx context.Context, p id.Principal, target models.TargetType, content models.Content, userIDs []id.UserID) (models.DispatchResult, error) {
	if err := s.authorize(ctx, p); err != nil {
		return models.DispatchResult{}, err
	}
	if !p.Can(id.PermissionBroadcast) {
		return models.DispatchResult{}, dErrors.New(dErrors.CodeForbidden, "broadcasting requires the notifications:broadcast permission")
	}
	if err := content.Validate(); err != nil {
		return models.DispatchResult{}, err
	}

	var (
		recipients []id.UserID
		err        error
	)
	switch target {
	case models.TargetAllTenantUsers:
		recipients, err = s.directory.ActiveUserIDs(ctx, p.TenantID)
	case models.TargetSpecificUsers:
		if len(userIDs) == 0 {
			return models.DispatchResult{}, dErrors.Validation("recipients are required",
				map[string]string{"user_ids": "required"})
		}
		recipients, err = s.directory.ResolveTenantUsers(ctx, p.TenantID, userIDs)
	default:
		return models.DispatchResult{}, dErrors.New(dErrors.CodeValidation, "unknown target type").
			WithField("target_type", "invalid")
	}
	if err != nil {
		return models.DispatchResult{}, err
	}

	res := s.fanOut(ctx, notifmetrics.SourceBroadcast, p.TenantID, recipients, content, nil)
	s.logger.InfoContext(ctx, "notification broadcast",
		"target", string(target),
		"recipients", res.Recipients,
		"sent", res.Sent,
		"failed", res.Failed,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.EventNotificationBroadcast, p.TenantID, p.UserID, string(target), res.Sent)
	return res, nil
}

// fanOut writes one row per recipient on a bounded pool. Workers never
// return errors so one failed recipient cannot cancel the rest.
func (s *Service) fanOut(
	ctx context.Context,
	source string,
	tenantID id.TenantID,
	recipients []id.UserID,
	content models.Content,
	docID *id.DocumentID,
) models.DispatchResult {
	start := time.Now()
	now := requestcontext.Now(ctx)

	var sent, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, userID := range recipients {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, s.recipientTimeout)
			defer cancel()
			n := &models.Notification{
				ID:         id.NewNotificationID(),
				TenantID:   tenantID,
				UserID:     userID,
				DocumentID: docID,
				Title:      content.Title,
				Body:       content.Body,
				CreatedAt:  now,
			}
			if err := s.store.Create(rctx, n); err != nil {
				failed.Add(1)
				if s.metrics != nil {
					s.metrics.IncrementFailed(source)
				}
				s.logger.ErrorContext(ctx, "failed to create notification",
					"user_id", userID.String(),
					"source", source,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				return nil
			}
			sent.Add(1)
			if s.metrics != nil {
				s.metrics.IncrementCreated(source)
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.metrics != nil {
		s.metrics.ObserveDispatch(source, start, len(recipients))
	}
	return models.DispatchResult{
		Recipients: len(recipients),
		Sent:       int(sent.Load()),
		Failed:     int(failed.Load()),
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, tenantID id.TenantID, actor id.UserID, subject string, count int) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		TenantID:  tenantID,
		ActorID:   actor,
		Subject:   subject,
		Action:    string(action),
		Count:     count,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", string(action), "error", err)
	}
}
