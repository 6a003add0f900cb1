package service

import (
	"context"

	"doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/requestcontext"
)

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, p id.Principal, unreadOnly bool) ([]*models.Notification, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	items, err := s.store.ListByUser(ctx, p.TenantID, p.UserID, unreadOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return items, nil
}

func (s *Service) UnreadCount(ctx context.Context, p id.Principal) (int, error) {
	if err := s.authorize(ctx, p); err != nil {
		return 0, err
	}
	count, err := s.store.CountUnread(ctx, p.TenantID, p.UserID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks the caller's listed notifications read. Ids that are
// unknown, already read or owned by someone else are ignored.
func (s *Service) MarkRead(ctx context.Context, p id.Principal, ids []id.NotificationID) (int, error) {
	if err := s.authorize(ctx, p); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, dErrors.Validation("ids are required", map[string]string{"ids": "required"})
	}
	changed, err := s.store.MarkRead(ctx, p.TenantID, p.UserID, ids, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	return changed, nil
}

func (s *Service) MarkAllRead(ctx context.Context, p id.Principal) (int, error) {
	if err := s.authorize(ctx, p); err != nil {
		return 0, err
	}
	changed, err := s.store.MarkAllRead(ctx, p.TenantID, p.UserID, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	return changed, nil
}

// Delete removes one of the caller's notifications. Deleting something that
// is already gone succeeds.
func (s *Service) Delete(ctx context.Context, p id.Principal, nid id.NotificationID) error {
	if err := s.authorize(ctx, p); err != nil {
		return err
	}
	if _, err := s.store.Delete(ctx, p.TenantID, p.UserID, nid); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete notification")
	}
	return nil
}

func (s *Service) DeleteAllRead(ctx context.Context, p id.Principal) (int, error) {
	if err := s.authorize(ctx, p); err != nil {
		return 0, err
	}
	deleted, err := s.store.DeleteAllRead(ctx, p.TenantID, p.UserID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete read notifications")
	}
	return deleted, nil
}

// DetachDocument drops references to a purged document.
func (s *Service) DetachDocument(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) (int, error) {
	n, err := s.store.DetachDocument(ctx, tenantID, docID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach notifications")
	}
	return n, nil
}
