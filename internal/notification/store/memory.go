package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
)

// InMemory holds notifications in a single map guarded by a mutex. Every
// query filters on (tenant, user).
type InMemory struct {
	mu    sync.RWMutex
	items map[id.NotificationID]*models.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[id.NotificationID]*models.Notification)}
}

func (s *InMemory) Create(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[n.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.items[n.ID] = clone(n)
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (s *InMemory) ListByUser(_ context.Context, tenantID id.TenantID, userID id.UserID, unreadOnly bool) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.items {
		if !owned(n, tenantID, userID) || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, clone(n))
	}
	slices.SortFunc(out, func(a, b *models.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *InMemory) CountUnread(_ context.Context, tenantID id.TenantID, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.items {
		if owned(n, tenantID, userID) && !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flips the listed notifications the user owns and reports how many
// changed. Unknown, foreign and already-read ids are skipped.
func (s *InMemory) MarkRead(_ context.Context, tenantID id.TenantID, userID id.UserID, ids []id.NotificationID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, nid := range ids {
		n, ok := s.items[nid]
		if !ok || !owned(n, tenantID, userID) {
			continue
		}
		if n.MarkRead(now) {
			changed++
		}
	}
	return changed, nil
}

func (s *InMemory) MarkAllRead(_ context.Context, tenantID id.TenantID, userID id.UserID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, n := range s.items {
		if owned(n, tenantID, userID) && n.MarkRead(now) {
			changed++
		}
	}
	return changed, nil
}

// Delete removes one notification. It reports false when there was nothing
// to delete.
func (s *InMemory) Delete(_ context.Context, tenantID id.TenantID, userID id.UserID, nid id.NotificationID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[nid]
	if !ok || !owned(n, tenantID, userID) {
		return false, nil
	}
	delete(s.items, nid)
	return true, nil
}

func (s *InMemory) DeleteAllRead(_ context.Context, tenantID id.TenantID, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for nid, n := range s.items {
		if owned(n, tenantID, userID) && n.Read {
			delete(s.items, nid)
			deleted++
		}
	}
	return deleted, nil
}

// DetachDocument clears the document reference of every notification that
// points at docID, mirroring ON DELETE SET NULL.
func (s *InMemory) DetachDocument(_ context.Context, tenantID id.TenantID, docID id.DocumentID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	detached := 0
	for _, n := range s.items {
		if n.TenantID == tenantID && n.DocumentID != nil && *n.DocumentID == docID {
			n.DocumentID = nil
			detached++
		}
	}
	return detached, nil
}

func owned(n *models.Notification, tenantID id.TenantID, userID id.UserID) bool {
	return n.TenantID == tenantID && n.UserID == userID
}

func clone(n *models.Notification) *models.Notification {
	cp := *n
	if n.DocumentID != nil {
		d := *n.DocumentID
		cp.DocumentID = &d
	}
	if n.ReadAt != nil {
		t := *n.ReadAt
		cp.ReadAt = &t
	}
	return &cp
}
