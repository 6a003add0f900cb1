package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"doccontrol/internal/notification/models"
	"doccontrol/internal/platform/postgres"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/tx"
)

// PostgresStore keeps notifications in the notifications table. The
// document reference is a real foreign key that the database nulls when the
// document is purged.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, n *models.Notification) error {
	var docID uuid.NullUUID
	if n.DocumentID != nil {
		docID = uuid.NullUUID{UUID: uuid.UUID(*n.DocumentID), Valid: true}
	}
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO notifications (id, tenant_id, user_id, document_id, title, body, read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(n.ID), uuid.UUID(n.TenantID), uuid.UUID(n.UserID), docID,
		n.Title, n.Body, n.Read, n.ReadAt, n.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, tenantID id.TenantID, userID id.UserID, unreadOnly bool) ([]*models.Notification, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, tenant_id, user_id, document_id, title, body, read, read_at, created_at
		FROM notifications
		WHERE tenant_id = $1 AND user_id = $2 AND (NOT $3 OR read = FALSE)
		ORDER BY created_at DESC, id`,
		uuid.UUID(tenantID), uuid.UUID(userID), unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	var out []*models.Notification
	for rows.Next() {
		var (
			n      models.Notification
			docID  uuid.NullUUID
			readAt sql.NullTime
		)
		if err := rows.Scan((*uuid.UUID)(&n.ID), (*uuid.UUID)(&n.TenantID), (*uuid.UUID)(&n.UserID),
			&docID, &n.Title, &n.Body, &n.Read, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if docID.Valid {
			d := id.DocumentID(docID.UUID)
			n.DocumentID = &d
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountUnread(ctx context.Context, tenantID id.TenantID, userID id.UserID) (int, error) {
	var count int
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT count(*) FROM notifications
		WHERE tenant_id = $1 AND user_id = $2 AND read = FALSE`,
		uuid.UUID(tenantID), uuid.UUID(userID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, tenantID id.TenantID, userID id.UserID, ids []id.NotificationID, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]string, len(ids))
	for i, nid := range ids {
		raw[i] = nid.String()
	}
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $4
		WHERE tenant_id = $1 AND user_id = $2 AND id = ANY($3::uuid[]) AND read = FALSE`,
		uuid.UUID(tenantID), uuid.UUID(userID), pq.Array(raw), now)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return affected(res)
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, tenantID id.TenantID, userID id.UserID, now time.Time) (int, error) {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $3
		WHERE tenant_id = $1 AND user_id = $2 AND read = FALSE`,
		uuid.UUID(tenantID), uuid.UUID(userID), now)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return affected(res)
}

func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID, userID id.UserID, nid id.NotificationID) (bool, error) {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		DELETE FROM notifications WHERE tenant_id = $1 AND user_id = $2 AND id = $3`,
		uuid.UUID(tenantID), uuid.UUID(userID), uuid.UUID(nid))
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (s *PostgresStore) DeleteAllRead(ctx context.Context, tenantID id.TenantID, userID id.UserID) (int, error) {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		DELETE FROM notifications WHERE tenant_id = $1 AND user_id = $2 AND read = TRUE`,
		uuid.UUID(tenantID), uuid.UUID(userID))
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	return affected(res)
}

// DetachDocument clears references to docID. After a purge the foreign key
// has already done this and no rows change.
func (s *PostgresStore) DetachDocument(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) (int, error) {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE notifications SET document_id = NULL WHERE tenant_id = $1 AND document_id = $2`,
		uuid.UUID(tenantID), uuid.UUID(docID))
	if err != nil {
		return 0, fmt.Errorf("detach document: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
