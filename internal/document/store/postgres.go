package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"doccontrol/internal/document/models"
	"doccontrol/internal/platform/postgres"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/tx"
)

// PostgresStore persists the revision ledger. Every mutating call writes the
// document header, the revision and the approval event in one transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `id, tenant_id, code, title, area, contract_id, responsible_id,
	elaboration_date, status, current_revision_id, status_changed_at, created_at, deleted_at`

const revisionColumns = `id, seq, label, created_at, author_id, observation,
	attachment_link, attachment_name, attachment_size, attachment_type, content, status,
	designated_approver_id, approved_by, approved_at, approver_observation`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document, event *models.ApprovalEvent) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
			INSERT INTO documents (`+documentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			uuid.UUID(doc.ID), uuid.UUID(doc.TenantID), doc.Code, doc.Title, doc.Area,
			uuid.UUID(doc.ContractID), uuid.UUID(doc.ResponsibleID), doc.ElaborationDate,
			string(doc.Status), uuid.UUID(doc.CurrentRevisionID), doc.StatusChangedAt,
			doc.CreatedAt, nullTime(doc.DeletedAt))
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrAlreadyUsed
			}
			return fmt.Errorf("insert document: %w", err)
		}
		for _, rev := range doc.Revisions {
			if err := s.insertRevision(ctx, doc.ID, rev); err != nil {
				return err
			}
		}
		return s.insertEvent(ctx, event)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) (*models.Document, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(tenantID), uuid.UUID(docID))
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}

	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions WHERE document_id = $1 ORDER BY seq`,
		uuid.UUID(docID))
	if err != nil {
		return nil, fmt.Errorf("load revisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		doc.Revisions = append(doc.Revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load revisions: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Document, error) {
	where := []string{"tenant_id = $1"}
	args := []any{uuid.UUID(tenantID)}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if filter.Area != "" {
		add("area = $%d", filter.Area)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.ContractID != nil {
		add("contract_id = $%d", uuid.UUID(*filter.ContractID))
	}

	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE `+strings.Join(where, " AND ")+` ORDER BY code`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendRevision(ctx context.Context, doc *models.Document, rev *models.Revision, event *models.ApprovalEvent) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.insertRevision(ctx, doc.ID, rev); err != nil {
			return err
		}
		if err := s.updateHeader(ctx, doc); err != nil {
			return err
		}
		return s.insertEvent(ctx, event)
	})
}

func (s *PostgresStore) SaveTransition(ctx context.Context, doc *models.Document, event *models.ApprovalEvent) error {
	cur, err := doc.CurrentRevision()
	if err != nil {
		return err
	}
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
			UPDATE revisions
			SET status = $2, approved_by = $3, approved_at = $4, approver_observation = $5
			WHERE id = $1`,
			uuid.UUID(cur.ID), string(cur.Status), nullUserID(cur.ApprovedBy),
			nullTime(cur.ApprovedAt), cur.ApproverObservation)
		if err != nil {
			return fmt.Errorf("update revision: %w", err)
		}
		if err := s.updateHeader(ctx, doc); err != nil {
			return err
		}
		return s.insertEvent(ctx, event)
	})
}

func (s *PostgresStore) SetDeleted(ctx context.Context, doc *models.Document) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE documents SET deleted_at = $3 WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(doc.TenantID), uuid.UUID(doc.ID), nullTime(doc.DeletedAt))
	if err != nil {
		return fmt.Errorf("update deletion: %w", err)
	}
	return requireRow(res)
}

// Purge removes the document; revisions and events cascade and notifications
// keep their rows with a null document reference.
func (s *PostgresStore) Purge(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM documents WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(tenantID), uuid.UUID(docID))
	if err != nil {
		return fmt.Errorf("purge document: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ListEvents(ctx context.Context, tenantID id.TenantID, docID id.DocumentID) ([]*models.ApprovalEvent, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT e.document_id, e.revision_label, e.actor_id, e.status, e.observation, e.occurred_at
		FROM approval_events e
		JOIN documents d ON d.id = e.document_id
		WHERE d.tenant_id = $1 AND d.id = $2
		ORDER BY e.id`,
		uuid.UUID(tenantID), uuid.UUID(docID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var out []*models.ApprovalEvent
	for rows.Next() {
		var (
			ev     models.ApprovalEvent
			status string
		)
		if err := rows.Scan((*uuid.UUID)(&ev.DocumentID), &ev.RevisionLabel, (*uuid.UUID)(&ev.ActorID),
			&status, &ev.Observation, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Status = models.Status(status)
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		// Every live document has at least its creation event.
		return nil, sentinel.ErrNotFound
	}
	return out, nil
}

func (s *PostgresStore) insertRevision(ctx context.Context, docID id.DocumentID, rev *models.Revision) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO revisions (document_id, `+revisionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		uuid.UUID(docID), uuid.UUID(rev.ID), rev.Seq, rev.Label, rev.CreatedAt,
		uuid.UUID(rev.AuthorID), rev.Observation,
		rev.Attachment.Link, rev.Attachment.Name, rev.Attachment.Size, rev.Attachment.Type,
		rev.Content, string(rev.Status), nullUserID(rev.DesignatedApprover),
		nullUserID(rev.ApprovedBy), nullTime(rev.ApprovedAt), rev.ApproverObservation)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

func (s *PostgresStore) updateHeader(ctx context.Context, doc *models.Document) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE documents SET status = $3, current_revision_id = $4, status_changed_at = $5
		WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(doc.TenantID), uuid.UUID(doc.ID), string(doc.Status),
		uuid.UUID(doc.CurrentRevisionID), doc.StatusChangedAt)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) insertEvent(ctx context.Context, ev *models.ApprovalEvent) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO approval_events (document_id, revision_label, actor_id, status, observation, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(ev.DocumentID), ev.RevisionLabel, uuid.UUID(ev.ActorID),
		string(ev.Status), ev.Observation, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert approval event: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc     models.Document
		status  string
		deleted sql.NullTime
	)
	err := row.Scan((*uuid.UUID)(&doc.ID), (*uuid.UUID)(&doc.TenantID), &doc.Code, &doc.Title,
		&doc.Area, (*uuid.UUID)(&doc.ContractID), (*uuid.UUID)(&doc.ResponsibleID),
		&doc.ElaborationDate, &status, (*uuid.UUID)(&doc.CurrentRevisionID),
		&doc.StatusChangedAt, &doc.CreatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	doc.Status = models.Status(status)
	if deleted.Valid {
		doc.DeletedAt = &deleted.Time
	}
	return &doc, nil
}

func scanRevision(row scanner) (*models.Revision, error) {
	var (
		rev        models.Revision
		status     string
		approver   uuid.NullUUID
		approvedBy uuid.NullUUID
		approvedAt sql.NullTime
	)
	err := row.Scan((*uuid.UUID)(&rev.ID), &rev.Seq, &rev.Label, &rev.CreatedAt,
		(*uuid.UUID)(&rev.AuthorID), &rev.Observation,
		&rev.Attachment.Link, &rev.Attachment.Name, &rev.Attachment.Size, &rev.Attachment.Type,
		&rev.Content, &status, &approver, &approvedBy, &approvedAt, &rev.ApproverObservation)
	if err != nil {
		return nil, fmt.Errorf("scan revision: %w", err)
	}
	rev.Status = models.Status(status)
	rev.DesignatedApprover = userIDPtr(approver)
	rev.ApprovedBy = userIDPtr(approvedBy)
	if approvedAt.Valid {
		rev.ApprovedAt = &approvedAt.Time
	}
	return &rev, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullUserID(u *id.UserID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*u), Valid: true}
}

func userIDPtr(n uuid.NullUUID) *id.UserID {
	if !n.Valid {
		return nil
	}
	u := id.UserID(n.UUID)
	return &u
}
