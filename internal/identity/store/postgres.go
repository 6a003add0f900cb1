package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"doccontrol/internal/identity/models"
	"doccontrol/internal/platform/postgres"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/platform/tx"
)

// PostgresStore persists the tenant directory in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateTenant(ctx context.Context, t *models.Tenant) error {
	var exists bool
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE lower(name) = lower($1))`, t.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check tenant name: %w", err)
	}
	if exists {
		return sentinel.ErrAlreadyUsed
	}
	_, err = tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tenants (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(t.ID), t.Name, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	var (
		t      models.Tenant
		status string
	)
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, name, status, created_at, updated_at FROM tenants WHERE id = $1`,
		uuid.UUID(tenantID)).Scan((*uuid.UUID)(&t.ID), &t.Name, &status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	t.Status = models.TenantStatus(status)
	return &t, nil
}

func (s *PostgresStore) UpdateTenant(ctx context.Context, t *models.Tenant) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE tenants SET name = $2, status = $3, updated_at = $4 WHERE id = $1`,
		uuid.UUID(t.ID), t.Name, string(t.Status), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(u.ID), uuid.UUID(u.TenantID), u.Email, u.Name, u.Active, u.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindUsers(ctx context.Context, tenantID id.TenantID, userIDs []id.UserID) ([]*models.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(userIDs))
	for i, u := range userIDs {
		ids[i] = u.String()
	}
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, tenant_id, email, name, active, created_at
		FROM users WHERE tenant_id = $1 AND id = ANY($2::uuid[])`,
		uuid.UUID(tenantID), pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return scanUsers(rows)
}

func (s *PostgresStore) ListActiveUsers(ctx context.Context, tenantID id.TenantID) ([]*models.User, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, tenant_id, email, name, active, created_at
		FROM users WHERE tenant_id = $1 AND active ORDER BY email`,
		uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return scanUsers(rows)
}

func (s *PostgresStore) CreateContract(ctx context.Context, c *models.Contract) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO contracts (id, tenant_id, code, name, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(c.ID), uuid.UUID(c.TenantID), c.Code, c.Name, c.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindContract(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) (*models.Contract, error) {
	var c models.Contract
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, tenant_id, code, name, created_at FROM contracts
		WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(tenantID), uuid.UUID(contractID)).
		Scan((*uuid.UUID)(&c.ID), (*uuid.UUID)(&c.TenantID), &c.Code, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find contract: %w", err)
	}
	return &c, nil
}

func scanUsers(rows *sql.Rows) ([]*models.User, error) {
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan((*uuid.UUID)(&u.ID), (*uuid.UUID)(&u.TenantID), &u.Email, &u.Name, &u.Active, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}
