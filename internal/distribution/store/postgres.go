package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"doccontrol/internal/distribution/models"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/tx"
)

// PostgresStore keeps rules in distribution_rules, one row per
// (tenant, contract, user) with the areas as a text array.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListByContract(ctx context.Context, tenantID id.TenantID, contractID id.ContractID) ([]*models.Rule, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT user_id, areas, updated_at
		FROM distribution_rules
		WHERE tenant_id = $1 AND contract_id = $2
		ORDER BY user_id`,
		uuid.UUID(tenantID), uuid.UUID(contractID))
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	var out []*models.Rule
	for rows.Next() {
		r := &models.Rule{TenantID: tenantID, ContractID: contractID}
		var areas pq.StringArray
		if err := rows.Scan((*uuid.UUID)(&r.UserID), &areas, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.Areas = []string(areas)
		if r.Areas == nil {
			r.Areas = []string{}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListSubscribers filters in SQL so only matching rows leave the database.
func (s *PostgresStore) ListSubscribers(ctx context.Context, tenantID id.TenantID, contractID id.ContractID, area string) ([]id.UserID, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT DISTINCT user_id
		FROM distribution_rules
		WHERE tenant_id = $1 AND contract_id = $2 AND $3 = ANY(areas)
		ORDER BY user_id`,
		uuid.UUID(tenantID), uuid.UUID(contractID), area)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()
	var out []id.UserID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, id.UserID(u))
	}
	return out, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, rules []*models.Rule) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		for _, r := range rules {
			areas := r.Areas
			if areas == nil {
				areas = []string{}
			}
			_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
				INSERT INTO distribution_rules (tenant_id, contract_id, user_id, areas, updated_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (tenant_id, contract_id, user_id)
				DO UPDATE SET areas = EXCLUDED.areas, updated_at = EXCLUDED.updated_at`,
				uuid.UUID(r.TenantID), uuid.UUID(r.ContractID), uuid.UUID(r.UserID),
				pq.Array(areas), r.UpdatedAt)
			if err != nil {
				return fmt.Errorf("upsert rule: %w", err)
			}
		}
		return nil
	})
}
