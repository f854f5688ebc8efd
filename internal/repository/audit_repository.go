package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// AuditRepository is the append-only sink for change records. Records are
// never updated or deleted here; retention is an external concern.
type AuditRepository interface {
	Create(ctx context.Context, record *domain.AuditRecord) error
	ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds the repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	const query = `
        INSERT INTO audit_records (action, entity_type, entity_id, actor_id, description, old_values, new_values)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		record.Action,
		record.EntityType,
		record.EntityID,
		record.ActorID,
		record.Description,
		record.OldValues,
		record.NewValues,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, action, entity_type, entity_id, actor_id, description, old_values, new_values, created_at
        FROM audit_records WHERE entity_type=$1 AND entity_id=$2
        ORDER BY created_at ASC LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, entityType, entityID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.Action,
			&record.EntityType,
			&record.EntityID,
			&record.ActorID,
			&record.Description,
			&record.OldValues,
			&record.NewValues,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
