package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// AssignmentRepository manages the ticket/user assignment links.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.TicketAssignment) error
	Deactivate(ctx context.Context, id string, removedAt time.Time) error
	ListActiveByTicket(ctx context.Context, ticketID string) ([]domain.TicketAssignment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAssignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository instantiates the repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.TicketAssignment) error {
	const query = `
        INSERT INTO ticket_assignments (ticket_id, user_id, assigned_by, assigned_at, active)
        VALUES ($1,$2,$3,$4,TRUE)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		assignment.TicketID,
		assignment.UserID,
		assignment.AssignedBy,
		assignment.AssignedAt,
	).Scan(&assignment.ID)
}

// Deactivate soft-removes a link. Links are never hard-deleted.
func (r *assignmentRepository) Deactivate(ctx context.Context, id string, removedAt time.Time) error {
	const query = `
        UPDATE ticket_assignments SET active=FALSE, removed_at=$1
        WHERE id=$2 AND active`
	cmd, err := r.pool.Exec(ctx, query, removedAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRepository) ListActiveByTicket(ctx context.Context, ticketID string) ([]domain.TicketAssignment, error) {
	const query = `
        SELECT id, ticket_id, user_id, assigned_by, assigned_at, active, removed_at
        FROM ticket_assignments WHERE ticket_id=$1 AND active ORDER BY assigned_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *assignmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAssignment, error) {
	const query = `
        SELECT id, ticket_id, user_id, assigned_by, assigned_at, active, removed_at
        FROM ticket_assignments WHERE ticket_id=$1 ORDER BY assigned_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *assignmentRepository) list(ctx context.Context, query, ticketID string) ([]domain.TicketAssignment, error) {
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func scanAssignments(rows pgx.Rows) ([]domain.TicketAssignment, error) {
	var result []domain.TicketAssignment
	for rows.Next() {
		var a domain.TicketAssignment
		if err := rows.Scan(
			&a.ID,
			&a.TicketID,
			&a.UserID,
			&a.AssignedBy,
			&a.AssignedAt,
			&a.Active,
			&a.RemovedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
