package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// TaskRepository handles persistence for ticket tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Task, error)
	Delete(ctx context.Context, id string) error
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates the repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (ticket_id, description, priority)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		task.TicketID,
		task.Description,
		task.Priority,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET description=$1, priority=$2, completed=$3, completed_at=$4, completed_by=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		task.Description,
		task.Priority,
		task.Completed,
		task.CompletedAt,
		task.CompletedBy,
		task.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `
        SELECT id, ticket_id, description, priority, completed, completed_at, completed_by, created_at, updated_at
        FROM tasks WHERE id=$1`
	var task domain.Task
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.TicketID,
		&task.Description,
		&task.Priority,
		&task.Completed,
		&task.CompletedAt,
		&task.CompletedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Task, error) {
	const query = `
        SELECT id, ticket_id, description, priority, completed, completed_at, completed_by, created_at, updated_at
        FROM tasks WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Task
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(
			&task.ID,
			&task.TicketID,
			&task.Description,
			&task.Priority,
			&task.Completed,
			&task.CompletedAt,
			&task.CompletedBy,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
