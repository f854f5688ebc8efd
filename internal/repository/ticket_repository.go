package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID *string
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountOpenByAssignee(ctx context.Context, userID string) (int, error)
	CountOpenByCustomer(ctx context.Context, customerID string) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, customer_id, created_by, title, description, status, priority,
        scheduled_at, started_at, ended_at, expected_completion, amount,
        technician_notes, customer_notes, device_brand, device_model, device_serial,
        version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, customer_id, created_by, title, description, status, priority,
            scheduled_at, expected_completion, amount, technician_notes, customer_notes,
            device_brand, device_model, device_serial)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.CustomerID,
		ticket.CreatedBy,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.ScheduledAt,
		ticket.ExpectedCompletion,
		ticket.Amount,
		ticket.TechnicianNotes,
		ticket.CustomerNotes,
		ticket.DeviceBrand,
		ticket.DeviceModel,
		ticket.DeviceSerial,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update writes all mutable fields guarded by the version column. A stale
// version yields ErrConflict.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4,
            scheduled_at=$5, started_at=$6, ended_at=$7, expected_completion=$8, amount=$9,
            technician_notes=$10, customer_notes=$11, device_brand=$12, device_model=$13, device_serial=$14,
            version=version+1, updated_at=NOW()
        WHERE id=$15 AND version=$16
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.ScheduledAt,
		ticket.StartedAt,
		ticket.EndedAt,
		ticket.ExpectedCompletion,
		ticket.Amount,
		ticket.TechnicianNotes,
		ticket.CustomerNotes,
		ticket.DeviceBrand,
		ticket.DeviceModel,
		ticket.DeviceSerial,
		ticket.ID,
		ticket.Version,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrConflict
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE ticket_number=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	return scanTicket(row)
}

// CountOpenByAssignee counts tickets in Accepted or InProgress linked to the
// user through an active assignment. Input for the auto-assignment heuristic.
func (r *ticketRepository) CountOpenByAssignee(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets t
        JOIN ticket_assignments a ON a.ticket_id = t.id AND a.active
        WHERE a.user_id=$1 AND t.status IN ($2,$3)`
	var count int
	err := r.pool.QueryRow(ctx, query, userID, domain.TicketStatusAccepted, domain.TicketStatusInProgress).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountOpenByCustomer(ctx context.Context, customerID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE customer_id=$1 AND status NOT IN ($2,$3,$4)`
	var count int
	err := r.pool.QueryRow(ctx, query, customerID,
		domain.TicketStatusCompleted, domain.TicketStatusCancelled, domain.TicketStatusRejected).Scan(&count)
	return count, err
}

// qualifyColumns prefixes every column in a comma-separated list with a table
// alias, so the list stays usable once the query grows a join.
func qualifyColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets t`, qualifyColumns(ticketColumns, "t"))
	clauses := []string{"1=1"}
	args := []any{}
	joins := ""

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		joins = " JOIN ticket_assignments a ON a.ticket_id = t.id AND a.active"
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("a.user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(ticket_number) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s%s WHERE %s ORDER BY t.updated_at DESC LIMIT %d OFFSET %d`,
		base, joins, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.CustomerID,
		&ticket.CreatedBy,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.ScheduledAt,
		&ticket.StartedAt,
		&ticket.EndedAt,
		&ticket.ExpectedCompletion,
		&ticket.Amount,
		&ticket.TechnicianNotes,
		&ticket.CustomerNotes,
		&ticket.DeviceBrand,
		&ticket.DeviceModel,
		&ticket.DeviceSerial,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
