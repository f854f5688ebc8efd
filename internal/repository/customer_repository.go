package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// CustomerFilter defines query params for customer listing.
type CustomerFilter struct {
	Active     *bool
	SearchTerm *string
	Limit      int
	Offset     int
}

// CustomerRepository handles persistence for customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	List(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository instantiates the repository.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (name, tax_id, email, phone, address, active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		customer.Name,
		customer.TaxID,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.Active,
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	const query = `
        UPDATE customers SET name=$1, tax_id=$2, email=$3, phone=$4, address=$5, active=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		customer.Name,
		customer.TaxID,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.Active,
		customer.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const query = `
        SELECT id, name, tax_id, email, phone, address, active, created_at, updated_at
        FROM customers WHERE id=$1`
	var customer domain.Customer
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.TaxID,
		&customer.Email,
		&customer.Phone,
		&customer.Address,
		&customer.Active,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) List(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error) {
	query := `SELECT id, name, tax_id, email, phone, address, active, created_at, updated_at FROM customers WHERE 1=1`
	args := []any{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(" AND active=$%d", len(args))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		query += fmt.Sprintf(" AND (LOWER(name) LIKE %s OR LOWER(email) LIKE %s OR tax_id LIKE %s)", placeholder, placeholder, placeholder)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY name ASC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Customer
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(
			&customer.ID,
			&customer.Name,
			&customer.TaxID,
			&customer.Email,
			&customer.Phone,
			&customer.Address,
			&customer.Active,
			&customer.CreatedAt,
			&customer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, customer)
	}
	return result, rows.Err()
}
