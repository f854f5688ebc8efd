package domain

import "time"

// Customer is a billable party tickets are raised for.
type Customer struct {
	ID        string
	Name      string
	TaxID     string
	Email     string
	Phone     string
	Address   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
