package domain

import "time"

// Task is a unit of work under a ticket. Completion is terminal.
type Task struct {
	ID          string
	TicketID    string
	Description string
	Priority    TicketPriority
	Completed   bool
	CompletedAt *time.Time
	CompletedBy *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
