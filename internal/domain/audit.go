package domain

import "time"

// AuditRecord is an immutable append-only change fact. Old and new values
// are opaque key-value snapshots built from known entity fields.
type AuditRecord struct {
	ID          string
	Action      string
	EntityType  string
	EntityID    string
	ActorID     string
	Description string
	OldValues   map[string]any
	NewValues   map[string]any
	CreatedAt   time.Time
}

// Audit actions recorded by the lifecycle engine.
const (
	AuditTicketCreated   = "ticket.created"
	AuditTicketUpdated   = "ticket.updated"
	AuditStatusChanged   = "ticket.status_changed"
	AuditUserAssigned    = "ticket.user_assigned"
	AuditUserUnassigned  = "ticket.user_unassigned"
	AuditTaskAdded       = "ticket.task_added"
	AuditTaskCompleted   = "ticket.task_completed"
	AuditTaskDeleted     = "ticket.task_deleted"
	AuditCustomerCreated = "customer.created"
	AuditCustomerUpdated = "customer.updated"
)

// Audit entity types.
const (
	EntityTicket   = "ticket"
	EntityTask     = "task"
	EntityCustomer = "customer"
)
