package events

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTaskCompleted       EventType = "task_completed"
)

// Event represents a domain event emitted by the lifecycle engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	CustomerID   string                `json:"customer_id"`
	Priority     domain.TicketPriority `json:"priority"`
	Title        string                `json:"title"`
	AssigneeID   *string               `json:"assignee_id,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Changes []string `json:"changes"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus      domain.TicketStatus `json:"old_status"`
	NewStatus      domain.TicketStatus `json:"new_status"`
	Notes          string              `json:"notes,omitempty"`
	AssigneeIDs    []string            `json:"assignee_ids,omitempty"`
	NotifyCustomer bool                `json:"notify_customer"`
	CustomerID     string              `json:"customer_id"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	Removed    bool    `json:"removed"`
}

// TaskCompletedPayload payload.
type TaskCompletedPayload struct {
	TaskID      string  `json:"task_id"`
	Description string  `json:"description"`
	Progress    float64 `json:"progress"`
}
