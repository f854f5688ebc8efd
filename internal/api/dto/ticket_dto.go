package dto

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// TaskRequest describes a task submitted with a ticket or added later.
type TaskRequest struct {
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerID         string                `json:"customer_id"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	Priority           domain.TicketPriority `json:"priority"`
	AssigneeID         *string               `json:"assignee_id"`
	ScheduledAt        *time.Time            `json:"scheduled_at"`
	ExpectedCompletion *time.Time            `json:"expected_completion"`
	Amount             *float64              `json:"amount"`
	CustomerNotes      string                `json:"customer_notes"`
	DeviceBrand        string                `json:"device_brand"`
	DeviceModel        string                `json:"device_model"`
	DeviceSerial       string                `json:"device_serial"`
	Tasks              []TaskRequest         `json:"tasks"`
}

// UpdateTicketRequest carries optional new field values. Omitted fields are
// left unchanged.
type UpdateTicketRequest struct {
	Title              *string                `json:"title"`
	Description        *string                `json:"description"`
	Priority           *domain.TicketPriority `json:"priority"`
	AssigneeID         *string                `json:"assignee_id"`
	ClearAssignee      bool                   `json:"clear_assignee"`
	ScheduledAt        *time.Time             `json:"scheduled_at"`
	ExpectedCompletion *time.Time             `json:"expected_completion"`
	Amount             *float64               `json:"amount"`
	TechnicianNotes    *string                `json:"technician_notes"`
	CustomerNotes      *string                `json:"customer_notes"`
	DeviceBrand        *string                `json:"device_brand"`
	DeviceModel        *string                `json:"device_model"`
	DeviceSerial       *string                `json:"device_serial"`
}

// ChangeStatusRequest payload for status transitions.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
	Notes  string              `json:"notes"`
}

// AssignRequest payload for adding an assignee.
type AssignRequest struct {
	UserID string `json:"user_id"`
}

// TicketSummary response item for list endpoints.
type TicketSummary struct {
	ID                 string                `json:"id"`
	TicketNumber       string                `json:"ticket_number"`
	CustomerID         string                `json:"customer_id"`
	Title              string                `json:"title"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	ScheduledAt        *time.Time            `json:"scheduled_at"`
	ExpectedCompletion *time.Time            `json:"expected_completion"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info with children and derived
// values.
type TicketDetailResponse struct {
	ID                 string                `json:"id"`
	TicketNumber       string                `json:"ticket_number"`
	CustomerID         string                `json:"customer_id"`
	CreatedBy          string                `json:"created_by"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	ScheduledAt        *time.Time            `json:"scheduled_at"`
	StartedAt          *time.Time            `json:"started_at"`
	EndedAt            *time.Time            `json:"ended_at"`
	ExpectedCompletion *time.Time            `json:"expected_completion"`
	Amount             *float64              `json:"amount"`
	TechnicianNotes    string                `json:"technician_notes"`
	CustomerNotes      string                `json:"customer_notes"`
	DeviceBrand        string                `json:"device_brand"`
	DeviceModel        string                `json:"device_model"`
	DeviceSerial       string                `json:"device_serial"`
	PrimaryAssignee    *string               `json:"primary_assignee"`
	Progress           float64               `json:"progress"`
	Overdue            bool                  `json:"overdue"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	Tasks              []TaskResponse        `json:"tasks"`
	Assignments        []AssignmentResponse  `json:"assignments"`
}

// TaskResponse represents a ticket task.
type TaskResponse struct {
	ID          string                `json:"id"`
	TicketID    string                `json:"ticket_id"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Completed   bool                  `json:"completed"`
	CompletedAt *time.Time            `json:"completed_at"`
	CompletedBy *string               `json:"completed_by"`
	CreatedAt   time.Time             `json:"created_at"`
}

// AssignmentResponse represents an assignment link.
type AssignmentResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	AssignedBy string     `json:"assigned_by"`
	AssignedAt time.Time  `json:"assigned_at"`
	Active     bool       `json:"active"`
	RemovedAt  *time.Time `json:"removed_at"`
}

// AuditRecordResponse represents one audit trail entry.
type AuditRecordResponse struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	ActorID     string         `json:"actor_id"`
	Description string         `json:"description"`
	OldValues   map[string]any `json:"old_values,omitempty"`
	NewValues   map[string]any `json:"new_values,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
