package domain

import "time"

// TicketStatus enumerates lifecycle states for service tickets.
type TicketStatus string

const (
	TicketStatusPending         TicketStatus = "PENDING"
	TicketStatusAccepted        TicketStatus = "ACCEPTED"
	TicketStatusInProgress      TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingForParts TicketStatus = "WAITING_FOR_PARTS"
	TicketStatusTesting         TicketStatus = "TESTING"
	TicketStatusCompleted       TicketStatus = "COMPLETED"
	TicketStatusCancelled       TicketStatus = "CANCELLED"
	TicketStatusRejected        TicketStatus = "REJECTED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled || s == TicketStatusRejected
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityNormal   TicketPriority = "NORMAL"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// IsUrgent reports whether the priority triggers auto-assignment at creation.
func (p TicketPriority) IsUrgent() bool {
	return p == TicketPriorityHigh || p == TicketPriorityCritical
}

// Ticket is the central service-request aggregate.
type Ticket struct {
	ID                 string
	TicketNumber       string
	CustomerID         string
	CreatedBy          string
	Title              string
	Description        string
	Status             TicketStatus
	Priority           TicketPriority
	ScheduledAt        *time.Time
	StartedAt          *time.Time
	EndedAt            *time.Time
	ExpectedCompletion *time.Time
	Amount             *float64
	TechnicianNotes    string
	CustomerNotes      string
	DeviceBrand        string
	DeviceModel        string
	DeviceSerial       string
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Overdue reports whether the expected completion date has passed while the
// ticket is still open.
func (t *Ticket) Overdue(now time.Time) bool {
	if t.ExpectedCompletion == nil {
		return false
	}
	if t.Status == TicketStatusCompleted || t.Status == TicketStatusCancelled {
		return false
	}
	return t.ExpectedCompletion.Before(now)
}

// Progress returns the completed-task percentage for the given task set.
// A ticket without tasks reports zero.
func (t *Ticket) Progress(tasks []Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, task := range tasks {
		if task.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(tasks)) * 100
}
