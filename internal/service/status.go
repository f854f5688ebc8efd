package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// allowedTransitions is the full status graph. Terminal states map to an
// empty set; self-transitions are never allowed.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusPending:         {domain.TicketStatusAccepted, domain.TicketStatusRejected, domain.TicketStatusCancelled},
	domain.TicketStatusAccepted:        {domain.TicketStatusInProgress, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress:      {domain.TicketStatusWaitingForParts, domain.TicketStatusTesting, domain.TicketStatusCompleted, domain.TicketStatusCancelled},
	domain.TicketStatusWaitingForParts: {domain.TicketStatusInProgress, domain.TicketStatusCancelled},
	domain.TicketStatusTesting:         {domain.TicketStatusCompleted, domain.TicketStatusInProgress, domain.TicketStatusCancelled},
	domain.TicketStatusCompleted:       {},
	domain.TicketStatusCancelled:       {},
	domain.TicketStatusRejected:        {},
}

// IsValidTransition reports whether the status graph permits current -> next.
func IsValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ChangeStatus moves a ticket through the status graph, enforcing the
// transition table, the assignment and task-completion preconditions, and
// the status-specific side effects.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actorID, notes string) (*domain.Ticket, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.mapStoreErr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	links, err := s.assignments.ListActiveByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.mapStoreErr(err, "assignments", nil)
	}
	if !CanModifyTicket(actor, links) {
		return nil, apperrors.NewForbidden("not allowed to modify this ticket")
	}
	if !IsValidTransition(ticket.Status, newStatus) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(newStatus))
	}

	if newStatus == domain.TicketStatusInProgress && len(links) == 0 {
		return nil, apperrors.NewPreconditionFailed("ticket cannot enter progress without an assigned user", nil)
	}
	if newStatus == domain.TicketStatusCompleted {
		tasks, err := s.tasks.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, s.mapStoreErr(err, "tasks", nil)
		}
		for _, task := range tasks {
			if !task.Completed {
				return nil, apperrors.NewPreconditionFailed("all tasks must be completed first",
					map[string]any{"task_id": task.ID})
			}
		}
	}

	oldStatus := ticket.Status
	now := s.now()
	switch newStatus {
	case domain.TicketStatusInProgress:
		if ticket.StartedAt == nil {
			ticket.StartedAt = &now
		}
	case domain.TicketStatusCompleted:
		if ticket.EndedAt == nil {
			ticket.EndedAt = &now
		}
	case domain.TicketStatusCancelled:
		// Cancellation notes are appended, never overwritten.
		if notes != "" {
			if ticket.TechnicianNotes != "" {
				ticket.TechnicianNotes += "\n"
			}
			ticket.TechnicianNotes += notes
		}
	}
	ticket.Status = newStatus

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, s.mapStoreErr(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		Action:      domain.AuditStatusChanged,
		EntityType:  domain.EntityTicket,
		EntityID:    ticket.ID,
		ActorID:     actor.ID,
		Description: fmt.Sprintf("status %s -> %s", oldStatus, newStatus),
		OldValues:   map[string]any{"status": oldStatus},
		NewValues:   map[string]any{"status": newStatus, "notes": notes},
	})

	assigneeIDs := make([]string, 0, len(links))
	for _, link := range links {
		assigneeIDs = append(assigneeIDs, link.UserID)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus:      oldStatus,
			NewStatus:      newStatus,
			Notes:          notes,
			AssigneeIDs:    assigneeIDs,
			NotifyCustomer: newStatus == domain.TicketStatusCompleted || newStatus == domain.TicketStatusCancelled,
			CustomerID:     ticket.CustomerID,
		},
	})
	return ticket, nil
}
