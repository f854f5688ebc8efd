package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// AssignUser links a user to a ticket. The link is additive: existing
// assignments stay active, supporting multi-technician tickets.
func (s *TicketService) AssignUser(ctx context.Context, ticketID, userID, actorID string) (*domain.TicketAssignment, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.mapStoreErr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status.IsTerminal() {
		return nil, apperrors.NewPreconditionFailed("ticket is closed and can no longer be modified",
			map[string]any{"status": ticket.Status})
	}
	links, err := s.assignments.ListActiveByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.mapStoreErr(err, "assignments", nil)
	}
	if !CanModifyTicket(actor, links) {
		return nil, apperrors.NewForbidden("not allowed to modify this ticket")
	}
	if err := s.checkAssignable(ctx, userID); err != nil {
		return nil, err
	}
	for _, link := range links {
		if link.UserID == userID {
			return nil, apperrors.NewConflict("user is already assigned to this ticket",
				map[string]any{"user_id": userID})
		}
	}

	link := &domain.TicketAssignment{
		TicketID:   ticket.ID,
		UserID:     userID,
		AssignedBy: actor.ID,
		AssignedAt: s.now(),
		Active:     true,
	}
	if err := s.assignments.Create(ctx, link); err != nil {
		return nil, s.mapStoreErr(err, "assignment", nil)
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		Action:      domain.AuditUserAssigned,
		EntityType:  domain.EntityTicket,
		EntityID:    ticket.ID,
		ActorID:     actor.ID,
		Description: fmt.Sprintf("user %s assigned to ticket %s", userID, ticket.TicketNumber),
		NewValues:   map[string]any{"user_id": userID},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketAssignedPayload{AssigneeID: &userID},
	})
	return link, nil
}

// UnassignUser soft-removes an active assignment link.
func (s *TicketService) UnassignUser(ctx context.Context, ticketID, userID, actorID string) error {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return s.mapStoreErr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status.IsTerminal() {
		return apperrors.NewPreconditionFailed("ticket is closed and can no longer be modified",
			map[string]any{"status": ticket.Status})
	}
	links, err := s.assignments.ListActiveByTicket(ctx, ticket.ID)
	if err != nil {
		return s.mapStoreErr(err, "assignments", nil)
	}
	if !CanModifyTicket(actor, links) {
		return apperrors.NewForbidden("not allowed to modify this ticket")
	}

	var target *domain.TicketAssignment
	for i := range links {
		if links[i].UserID == userID {
			target = &links[i]
			break
		}
	}
	if target == nil {
		return apperrors.NewNotFound("assignment", map[string]any{"user_id": userID})
	}
	if err := s.assignments.Deactivate(ctx, target.ID, s.now()); err != nil {
		return s.mapStoreErr(err, "assignment", map[string]any{"assignment_id": target.ID})
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		Action:      domain.AuditUserUnassigned,
		EntityType:  domain.EntityTicket,
		EntityID:    ticket.ID,
		ActorID:     actor.ID,
		Description: fmt.Sprintf("user %s removed from ticket %s", userID, ticket.TicketNumber),
		OldValues:   map[string]any{"user_id": userID},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketAssignedPayload{AssigneeID: &userID, Removed: true},
	})
	return nil
}
