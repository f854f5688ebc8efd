package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// TicketService is the service lifecycle engine. It owns the status state
// machine, task-completion bookkeeping, auto-assignment and the
// authorization gate for all mutating ticket operations.
type TicketService struct {
	tickets     repository.TicketRepository
	tasks       repository.TaskRepository
	assignments repository.AssignmentRepository
	customers   repository.CustomerRepository
	users       repository.UserRepository
	audit       repository.AuditRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger

	now func() time.Time
}

// TicketDependencies bundles collaborators for the lifecycle engine.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	TaskRepo       repository.TaskRepository
	AssignmentRepo repository.AssignmentRepository
	CustomerRepo   repository.CustomerRepository
	UserRepo       repository.UserRepository
	AuditRepo      repository.AuditRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewTicketService constructs the engine.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		tasks:       deps.TaskRepo,
		assignments: deps.AssignmentRepo,
		customers:   deps.CustomerRepo,
		users:       deps.UserRepo,
		audit:       deps.AuditRepo,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

// TaskInput describes a task supplied at ticket creation or added later.
type TaskInput struct {
	Description string
	Priority    domain.TicketPriority
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CustomerID         string
	Title              string
	Description        string
	Priority           domain.TicketPriority
	AssigneeID         *string
	ScheduledAt        *time.Time
	ExpectedCompletion *time.Time
	Amount             *float64
	CustomerNotes      string
	DeviceBrand        string
	DeviceModel        string
	DeviceSerial       string
	Tasks              []TaskInput
}

// TicketUpdateInput carries optional new values for the mutable fields.
// Nil pointers mean "leave unchanged"; ClearAssignee removes all active
// assignment links.
type TicketUpdateInput struct {
	Title              *string
	Description        *string
	Priority           *domain.TicketPriority
	AssigneeID         *string
	ClearAssignee      bool
	ScheduledAt        *time.Time
	ExpectedCompletion *time.Time
	Amount             *float64
	TechnicianNotes    *string
	CustomerNotes      *string
	DeviceBrand        *string
	DeviceModel        *string
	DeviceSerial       *string
}

// TicketDetails aggregates a ticket with its children and derived values.
type TicketDetails struct {
	Ticket      *domain.Ticket
	Tasks       []domain.Task
	Assignments []domain.TicketAssignment
	Progress    float64
	Overdue     bool
}

// CreateTicket validates input, resolves the customer, applies the
// auto-assignment heuristic for urgent tickets and stores the new ticket in
// Pending status together with any supplied tasks.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput, creatorID string) (*domain.Ticket, error) {
	creator, err := s.loadUser(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !CanCreateTicket(creator) {
		return nil, apperrors.NewForbidden("not allowed to create tickets")
	}

	var problems []string
	if strings.TrimSpace(input.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		problems = append(problems, "description is required")
	}
	if strings.TrimSpace(input.CustomerID) == "" {
		problems = append(problems, "customer id is required")
	}
	if input.Amount != nil && *input.Amount < 0 {
		problems = append(problems, "amount must not be negative")
	}
	for i, task := range input.Tasks {
		if strings.TrimSpace(task.Description) == "" {
			problems = append(problems, fmt.Sprintf("task %d: description is required", i+1))
		}
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket data", map[string]any{"errors": problems})
	}

	customer, err := s.customers.GetByID(ctx, input.CustomerID)
	if err != nil {
		return nil, s.mapStoreErr(err, "customer", map[string]any{"customer_id": input.CustomerID})
	}
	if !customer.Active {
		return nil, apperrors.NewPreconditionFailed("customer is inactive", map[string]any{"customer_id": customer.ID})
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}

	assigneeID := input.AssigneeID
	if assigneeID != nil {
		if err := s.checkAssignable(ctx, *assigneeID); err != nil {
			return nil, err
		}
	} else if priority.IsUrgent() {
		assigneeID, err = s.pickLeastLoadedTechnician(ctx)
		if err != nil {
			return nil, err
		}
	}

	expected := input.ExpectedCompletion
	if expected == nil {
		due := DefaultExpectedCompletion(priority, s.now())
		expected = &due
	}

	ticket := &domain.Ticket{
		TicketNumber:       generateTicketNumber(),
		CustomerID:         customer.ID,
		CreatedBy:          creator.ID,
		Title:              strings.TrimSpace(input.Title),
		Description:        strings.TrimSpace(input.Description),
		Status:             domain.TicketStatusPending,
		Priority:           priority,
		ScheduledAt:        input.ScheduledAt,
		ExpectedCompletion: expected,
		Amount:             input.Amount,
		CustomerNotes:      input.CustomerNotes,
		DeviceBrand:        input.DeviceBrand,
		DeviceModel:        input.DeviceModel,
		DeviceSerial:       input.DeviceSerial,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, s.mapStoreErr(err, "ticket", nil)
	}

	for _, taskInput := range input.Tasks {
		task := &domain.Task{
			TicketID:    ticket.ID,
			Description: strings.TrimSpace(taskInput.Description),
			Priority:    taskPriorityOrDefault(taskInput.Priority, priority),
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			return nil, s.mapStoreErr(err, "task", nil)
		}
	}

	if assigneeID != nil {
		link := &domain.TicketAssignment{
			TicketID:   ticket.ID,
			UserID:     *assigneeID,
			AssignedBy: creator.ID,
			AssignedAt: s.now(),
			Active:     true,
		}
		if err := s.assignments.Create(ctx, link); err != nil {
			return nil, s.mapStoreErr(err, "assignment", nil)
		}
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		Action:      domain.AuditTicketCreated,
		EntityType:  domain.EntityTicket,
		EntityID:    ticket.ID,
		ActorID:     creator.ID,
		Description: fmt.Sprintf("ticket %s created", ticket.TicketNumber),
		NewValues: map[string]any{
			"title":    ticket.Title,
			"status":   ticket.Status,
			"priority": ticket.Priority,
			"customer": ticket.CustomerID,
			"assignee": assigneeID,
		},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  creator.ID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			CustomerID:   ticket.CustomerID,
			Priority:     ticket.Priority,
			Title:        ticket.Title,
			AssigneeID:   assigneeID,
		},
	})
	return ticket, nil
}

// UpdateTicket applies field edits to a non-terminal ticket, recording a
// human-readable change list in the audit trail. An assignment event fires
// only when the assignee actually changed.
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID string, input TicketUpdateInput, actorID string) (*domain.Ticket, error) {
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

	var problems []string
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		problems = append(problems, "title must not be empty")
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		problems = append(problems, "description must not be empty")
	}
	if input.Amount != nil && *input.Amount < 0 {
		problems = append(problems, "amount must not be negative")
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket data", map[string]any{"errors": problems})
	}

	oldValues := map[string]any{}
	newValues := map[string]any{}
	var changes []string
	change := func(field string, oldVal, newVal any) {
		oldValues[field] = oldVal
		newValues[field] = newVal
		changes = append(changes, fmt.Sprintf("%s: %v -> %v", field, oldVal, newVal))
	}

	if input.Title != nil && strings.TrimSpace(*input.Title) != ticket.Title {
		change("title", ticket.Title, strings.TrimSpace(*input.Title))
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) != ticket.Description {
		change("description", ticket.Description, strings.TrimSpace(*input.Description))
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil && *input.Priority != ticket.Priority {
		change("priority", ticket.Priority, *input.Priority)
		ticket.Priority = *input.Priority
	}
	if input.ScheduledAt != nil && !equalTimePtr(input.ScheduledAt, ticket.ScheduledAt) {
		change("scheduled_at", formatTimePtr(ticket.ScheduledAt), formatTimePtr(input.ScheduledAt))
		ticket.ScheduledAt = input.ScheduledAt
	}
	if input.ExpectedCompletion != nil && !equalTimePtr(input.ExpectedCompletion, ticket.ExpectedCompletion) {
		change("expected_completion", formatTimePtr(ticket.ExpectedCompletion), formatTimePtr(input.ExpectedCompletion))
		ticket.ExpectedCompletion = input.ExpectedCompletion
	}
	if input.Amount != nil && !equalFloatPtr(input.Amount, ticket.Amount) {
		change("amount", ticket.Amount, *input.Amount)
		ticket.Amount = input.Amount
	}
	if input.TechnicianNotes != nil && *input.TechnicianNotes != ticket.TechnicianNotes {
		change("technician_notes", ticket.TechnicianNotes, *input.TechnicianNotes)
		ticket.TechnicianNotes = *input.TechnicianNotes
	}
	if input.CustomerNotes != nil && *input.CustomerNotes != ticket.CustomerNotes {
		change("customer_notes", ticket.CustomerNotes, *input.CustomerNotes)
		ticket.CustomerNotes = *input.CustomerNotes
	}
	if input.DeviceBrand != nil && *input.DeviceBrand != ticket.DeviceBrand {
		change("device_brand", ticket.DeviceBrand, *input.DeviceBrand)
		ticket.DeviceBrand = *input.DeviceBrand
	}
	if input.DeviceModel != nil && *input.DeviceModel != ticket.DeviceModel {
		change("device_model", ticket.DeviceModel, *input.DeviceModel)
		ticket.DeviceModel = *input.DeviceModel
	}
	if input.DeviceSerial != nil && *input.DeviceSerial != ticket.DeviceSerial {
		change("device_serial", ticket.DeviceSerial, *input.DeviceSerial)
		ticket.DeviceSerial = *input.DeviceSerial
	}

	current := domain.PrimaryAssignee(links)
	assigneeChanged := false
	var newAssignee *string
	switch {
	case input.ClearAssignee && current != nil:
		if err := s.deactivateLinks(ctx, links); err != nil {
			return nil, err
		}
		change("assignee", *current, "<none>")
		assigneeChanged = true
	case input.AssigneeID != nil && (current == nil || *current != *input.AssigneeID):
		if err := s.checkAssignable(ctx, *input.AssigneeID); err != nil {
			return nil, err
		}
		if err := s.deactivateLinks(ctx, links); err != nil {
			return nil, err
		}
		link := &domain.TicketAssignment{
			TicketID:   ticket.ID,
			UserID:     *input.AssigneeID,
			AssignedBy: actor.ID,
			AssignedAt: s.now(),
			Active:     true,
		}
		if err := s.assignments.Create(ctx, link); err != nil {
			return nil, s.mapStoreErr(err, "assignment", nil)
		}
		change("assignee", formatStringPtr(current), *input.AssigneeID)
		assigneeChanged = true
		newAssignee = input.AssigneeID
	}

	if len(changes) == 0 {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, s.mapStoreErr(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		Action:      domain.AuditTicketUpdated,
		EntityType:  domain.EntityTicket,
		EntityID:    ticket.ID,
		ActorID:     actor.ID,
		Description: strings.Join(changes, "; "),
		OldValues:   oldValues,
		NewValues:   newValues,
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketUpdatedPayload{Changes: changes},
	})
	if assigneeChanged {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Payload:  events.TicketAssignedPayload{AssigneeID: newAssignee, Removed: newAssignee == nil},
		})
	}
	return ticket, nil
}

// GetTicket returns a ticket with tasks, assignments and derived values.
func (s *TicketService) GetTicket(ctx context.Context, ticketID, actorID string) (*TicketDetails, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !CanViewTicket(actor) {
		return nil, apperrors.NewForbidden("not allowed to view tickets")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.mapStoreErr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	tasks, err := s.tasks.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.mapStoreErr(err, "tasks", nil)
	}
	links, err := s.assignments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.mapStoreErr(err, "assignments", nil)
	}
	return &TicketDetails{
		Ticket:      ticket,
		Tasks:       tasks,
		Assignments: links,
		Progress:    ticket.Progress(tasks),
		Overdue:     ticket.Overdue(s.now()),
	}, nil
}

// ListTickets returns tickets matching the filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter, actorID string) ([]domain.Ticket, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !CanViewTicket(actor) {
		return nil, apperrors.NewForbidden("not allowed to view tickets")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, s.mapStoreErr(err, "tickets", nil)
	}
	return tickets, nil
}

// AuditTrail returns the recorded changes for a ticket.
func (s *TicketService) AuditTrail(ctx context.Context, ticketID, actorID string, limit, offset int) ([]domain.AuditRecord, error) {
	actor, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !CanViewTicket(actor) {
		return nil, apperrors.NewForbidden("not allowed to view tickets")
	}
	records, err := s.audit.ListByEntity(ctx, domain.EntityTicket, ticketID, limit, offset)
	if err != nil {
		return nil, s.mapStoreErr(err, "audit trail", nil)
	}
	return records, nil
}

// pickLeastLoadedTechnician implements the greedy auto-assignment heuristic:
// among active technicians, fewest tickets currently Accepted or InProgress,
// ties broken by the repository's stable id ordering. Returns nil when no
// technician is available; creation then proceeds unassigned.
func (s *TicketService) pickLeastLoadedTechnician(ctx context.Context) (*string, error) {
	role := domain.RoleTechnician
	active := true
	technicians, err := s.users.List(ctx, repository.UserFilter{Role: &role, Active: &active, Limit: 1000})
	if err != nil {
		return nil, s.mapStoreErr(err, "technicians", nil)
	}
	if len(technicians) == 0 {
		s.logger.Warn("auto-assignment skipped: no active technicians")
		return nil, nil
	}

	var best *domain.User
	bestLoad := 0
	for i := range technicians {
		tech := &technicians[i]
		load, err := s.tickets.CountOpenByAssignee(ctx, tech.ID)
		if err != nil {
			return nil, s.mapStoreErr(err, "technician load", nil)
		}
		if best == nil || load < bestLoad {
			best = tech
			bestLoad = load
		}
	}
	s.logger.Debug("auto-assigned technician",
		zap.String("user_id", best.ID),
		zap.Int("open_tickets", bestLoad))
	return &best.ID, nil
}

// checkAssignable verifies a prospective assignee exists, is active and
// holds a role that can work tickets.
func (s *TicketService) checkAssignable(ctx context.Context, userID string) error {
	assignee, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !assignee.Active {
		return apperrors.NewPreconditionFailed("assignee is inactive", map[string]any{"user_id": userID})
	}
	if assignee.Role != domain.RoleTechnician && !assignee.IsAdmin() {
		return apperrors.NewPreconditionFailed("assignee must hold a technician or admin role",
			map[string]any{"user_id": userID, "role": assignee.Role})
	}
	return nil
}

func (s *TicketService) deactivateLinks(ctx context.Context, links []domain.TicketAssignment) error {
	removedAt := s.now()
	for _, link := range links {
		if !link.Active {
			continue
		}
		if err := s.assignments.Deactivate(ctx, link.ID, removedAt); err != nil {
			return s.mapStoreErr(err, "assignment", map[string]any{"assignment_id": link.ID})
		}
	}
	return nil
}

func (s *TicketService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.mapStoreErr(err, "user", map[string]any{"user_id": userID})
	}
	return user, nil
}

// mapStoreErr classifies collaborator failures: missing rows become
// NotFound, optimistic-concurrency failures become Conflict and everything
// else is logged and surfaced as an opaque internal error.
func (s *TicketService) mapStoreErr(err error, resource string, details map[string]any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	if errors.Is(err, repository.ErrConflict) {
		return apperrors.NewConflict(fmt.Sprintf("%s was modified concurrently", resource), details)
	}
	s.logger.Error("store operation failed", zap.String("resource", resource), zap.Error(err))
	return apperrors.NewInternalError(err)
}

// recordAudit appends to the audit trail. Failures are logged and swallowed:
// the state change already committed and must not be reported as failed.
func (s *TicketService) recordAudit(ctx context.Context, record *domain.AuditRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, record); err != nil {
		s.logger.Warn("audit record dropped",
			zap.String("action", record.Action),
			zap.String("entity_id", record.EntityID),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketNumber() string {
	return "SVC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func taskPriorityOrDefault(priority, fallback domain.TicketPriority) domain.TicketPriority {
	if priority == "" {
		return fallback
	}
	return priority
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "<none>"
	}
	return t.Format(time.RFC3339)
}

func formatStringPtr(s *string) string {
	if s == nil {
		return "<none>"
	}
	return *s
}
