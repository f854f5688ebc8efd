package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		CustomerID:         req.CustomerID,
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		AssigneeID:         req.AssigneeID,
		ScheduledAt:        req.ScheduledAt,
		ExpectedCompletion: req.ExpectedCompletion,
		Amount:             req.Amount,
		CustomerNotes:      req.CustomerNotes,
		DeviceBrand:        req.DeviceBrand,
		DeviceModel:        req.DeviceModel,
		DeviceSerial:       req.DeviceSerial,
	}
	for _, task := range req.Tasks {
		input.Tasks = append(input.Tasks, service.TaskInput{
			Description: task.Description,
			Priority:    task.Priority,
		})
	}

	ticket, err := h.service.CreateTicket(c.Context(), input, actor.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := parseTicketQuery(c)
	tickets, err := h.service.ListTickets(c.Context(), filter, actor.ID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	details, err := h.service.GetTicket(c.Context(), c.Params("id"), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(details)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.TicketUpdateInput{
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		AssigneeID:         req.AssigneeID,
		ClearAssignee:      req.ClearAssignee,
		ScheduledAt:        req.ScheduledAt,
		ExpectedCompletion: req.ExpectedCompletion,
		Amount:             req.Amount,
		TechnicianNotes:    req.TechnicianNotes,
		CustomerNotes:      req.CustomerNotes,
		DeviceBrand:        req.DeviceBrand,
		DeviceModel:        req.DeviceModel,
		DeviceSerial:       req.DeviceSerial,
	}
	ticket, err := h.service.UpdateTicket(c.Context(), c.Params("id"), input, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status is required", nil)
	}
	ticket, err := h.service.ChangeStatus(c.Context(), c.Params("id"), req.Status, actor.ID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AssignUser POST /tickets/:id/assignments.
func (h *TicketsHandler) AssignUser(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id is required", nil)
	}
	assignment, err := h.service.AssignUser(c.Context(), c.Params("id"), req.UserID, actor.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// UnassignUser DELETE /tickets/:id/assignments/:userId.
func (h *TicketsHandler) UnassignUser(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.UnassignUser(c.Context(), c.Params("id"), c.Params("userId"), actor.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddTask POST /tickets/:id/tasks.
func (h *TicketsHandler) AddTask(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.service.AddTask(c.Context(), c.Params("id"), service.TaskInput{
		Description: req.Description,
		Priority:    req.Priority,
	}, actor.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": taskResponse(task)})
}

// CompleteTask POST /tasks/:id/complete.
func (h *TicketsHandler) CompleteTask(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	task, err := h.service.CompleteTask(c.Context(), c.Params("id"), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// DeleteTask DELETE /tasks/:id.
func (h *TicketsHandler) DeleteTask(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.DeleteTask(c.Context(), c.Params("id"), actor.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AuditTrail GET /tickets/:id/audit.
func (h *TicketsHandler) AuditTrail(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)
	records, err := h.service.AuditTrail(c.Context(), c.Params("id"), actor.ID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AuditRecordResponse, 0, len(records))
	for i := range records {
		items = append(items, auditRecordResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if v := c.Query("customer_id"); v != "" {
		filter.CustomerID = &v
	}
	if v := c.Query("assignee_id"); v != "" {
		filter.AssigneeID = &v
	}
	if v := c.Query("q"); v != "" {
		filter.SearchTerm = &v
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(raw)))
		}
	}
	for _, raw := range strings.Split(c.Query("priority"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(raw)))
		}
	}
	return filter
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func ticketSummary(t *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                 t.ID,
		TicketNumber:       t.TicketNumber,
		CustomerID:         t.CustomerID,
		Title:              t.Title,
		Status:             t.Status,
		Priority:           t.Priority,
		ScheduledAt:        t.ScheduledAt,
		ExpectedCompletion: t.ExpectedCompletion,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func ticketDetail(details *service.TicketDetails) dto.TicketDetailResponse {
	t := details.Ticket
	resp := dto.TicketDetailResponse{
		ID:                 t.ID,
		TicketNumber:       t.TicketNumber,
		CustomerID:         t.CustomerID,
		CreatedBy:          t.CreatedBy,
		Title:              t.Title,
		Description:        t.Description,
		Status:             t.Status,
		Priority:           t.Priority,
		ScheduledAt:        t.ScheduledAt,
		StartedAt:          t.StartedAt,
		EndedAt:            t.EndedAt,
		ExpectedCompletion: t.ExpectedCompletion,
		Amount:             t.Amount,
		TechnicianNotes:    t.TechnicianNotes,
		CustomerNotes:      t.CustomerNotes,
		DeviceBrand:        t.DeviceBrand,
		DeviceModel:        t.DeviceModel,
		DeviceSerial:       t.DeviceSerial,
		PrimaryAssignee:    domain.PrimaryAssignee(details.Assignments),
		Progress:           details.Progress,
		Overdue:            details.Overdue,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
	resp.Tasks = make([]dto.TaskResponse, 0, len(details.Tasks))
	for i := range details.Tasks {
		resp.Tasks = append(resp.Tasks, taskResponse(&details.Tasks[i]))
	}
	resp.Assignments = make([]dto.AssignmentResponse, 0, len(details.Assignments))
	for i := range details.Assignments {
		resp.Assignments = append(resp.Assignments, assignmentResponse(&details.Assignments[i]))
	}
	return resp
}

func taskResponse(t *domain.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          t.ID,
		TicketID:    t.TicketID,
		Description: t.Description,
		Priority:    t.Priority,
		Completed:   t.Completed,
		CompletedAt: t.CompletedAt,
		CompletedBy: t.CompletedBy,
		CreatedAt:   t.CreatedAt,
	}
}

func assignmentResponse(a *domain.TicketAssignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		ID:         a.ID,
		UserID:     a.UserID,
		AssignedBy: a.AssignedBy,
		AssignedAt: a.AssignedAt,
		Active:     a.Active,
		RemovedAt:  a.RemovedAt,
	}
}

func auditRecordResponse(r *domain.AuditRecord) dto.AuditRecordResponse {
	return dto.AuditRecordResponse{
		ID:          r.ID,
		Action:      r.Action,
		EntityType:  r.EntityType,
		EntityID:    r.EntityID,
		ActorID:     r.ActorID,
		Description: r.Description,
		OldValues:   r.OldValues,
		NewValues:   r.NewValues,
		CreatedAt:   r.CreatedAt,
	}
}
