package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// CustomersHandler exposes customer management endpoints.
type CustomersHandler struct {
	service *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customerService *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{service: customerService}
}

// CreateCustomer POST /customers.
func (h *CustomersHandler) CreateCustomer(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	customer, err := h.service.CreateCustomer(c.Context(), customerInput(req), actor.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": customerResponse(customer)})
}

// UpdateCustomer PATCH /customers/:id.
func (h *CustomersHandler) UpdateCustomer(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	customer, err := h.service.UpdateCustomer(c.Context(), c.Params("id"), customerInput(req), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// DeactivateCustomer POST /customers/:id/deactivate.
func (h *CustomersHandler) DeactivateCustomer(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	customer, err := h.service.DeactivateCustomer(c.Context(), c.Params("id"), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// GetCustomer GET /customers/:id.
func (h *CustomersHandler) GetCustomer(c *fiber.Ctx) error {
	customer, err := h.service.GetCustomer(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// ListCustomers GET /customers.
func (h *CustomersHandler) ListCustomers(c *fiber.Ctx) error {
	filter := repository.CustomerFilter{
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if v := c.Query("q"); v != "" {
		filter.SearchTerm = &v
	}
	if v := c.Query("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}
	customers, err := h.service.ListCustomers(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.CustomerResponse, 0, len(customers))
	for i := range customers {
		items = append(items, customerResponse(&customers[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func customerInput(req dto.CustomerRequest) service.CustomerInput {
	return service.CustomerInput{
		Name:    req.Name,
		TaxID:   req.TaxID,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
}

func customerResponse(c *domain.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		TaxID:     c.TaxID,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
