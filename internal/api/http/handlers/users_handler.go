package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// UsersHandler exposes authentication and account endpoints.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST /auth/register. Self-registered accounts always get
// the USER role; staff roles are granted through CreateStaff.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, token, exp, err := h.auth.RegisterUser(c.Context(), req.Name, req.Email, req.Password, domain.RoleUser)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": userResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// CreateStaff handles POST /admin/users. Admin only.
func (h *UsersHandler) CreateStaff(c *fiber.Ctx) error {
	var req dto.CreateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	switch req.Role {
	case domain.RoleAdmin, domain.RoleTechnician, domain.RoleCustomerRep, domain.RoleUser:
	default:
		return apperrors.NewValidationError("unknown role", map[string]any{"role": req.Role})
	}
	user, _, _, err := h.auth.RegisterUser(c.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, token, exp, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": userResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// RequestPasswordReset handles POST /auth/password/reset/request. The
// response is the same whether or not the email exists.
func (h *UsersHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if _, err := h.auth.RequestPasswordReset(c.Context(), req.Email); err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			return err
		}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "reset requested"}})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm.
func (h *UsersHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.auth.ConfirmPasswordReset(c.Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password updated"}})
}

// ChangePassword handles POST /auth/password/change.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.auth.ChangePassword(c.Context(), actor.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password updated"}})
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Active: u.Active,
	}
}
