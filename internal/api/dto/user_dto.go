package dto

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// RegisterRequest payload for self-service registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateStaffRequest payload for admin-created staff accounts.
type CreateStaffRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse representation of a staff account.
type UserResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   domain.UserRole `json:"role"`
	Active bool            `json:"active"`
}

// PasswordResetRequest initiates a reset flow.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest completes a reset flow.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// PasswordChangeRequest changes the current user password.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
