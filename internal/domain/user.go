package domain

import "time"

// UserRole enumerates staff account roles.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "SUPER_ADMIN"
	RoleAdmin       UserRole = "ADMIN"
	RoleTechnician  UserRole = "TECHNICIAN"
	RoleCustomerRep UserRole = "CUSTOMER_REP"
	RoleUser        UserRole = "USER"
)

// User is a staff account operating on tickets.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds an administrative role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
