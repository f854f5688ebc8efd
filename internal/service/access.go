package service

import (
	"github.com/spec-kit/field-service/internal/domain"
)

// CanModifyTicket is the authorization gate for every mutating ticket
// operation: admins always pass, technicians only when linked to the
// ticket through an active assignment. It is a pure function of the role
// and the assignment set and is re-evaluated on every call, since
// assignments change between calls.
func CanModifyTicket(user *domain.User, assignments []domain.TicketAssignment) bool {
	if user == nil || !user.Active {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	if user.Role != domain.RoleTechnician {
		return false
	}
	for _, a := range assignments {
		if a.Active && a.UserID == user.ID {
			return true
		}
	}
	return false
}

// CanViewTicket grants read access. Customer representatives see all
// tickets but never gain mutation rights through this.
func CanViewTicket(user *domain.User) bool {
	if user == nil || !user.Active {
		return false
	}
	switch user.Role {
	case domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleTechnician, domain.RoleCustomerRep, domain.RoleUser:
		return true
	default:
		return false
	}
}

// CanCreateTicket gates ticket creation. Customer representatives are
// read-only throughout.
func CanCreateTicket(user *domain.User) bool {
	if user == nil || !user.Active {
		return false
	}
	return user.Role != domain.RoleCustomerRep
}
