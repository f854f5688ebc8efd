package service

import (
	"testing"

	"github.com/spec-kit/field-service/internal/domain"
)

func TestCanModifyTicket(t *testing.T) {
	links := []domain.TicketAssignment{
		{UserID: "tech-a", Active: true},
		{UserID: "tech-b", Active: false},
	}
	tests := []struct {
		name string
		user *domain.User
		want bool
	}{
		{"nil user", nil, false},
		{"admin", &domain.User{ID: "x", Role: domain.RoleAdmin, Active: true}, true},
		{"super admin", &domain.User{ID: "x", Role: domain.RoleSuperAdmin, Active: true}, true},
		{"inactive admin", &domain.User{ID: "x", Role: domain.RoleAdmin, Active: false}, false},
		{"assigned technician", &domain.User{ID: "tech-a", Role: domain.RoleTechnician, Active: true}, true},
		{"unassigned technician", &domain.User{ID: "tech-c", Role: domain.RoleTechnician, Active: true}, false},
		{"technician with inactive link", &domain.User{ID: "tech-b", Role: domain.RoleTechnician, Active: true}, false},
		{"customer rep", &domain.User{ID: "rep-1", Role: domain.RoleCustomerRep, Active: true}, false},
		{"plain user", &domain.User{ID: "u-1", Role: domain.RoleUser, Active: true}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanModifyTicket(tc.user, links); got != tc.want {
				t.Fatalf("CanModifyTicket = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanCreateTicket(t *testing.T) {
	if CanCreateTicket(&domain.User{Role: domain.RoleCustomerRep, Active: true}) {
		t.Error("customer rep must not create tickets")
	}
	if !CanCreateTicket(&domain.User{Role: domain.RoleTechnician, Active: true}) {
		t.Error("technician should create tickets")
	}
	if CanCreateTicket(&domain.User{Role: domain.RoleAdmin, Active: false}) {
		t.Error("inactive account must not create tickets")
	}
}

func TestCanViewTicket(t *testing.T) {
	if !CanViewTicket(&domain.User{Role: domain.RoleCustomerRep, Active: true}) {
		t.Error("customer rep has read access")
	}
	if CanViewTicket(&domain.User{Role: domain.RoleAdmin, Active: false}) {
		t.Error("inactive account has no access")
	}
	if CanViewTicket(nil) {
		t.Error("nil user has no access")
	}
}
