package service

import (
	"context"
	"testing"

	"github.com/spec-kit/field-service/internal/domain"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

func newCustomerTestEnv() (*CustomerService, *testEnv) {
	env := newTestEnv()
	svc := NewCustomerService(CustomerDependencies{
		CustomerRepo: env.customers,
		TicketRepo:   env.tickets,
		UserRepo:     env.users,
		AuditRepo:    env.audit,
	})
	return svc, env
}

func TestCreateCustomerRequiresName(t *testing.T) {
	svc, env := newCustomerTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)

	_, err := svc.CreateCustomer(context.Background(), CustomerInput{Name: "   "}, "admin-1")
	if apperrors.CodeOf(err) != apperrors.CodeValidationFailed {
		t.Fatalf("expected %s, got %v", apperrors.CodeValidationFailed, err)
	}
}

func TestCreateCustomerForbiddenForCustomerRep(t *testing.T) {
	svc, env := newCustomerTestEnv()
	env.addUser("rep-1", domain.RoleCustomerRep, true)

	_, err := svc.CreateCustomer(context.Background(), CustomerInput{Name: "Acme"}, "rep-1")
	if apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Fatalf("expected %s, got %v", apperrors.CodeForbidden, err)
	}
}

func TestCreateCustomerStartsActive(t *testing.T) {
	svc, env := newCustomerTestEnv()
	env.addUser("tech-1", domain.RoleTechnician, true)

	customer, err := svc.CreateCustomer(context.Background(), CustomerInput{Name: "  Acme Appliances  "}, "tech-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !customer.Active {
		t.Error("new customer must start active")
	}
	if customer.Name != "Acme Appliances" {
		t.Errorf("Name = %q", customer.Name)
	}
	if len(env.audit.records) != 1 || env.audit.records[0].Action != domain.AuditCustomerCreated {
		t.Errorf("audit records = %+v", env.audit.records)
	}
}

func TestDeactivateCustomerAdminOnly(t *testing.T) {
	svc, env := newCustomerTestEnv()
	env.addUser("tech-1", domain.RoleTechnician, true)
	env.addCustomer("cust-1", true)

	_, err := svc.DeactivateCustomer(context.Background(), "cust-1", "tech-1")
	if apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Fatalf("expected %s, got %v", apperrors.CodeForbidden, err)
	}
}

func TestDeactivateCustomerBlockedByOpenTickets(t *testing.T) {
	svc, env := newCustomerTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addCustomer("cust-1", true)
	env.tickets.openByCust["cust-1"] = 2

	_, err := svc.DeactivateCustomer(context.Background(), "cust-1", "admin-1")
	if apperrors.CodeOf(err) != apperrors.CodePreconditionFailed {
		t.Fatalf("expected %s, got %v", apperrors.CodePreconditionFailed, err)
	}
}

func TestDeactivateCustomerSucceedsWithoutOpenTickets(t *testing.T) {
	svc, env := newCustomerTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addCustomer("cust-1", true)

	customer, err := svc.DeactivateCustomer(context.Background(), "cust-1", "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customer.Active {
		t.Error("customer still active")
	}
}

func TestUpdateCustomerUnknownID(t *testing.T) {
	svc, env := newCustomerTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)

	_, err := svc.UpdateCustomer(context.Background(), "missing", CustomerInput{Name: "Acme"}, "admin-1")
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("expected %s, got %v", apperrors.CodeNotFound, err)
	}
}
