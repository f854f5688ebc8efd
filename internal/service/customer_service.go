package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// CustomerService manages the customer directory. Customers are never hard
// deleted; deactivation is blocked while open tickets exist.
type CustomerService struct {
	customers repository.CustomerRepository
	tickets   repository.TicketRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	logger    *zap.Logger
}

// CustomerDependencies bundles repositories for the customer service.
type CustomerDependencies struct {
	CustomerRepo repository.CustomerRepository
	TicketRepo   repository.TicketRepository
	UserRepo     repository.UserRepository
	AuditRepo    repository.AuditRepository
	Logger       *zap.Logger
}

// NewCustomerService constructs the service.
func NewCustomerService(deps CustomerDependencies) *CustomerService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{
		customers: deps.CustomerRepo,
		tickets:   deps.TicketRepo,
		users:     deps.UserRepo,
		audit:     deps.AuditRepo,
		logger:    logger,
	}
}

// CustomerInput carries customer fields for create and update.
type CustomerInput struct {
	Name    string
	TaxID   string
	Email   string
	Phone   string
	Address string
}

// CreateCustomer registers a new active customer.
func (s *CustomerService) CreateCustomer(ctx context.Context, input CustomerInput, actorID string) (*domain.Customer, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleCustomerRep || !actor.Active {
		return nil, apperrors.NewForbidden("not allowed to manage customers")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewValidationError("customer name is required", nil)
	}

	customer := &domain.Customer{
		Name:    strings.TrimSpace(input.Name),
		TaxID:   strings.TrimSpace(input.TaxID),
		Email:   strings.TrimSpace(input.Email),
		Phone:   strings.TrimSpace(input.Phone),
		Address: strings.TrimSpace(input.Address),
		Active:  true,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		s.logger.Error("customer create failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	s.record(ctx, &domain.AuditRecord{
		Action:      domain.AuditCustomerCreated,
		EntityType:  domain.EntityCustomer,
		EntityID:    customer.ID,
		ActorID:     actor.ID,
		Description: fmt.Sprintf("customer %s created", customer.Name),
		NewValues:   map[string]any{"name": customer.Name, "tax_id": customer.TaxID},
	})
	return customer, nil
}

// UpdateCustomer edits directory fields.
func (s *CustomerService) UpdateCustomer(ctx context.Context, customerID string, input CustomerInput, actorID string) (*domain.Customer, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleCustomerRep || !actor.Active {
		return nil, apperrors.NewForbidden("not allowed to manage customers")
	}
	customer, err := s.getCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewValidationError("customer name is required", nil)
	}

	old := map[string]any{"name": customer.Name, "email": customer.Email, "phone": customer.Phone}
	customer.Name = strings.TrimSpace(input.Name)
	customer.TaxID = strings.TrimSpace(input.TaxID)
	customer.Email = strings.TrimSpace(input.Email)
	customer.Phone = strings.TrimSpace(input.Phone)
	customer.Address = strings.TrimSpace(input.Address)

	if err := s.customers.Update(ctx, customer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": customerID})
		}
		s.logger.Error("customer update failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	s.record(ctx, &domain.AuditRecord{
		Action:      domain.AuditCustomerUpdated,
		EntityType:  domain.EntityCustomer,
		EntityID:    customer.ID,
		ActorID:     actor.ID,
		Description: fmt.Sprintf("customer %s updated", customer.Name),
		OldValues:   old,
		NewValues:   map[string]any{"name": customer.Name, "email": customer.Email, "phone": customer.Phone},
	})
	return customer, nil
}

// DeactivateCustomer soft-disables a customer with no open tickets.
func (s *CustomerService) DeactivateCustomer(ctx context.Context, customerID, actorID string) (*domain.Customer, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins can deactivate customers")
	}
	customer, err := s.getCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	open, err := s.tickets.CountOpenByCustomer(ctx, customer.ID)
	if err != nil {
		s.logger.Error("open ticket count failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	if open > 0 {
		return nil, apperrors.NewPreconditionFailed("customer has open tickets",
			map[string]any{"open_tickets": open})
	}

	customer.Active = false
	if err := s.customers.Update(ctx, customer); err != nil {
		s.logger.Error("customer deactivate failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	s.record(ctx, &domain.AuditRecord{
		Action:      domain.AuditCustomerUpdated,
		EntityType:  domain.EntityCustomer,
		EntityID:    customer.ID,
		ActorID:     actor.ID,
		Description: fmt.Sprintf("customer %s deactivated", customer.Name),
		OldValues:   map[string]any{"active": true},
		NewValues:   map[string]any{"active": false},
	})
	return customer, nil
}

// GetCustomer fetches a single customer.
func (s *CustomerService) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	return s.getCustomer(ctx, customerID)
}

// ListCustomers returns customers matching the filter.
func (s *CustomerService) ListCustomers(ctx context.Context, filter repository.CustomerFilter) ([]domain.Customer, error) {
	customers, err := s.customers.List(ctx, filter)
	if err != nil {
		s.logger.Error("customer list failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return customers, nil
}

func (s *CustomerService) getCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": customerID})
		}
		s.logger.Error("customer fetch failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return customer, nil
}

func (s *CustomerService) loadActor(ctx context.Context, actorID string) (*domain.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": actorID})
		}
		s.logger.Error("actor fetch failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return actor, nil
}

func (s *CustomerService) record(ctx context.Context, record *domain.AuditRecord) {
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
