package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/repository"
)

// NotificationService delivers notifications for domain events. Delivery is
// fire-and-forget: failures are logged and never reach the operation that
// produced the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	redis      *redis.Client
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. The redis client may be nil;
// the event bridge is then disabled.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, redisClient *redis.Client, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		redis:      redisClient,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTaskCompleted, n.handleTaskCompleted)
}

// handleTicketCreated notifies the assignee (if any) and all active admins
// except the creator.
func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if ok && payload.AssigneeID != nil {
		n.deliver(ctx, *payload.AssigneeID, "ticket_assigned", event)
	}
	for _, admin := range n.activeAdmins(ctx) {
		if admin.ID == event.ActorID {
			continue
		}
		n.deliver(ctx, admin.ID, "ticket_created", event)
	}
	n.publishBridge(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	n.publishBridge(ctx, event)
	return nil
}

// handleStatusChanged notifies everyone assigned; completion and
// cancellation additionally go to the customer channel.
func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		for _, userID := range payload.AssigneeIDs {
			n.deliver(ctx, userID, "status_changed", event)
		}
		if payload.NotifyCustomer {
			n.logger.Info("customer notification queued",
				zap.String("ticket_id", event.TicketID),
				zap.String("customer_id", payload.CustomerID),
				zap.String("new_status", string(payload.NewStatus)))
			n.sendEmailStub(event)
		}
	}
	n.publishBridge(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.TicketAssignedPayload); ok && payload.AssigneeID != nil && !payload.Removed {
		n.deliver(ctx, *payload.AssigneeID, "ticket_assigned", event)
	}
	n.publishBridge(ctx, event)
	return nil
}

func (n *NotificationService) handleTaskCompleted(ctx context.Context, event events.Event) error {
	n.publishBridge(ctx, event)
	return nil
}

func (n *NotificationService) activeAdmins(ctx context.Context) []domain.User {
	active := true
	var result []domain.User
	for _, role := range []domain.UserRole{domain.RoleAdmin, domain.RoleSuperAdmin} {
		r := role
		admins, err := n.users.List(ctx, repository.UserFilter{Role: &r, Active: &active, Limit: 1000})
		if err != nil {
			n.logger.Warn("admin lookup for notification failed", zap.Error(err))
			continue
		}
		result = append(result, admins...)
	}
	return result
}

// deliver is the per-recipient delivery stub: structured log plus the
// configured outbound channels.
func (n *NotificationService) deliver(ctx context.Context, recipientID, kind string, event events.Event) {
	n.logger.Info("notification",
		zap.String("recipient", recipientID),
		zap.String("kind", kind),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
	n.sendWebhookStub(event)
}

// publishBridge republishes the event as JSON on the configured redis
// channel so external consumers (mail workers, dashboards) can pick it up.
func (n *NotificationService) publishBridge(ctx context.Context, event events.Event) {
	if n.redis == nil || strings.TrimSpace(n.cfg.EventChannel) == "" {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("event marshal failed", zap.Error(err))
		return
	}
	if err := n.redis.Publish(ctx, n.cfg.EventChannel, body).Err(); err != nil {
		n.logger.Warn("event publish failed",
			zap.String("channel", n.cfg.EventChannel),
			zap.Error(err))
	}
}

func (n *NotificationService) sendEmailStub(event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookStub(event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
