package worker

import (
	"github.com/spec-kit/field-service/internal/service"
)

// StartNotificationWorker registers notification handlers on the dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
