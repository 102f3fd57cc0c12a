package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StartNotificationWorker registers notification handlers and, when a Redis
// publisher is given, forwards every event to the change feed.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, feed *events.RedisPublisher, logger *zap.Logger) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if dispatcher == nil || feed == nil {
		return
	}
	events.SubscribeAll(dispatcher, func(ctx context.Context, event events.Event) error {
		if err := feed.Handle(ctx, event); err != nil {
			logger.Warn("change feed publish failed",
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
		return nil
	})
}
