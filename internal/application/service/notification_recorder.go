package service

import (
	"context"
	"time"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/event"
)

// NotificationRecorder turns lifecycle events into persisted notification
// rows. Delivery to an external channel is out of scope; the rows are the
// outbox.
type NotificationRecorder struct {
	notifications port.NotificationRepository
	logger        Logger
}

// NewNotificationRecorder creates a new NotificationRecorder
func NewNotificationRecorder(notifications port.NotificationRepository, logger Logger) *NotificationRecorder {
	return &NotificationRecorder{
		notifications: notifications,
		logger:        logger,
	}
}

// Handle implements dispatcher.Handler.
func (r *NotificationRecorder) Handle(ctx context.Context, evt *event.Event) error {
	if len(evt.Recipients) == 0 {
		return nil
	}

	n := &entity.Notification{
		EventType:  string(evt.Type),
		TaskID:     evt.TaskID,
		CompanyID:  evt.CompanyID,
		Recipients: evt.Recipients,
		Status:     entity.NotificationStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := r.notifications.Create(ctx, n); err != nil {
		return err
	}

	// Recording is delivery for now, so the row goes straight to sent.
	if err := r.notifications.MarkSent(ctx, n.ID); err != nil {
		r.logger.Error("Failed to mark notification sent",
			"notification_id", n.ID, "error", err)
		return r.notifications.UpdateStatus(ctx, n.ID, entity.NotificationStatusFailed, err.Error())
	}

	r.logger.Info("Notification recorded",
		"event_type", evt.Type,
		"task_id", evt.TaskID,
		"recipients", len(evt.Recipients))

	return nil
}
