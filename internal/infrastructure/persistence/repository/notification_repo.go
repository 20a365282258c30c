package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new notification record
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (event_type, task_id, company_id, recipients, status)
		VALUES (?, ?, ?, ?, ?)
	`

	recipients, err := json.Marshal(n.Recipients)
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		n.EventType,
		n.TaskID,
		n.CompanyID,
		string(recipients),
		n.Status,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("event_type", n.EventType),
			zap.Int64("task_id", n.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	n.ID = id
	return nil
}

// MarkSent marks a notification as sent
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE notifications
		SET status = ?, sent_at = CURRENT_TIMESTAMP, error_msg = NULL
		WHERE id = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		entity.NotificationStatusSent, id)
	if err != nil {
		r.logger.Error("Failed to mark notification sent",
			zap.Int64("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d: %w", id, lifecycle.ErrNotFound)
	}

	return nil
}

// UpdateStatus updates a notification's status and error message
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id int64, status, errorMsg string) error {
	query := `UPDATE notifications SET status = ?, error_msg = ? WHERE id = ?`

	var msg sql.NullString
	if errorMsg != "" {
		msg = sql.NullString{String: errorMsg, Valid: true}
	}

	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, status, msg, id)
	if err != nil {
		r.logger.Error("Failed to update notification status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	return nil
}

// GetByTaskID retrieves notifications recorded for a task
func (r *NotificationRepository) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Notification, error) {
	query := `
		SELECT id, event_type, task_id, company_id, recipients, status, error_msg, sent_at, created_at
		FROM notifications
		WHERE task_id = ?
		ORDER BY id
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to get notifications by task ID",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		var recipients string
		var errorMsg sql.NullString
		var sentAt sql.NullTime

		err := rows.Scan(
			&n.ID,
			&n.EventType,
			&n.TaskID,
			&n.CompanyID,
			&recipients,
			&n.Status,
			&errorMsg,
			&sentAt,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if err := json.Unmarshal([]byte(recipients), &n.Recipients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
		}
		if errorMsg.Valid {
			n.ErrorMsg = errorMsg.String
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
