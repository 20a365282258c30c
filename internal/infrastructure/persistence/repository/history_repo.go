package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository. History rows are
// append-only.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history row
func (r *HistoryRepository) Create(ctx context.Context, h *entity.PhaseHistory) error {
	query := `
		INSERT INTO phase_history (company_id, task_id, from_phase_id, to_phase_id, actor_id, note)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var note sql.NullString
	if h.Note != "" {
		note = sql.NullString{String: h.Note, Valid: true}
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		h.CompanyID,
		h.TaskID,
		nullInt64(h.FromPhaseID),
		h.ToPhaseID,
		h.ActorID,
		note,
	)
	if err != nil {
		r.logger.Error("Failed to create history entry",
			zap.Int64("task_id", h.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create history entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	h.ID = id
	return nil
}

// GetByTaskID retrieves the task's history, oldest first
func (r *HistoryRepository) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.PhaseHistory, error) {
	query := `
		SELECT id, company_id, task_id, from_phase_id, to_phase_id, actor_id, note, created_at
		FROM phase_history
		WHERE task_id = ?
		ORDER BY id
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to get history by task ID",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.PhaseHistory
	for rows.Next() {
		var h entity.PhaseHistory
		var fromPhaseID sql.NullInt64
		var note sql.NullString

		err := rows.Scan(
			&h.ID,
			&h.CompanyID,
			&h.TaskID,
			&fromPhaseID,
			&h.ToPhaseID,
			&h.ActorID,
			&note,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		if fromPhaseID.Valid {
			h.FromPhaseID = &fromPhaseID.Int64
		}
		if note.Valid {
			h.Note = note.String
		}
		entries = append(entries, &h)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
