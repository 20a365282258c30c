package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/infrastructure/persistence/sqlite"
)

const subtaskColumns = `id, task_id, title, description, assigned_to_id,
	phase_id, is_completed, created_at, updated_at`

// SubtaskRepository implements port.SubtaskRepository
type SubtaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubtaskRepository creates a new subtask repository
func NewSubtaskRepository(db *sql.DB, logger *zap.Logger) port.SubtaskRepository {
	return &SubtaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new subtask
func (r *SubtaskRepository) Create(ctx context.Context, st *entity.Subtask) error {
	query := `
		INSERT INTO subtasks (task_id, title, description, assigned_to_id, phase_id, is_completed)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var description sql.NullString
	if st.Description != "" {
		description = sql.NullString{String: st.Description, Valid: true}
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		st.TaskID,
		st.Title,
		description,
		nullInt64(st.AssignedToID),
		nullInt64(st.PhaseID),
		st.IsCompleted,
	)
	if err != nil {
		r.logger.Error("Failed to create subtask",
			zap.Int64("task_id", st.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create subtask: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	st.ID = id
	return nil
}

// GetByID retrieves a subtask by its ID
func (r *SubtaskRepository) GetByID(ctx context.Context, id int64) (*entity.Subtask, error) {
	query := `SELECT ` + subtaskColumns + ` FROM subtasks WHERE id = ?`

	st, err := r.scanSubtask(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subtask %d: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get subtask by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subtask: %w", err)
	}

	return st, nil
}

// GetByTaskID retrieves all subtasks of a parent task
func (r *SubtaskRepository) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Subtask, error) {
	query := `SELECT ` + subtaskColumns + ` FROM subtasks WHERE task_id = ? ORDER BY id`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to get subtasks by task ID",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subtasks: %w", err)
	}
	defer rows.Close()

	return r.scanSubtasks(rows)
}

// Update persists the subtask's mirrored fields
func (r *SubtaskRepository) Update(ctx context.Context, st *entity.Subtask) error {
	query := `
		UPDATE subtasks
		SET title = ?, description = ?, assigned_to_id = ?, phase_id = ?,
			is_completed = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	var description sql.NullString
	if st.Description != "" {
		description = sql.NullString{String: st.Description, Valid: true}
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		st.Title,
		description,
		nullInt64(st.AssignedToID),
		nullInt64(st.PhaseID),
		st.IsCompleted,
		st.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update subtask",
			zap.Int64("id", st.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update subtask: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("subtask %d: %w", st.ID, lifecycle.ErrNotFound)
	}

	return nil
}

// ListOrphaned retrieves assigned subtasks that have no linked task
func (r *SubtaskRepository) ListOrphaned(ctx context.Context) ([]*entity.Subtask, error) {
	query := `
		SELECT s.id, s.task_id, s.title, s.description, s.assigned_to_id,
			s.phase_id, s.is_completed, s.created_at, s.updated_at
		FROM subtasks s
		LEFT JOIN tasks t ON t.subtask_id = s.id
		WHERE s.assigned_to_id IS NOT NULL AND t.id IS NULL
		ORDER BY s.id
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list orphaned subtasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list orphaned subtasks: %w", err)
	}
	defer rows.Close()

	return r.scanSubtasks(rows)
}

// scanSubtask scans a single subtask row
func (r *SubtaskRepository) scanSubtask(row *sql.Row) (*entity.Subtask, error) {
	var st entity.Subtask
	var description sql.NullString
	var assignedToID, phaseID sql.NullInt64

	err := row.Scan(
		&st.ID,
		&st.TaskID,
		&st.Title,
		&description,
		&assignedToID,
		&phaseID,
		&st.IsCompleted,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	mapNullableSubtaskFields(&st, description, assignedToID, phaseID)
	return &st, nil
}

// scanSubtasks scans multiple subtask rows
func (r *SubtaskRepository) scanSubtasks(rows *sql.Rows) ([]*entity.Subtask, error) {
	var subtasks []*entity.Subtask

	for rows.Next() {
		var st entity.Subtask
		var description sql.NullString
		var assignedToID, phaseID sql.NullInt64

		err := rows.Scan(
			&st.ID,
			&st.TaskID,
			&st.Title,
			&description,
			&assignedToID,
			&phaseID,
			&st.IsCompleted,
			&st.CreatedAt,
			&st.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}

		mapNullableSubtaskFields(&st, description, assignedToID, phaseID)
		subtasks = append(subtasks, &st)
	}

	return subtasks, rows.Err()
}

// mapNullableSubtaskFields maps nullable columns onto the entity
func mapNullableSubtaskFields(st *entity.Subtask, description sql.NullString, assignedToID, phaseID sql.NullInt64) {
	if description.Valid {
		st.Description = description.String
	}
	if assignedToID.Valid {
		st.AssignedToID = &assignedToID.Int64
	}
	if phaseID.Valid {
		st.PhaseID = &phaseID.Int64
	}
}

// Verify interface compliance
var _ port.SubtaskRepository = (*SubtaskRepository)(nil)
