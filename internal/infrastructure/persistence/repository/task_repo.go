package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/infrastructure/persistence/sqlite"
)

const taskColumns = `id, company_id, workflow_id, current_phase_id, version,
	title, description, task_type, priority,
	assignee_id, creator_id, due_date, parent_task_id, subtask_id,
	completed_at, created_at, updated_at`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new task at version 1
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (
			company_id, workflow_id, current_phase_id, version,
			title, description, task_type, priority,
			assignee_id, creator_id, due_date, parent_task_id, subtask_id
		) VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var description sql.NullString
	if task.Description != "" {
		description = sql.NullString{String: task.Description, Valid: true}
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		task.CompanyID,
		task.WorkflowID,
		task.CurrentPhaseID,
		task.Title,
		description,
		task.TaskType,
		task.Priority,
		nullInt64(task.AssigneeID),
		task.CreatorID,
		nullTime(task.DueDate),
		nullInt64(task.ParentTaskID),
		nullInt64(task.SubtaskID),
	)
	if err != nil {
		r.logger.Error("Failed to create task",
			zap.Int64("company_id", task.CompanyID),
			zap.String("title", task.Title),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	task.Version = 1
	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := r.scanTask(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %d: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// GetBySubtaskID retrieves the linked task spawned from a subtask
func (r *TaskRepository) GetBySubtaskID(ctx context.Context, subtaskID int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE subtask_id = ?`

	task, err := r.scanTask(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, subtaskID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("linked task for subtask %d: %w", subtaskID, lifecycle.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get task by subtask ID",
			zap.Int64("subtask_id", subtaskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// UpdateCurrentPhase moves the phase pointer with an optimistic version
// check. completed_at is only ever set, never cleared.
func (r *TaskRepository) UpdateCurrentPhase(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error {
	query := `
		UPDATE tasks
		SET current_phase_id = ?, version = version + 1,
			completed_at = COALESCE(completed_at, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		phaseID,
		nullTime(completedAt),
		id,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update task phase",
			zap.Int64("id", id),
			zap.Int64("phase_id", phaseID),
			zap.Error(err))
		return fmt.Errorf("failed to update task phase: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the task is gone or a concurrent writer bumped the
		// version first; tell them apart for the caller.
		var exists int
		err := sqlite.Executor(ctx, r.db).
			QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("task %d: %w", id, lifecycle.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check task existence: %w", err)
		}
		return fmt.Errorf("task %d version %d: %w", id, expectedVersion, lifecycle.ErrConflictingUpdate)
	}

	return nil
}

// UpdateAssignee updates the task's assignee
func (r *TaskRepository) UpdateAssignee(ctx context.Context, id, userID int64) error {
	query := `UPDATE tasks SET assignee_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, userID, id)
	if err != nil {
		r.logger.Error("Failed to update task assignee",
			zap.Int64("id", id),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update task assignee: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d: %w", id, lifecycle.ErrNotFound)
	}

	return nil
}

// CreateAssignment records a task assignment
func (r *TaskRepository) CreateAssignment(ctx context.Context, a *entity.TaskAssignment) error {
	query := `
		INSERT INTO task_assignments (task_id, user_id, assigned_by_id)
		VALUES (?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		a.TaskID, a.UserID, a.AssignedByID)
	if err != nil {
		r.logger.Error("Failed to create task assignment",
			zap.Int64("task_id", a.TaskID),
			zap.Int64("user_id", a.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create task assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	return nil
}

// ListByCompany retrieves tasks of a company, newest first
func (r *TaskRepository) ListByCompany(ctx context.Context, companyID int64, limit, offset int) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE company_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, companyID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list tasks",
			zap.Int64("company_id", companyID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := r.scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// scanTask scans a single task row
func (r *TaskRepository) scanTask(row *sql.Row) (*entity.Task, error) {
	var task entity.Task
	var description sql.NullString
	var assigneeID, parentTaskID, subtaskID sql.NullInt64
	var dueDate, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.CompanyID,
		&task.WorkflowID,
		&task.CurrentPhaseID,
		&task.Version,
		&task.Title,
		&description,
		&task.TaskType,
		&task.Priority,
		&assigneeID,
		&task.CreatorID,
		&dueDate,
		&parentTaskID,
		&subtaskID,
		&completedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	mapNullableTaskFields(&task, description, assigneeID, parentTaskID, subtaskID, dueDate, completedAt)
	return &task, nil
}

// scanTaskRow scans a task from a rows cursor
func (r *TaskRepository) scanTaskRow(rows *sql.Rows) (*entity.Task, error) {
	var task entity.Task
	var description sql.NullString
	var assigneeID, parentTaskID, subtaskID sql.NullInt64
	var dueDate, completedAt sql.NullTime

	err := rows.Scan(
		&task.ID,
		&task.CompanyID,
		&task.WorkflowID,
		&task.CurrentPhaseID,
		&task.Version,
		&task.Title,
		&description,
		&task.TaskType,
		&task.Priority,
		&assigneeID,
		&task.CreatorID,
		&dueDate,
		&parentTaskID,
		&subtaskID,
		&completedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	mapNullableTaskFields(&task, description, assigneeID, parentTaskID, subtaskID, dueDate, completedAt)
	return &task, nil
}

// mapNullableTaskFields maps nullable columns onto the entity
func mapNullableTaskFields(task *entity.Task, description sql.NullString,
	assigneeID, parentTaskID, subtaskID sql.NullInt64, dueDate, completedAt sql.NullTime) {
	if description.Valid {
		task.Description = description.String
	}
	if assigneeID.Valid {
		task.AssigneeID = &assigneeID.Int64
	}
	if parentTaskID.Valid {
		task.ParentTaskID = &parentTaskID.Int64
	}
	if subtaskID.Valid {
		task.SubtaskID = &subtaskID.Int64
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
}

// nullInt64 wraps an optional id for binding
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// nullTime wraps an optional timestamp for binding
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)
