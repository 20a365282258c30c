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

const approvalColumns = `id, company_id, task_id, requested_phase_id, requested_by_id,
	approved_by_id, status, decision, note, resolved_at, created_at`

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new pending approval. The partial unique index on
// pending approvals rejects a second pending row for the same task.
func (r *ApprovalRepository) Create(ctx context.Context, a *entity.PhaseApproval) error {
	query := `
		INSERT INTO phase_approvals (
			company_id, task_id, requested_phase_id, requested_by_id, status, note
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	var note sql.NullString
	if a.Note != "" {
		note = sql.NullString{String: a.Note, Valid: true}
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		a.CompanyID,
		a.TaskID,
		a.RequestedPhaseID,
		a.RequestedByID,
		a.Status,
		note,
	)
	if err != nil {
		r.logger.Error("Failed to create approval",
			zap.Int64("task_id", a.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to create approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	a.ID = id
	return nil
}

// GetByID retrieves an approval by its ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id int64) (*entity.PhaseApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM phase_approvals WHERE id = ?`

	a, err := r.scanApproval(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("approval %d: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get approval by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	return a, nil
}

// GetPendingByTaskID retrieves the task's single pending approval
func (r *ApprovalRepository) GetPendingByTaskID(ctx context.Context, taskID int64) (*entity.PhaseApproval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM phase_approvals
		WHERE task_id = ? AND status = ?`

	a, err := r.scanApproval(sqlite.Executor(ctx, r.db).
		QueryRowContext(ctx, query, taskID, entity.ApprovalStatusPending))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pending approval for task %d: %w", taskID, lifecycle.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get pending approval",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get pending approval: %w", err)
	}

	return a, nil
}

// Resolve marks a pending approval resolved with the given decision
func (r *ApprovalRepository) Resolve(ctx context.Context, id int64, decision string, approverID int64, resolvedAt time.Time) error {
	query := `
		UPDATE phase_approvals
		SET status = ?, decision = ?, approved_by_id = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		entity.ApprovalStatusResolved,
		decision,
		approverID,
		resolvedAt,
		id,
		entity.ApprovalStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to resolve approval",
			zap.Int64("id", id),
			zap.String("decision", decision),
			zap.Error(err))
		return fmt.Errorf("failed to resolve approval: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pending approval %d: %w", id, lifecycle.ErrNotFound)
	}

	return nil
}

// scanApproval scans a single approval row
func (r *ApprovalRepository) scanApproval(row *sql.Row) (*entity.PhaseApproval, error) {
	var a entity.PhaseApproval
	var approvedByID sql.NullInt64
	var decision, note sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.CompanyID,
		&a.TaskID,
		&a.RequestedPhaseID,
		&a.RequestedByID,
		&approvedByID,
		&a.Status,
		&decision,
		&note,
		&resolvedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedByID.Valid {
		a.ApprovedByID = &approvedByID.Int64
	}
	if decision.Valid {
		a.Decision = decision.String
	}
	if note.Valid {
		a.Note = note.String
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}

	return &a, nil
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
