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

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new workflow
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	query := `
		INSERT INTO workflows (company_id, name, task_type, is_default)
		VALUES (?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		wf.CompanyID,
		wf.Name,
		wf.TaskType,
		wf.IsDefault,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow",
			zap.Int64("company_id", wf.CompanyID),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	wf.ID = id
	return nil
}

// CreatePhase creates a new phase
func (r *WorkflowRepository) CreatePhase(ctx context.Context, p *entity.Phase) error {
	query := `
		INSERT INTO phases (
			workflow_id, name, phase_order, color, allowed_roles,
			requires_approval, is_start_phase, is_end_phase
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	roles, err := marshalRoles(p.AllowedRoles)
	if err != nil {
		return err
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		p.WorkflowID,
		p.Name,
		p.Order,
		p.Color,
		roles,
		p.RequiresApproval,
		p.IsStartPhase,
		p.IsEndPhase,
	)
	if err != nil {
		r.logger.Error("Failed to create phase",
			zap.Int64("workflow_id", p.WorkflowID),
			zap.String("name", p.Name),
			zap.Error(err))
		return fmt.Errorf("failed to create phase: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	p.ID = id
	return nil
}

// CreateTransition creates a new transition
func (r *WorkflowRepository) CreateTransition(ctx context.Context, t *entity.Transition) error {
	query := `
		INSERT INTO transitions (workflow_id, from_phase_id, to_phase_id, name, notify_roles)
		VALUES (?, ?, ?, ?, ?)
	`

	roles, err := marshalRoles(t.NotifyRoles)
	if err != nil {
		return err
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		t.WorkflowID,
		t.FromPhaseID,
		t.ToPhaseID,
		t.Name,
		roles,
	)
	if err != nil {
		r.logger.Error("Failed to create transition",
			zap.Int64("workflow_id", t.WorkflowID),
			zap.Error(err))
		return fmt.Errorf("failed to create transition: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	t.ID = id
	return nil
}

// GetByID retrieves a workflow by its ID
func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	query := `
		SELECT id, company_id, name, task_type, is_default, created_at, updated_at
		FROM workflows
		WHERE id = ?
	`

	wf, err := r.scanWorkflow(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow %d: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get workflow by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return wf, nil
}

// GetPhases retrieves all phases of a workflow ordered by phase order
func (r *WorkflowRepository) GetPhases(ctx context.Context, workflowID int64) ([]*entity.Phase, error) {
	query := `
		SELECT id, workflow_id, name, phase_order, color, allowed_roles,
			requires_approval, is_start_phase, is_end_phase, created_at, updated_at
		FROM phases
		WHERE workflow_id = ?
		ORDER BY phase_order
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		r.logger.Error("Failed to get phases",
			zap.Int64("workflow_id", workflowID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get phases: %w", err)
	}
	defer rows.Close()

	var phases []*entity.Phase
	for rows.Next() {
		p, err := r.scanPhaseRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		phases = append(phases, p)
	}

	return phases, rows.Err()
}

// GetPhase retrieves a single phase by its ID
func (r *WorkflowRepository) GetPhase(ctx context.Context, id int64) (*entity.Phase, error) {
	query := `
		SELECT id, workflow_id, name, phase_order, color, allowed_roles,
			requires_approval, is_start_phase, is_end_phase, created_at, updated_at
		FROM phases
		WHERE id = ?
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to get phase",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get phase: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get phase: %w", err)
		}
		return nil, fmt.Errorf("phase %d: %w", id, lifecycle.ErrNotFound)
	}

	p, err := r.scanPhaseRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan phase: %w", err)
	}
	return p, nil
}

// GetTransitions retrieves all transitions of a workflow
func (r *WorkflowRepository) GetTransitions(ctx context.Context, workflowID int64) ([]*entity.Transition, error) {
	query := `
		SELECT id, workflow_id, from_phase_id, to_phase_id, name, notify_roles
		FROM transitions
		WHERE workflow_id = ?
		ORDER BY id
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		r.logger.Error("Failed to get transitions",
			zap.Int64("workflow_id", workflowID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*entity.Transition
	for rows.Next() {
		var t entity.Transition
		var name, roles sql.NullString

		err := rows.Scan(&t.ID, &t.WorkflowID, &t.FromPhaseID, &t.ToPhaseID, &name, &roles)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		if name.Valid {
			t.Name = name.String
		}
		if t.NotifyRoles, err = unmarshalRoles(roles); err != nil {
			return nil, err
		}
		transitions = append(transitions, &t)
	}

	return transitions, rows.Err()
}

// ListByCompany retrieves all workflows owned by a company
func (r *WorkflowRepository) ListByCompany(ctx context.Context, companyID int64) ([]*entity.Workflow, error) {
	query := `
		SELECT id, company_id, name, task_type, is_default, created_at, updated_at
		FROM workflows
		WHERE company_id = ?
		ORDER BY id
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list workflows",
			zap.Int64("company_id", companyID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*entity.Workflow
	for rows.Next() {
		var wf entity.Workflow
		err := rows.Scan(&wf.ID, &wf.CompanyID, &wf.Name, &wf.TaskType,
			&wf.IsDefault, &wf.CreatedAt, &wf.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, &wf)
	}

	return workflows, rows.Err()
}

// GetDefaultForTaskType retrieves the company's default workflow for a task
// type
func (r *WorkflowRepository) GetDefaultForTaskType(ctx context.Context, companyID int64, taskType string) (*entity.Workflow, error) {
	query := `
		SELECT id, company_id, name, task_type, is_default, created_at, updated_at
		FROM workflows
		WHERE company_id = ? AND task_type = ? AND is_default = TRUE
		ORDER BY id DESC
		LIMIT 1
	`

	wf, err := r.scanWorkflow(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, companyID, taskType))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("default %s workflow for company %d: %w",
			taskType, companyID, lifecycle.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get default workflow",
			zap.Int64("company_id", companyID),
			zap.String("task_type", taskType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get default workflow: %w", err)
	}

	return wf, nil
}

// scanWorkflow scans a single workflow row
func (r *WorkflowRepository) scanWorkflow(row *sql.Row) (*entity.Workflow, error) {
	var wf entity.Workflow
	err := row.Scan(&wf.ID, &wf.CompanyID, &wf.Name, &wf.TaskType,
		&wf.IsDefault, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

// scanPhaseRow scans a single phase from a rows cursor
func (r *WorkflowRepository) scanPhaseRow(rows *sql.Rows) (*entity.Phase, error) {
	var p entity.Phase
	var color, roles sql.NullString

	err := rows.Scan(
		&p.ID,
		&p.WorkflowID,
		&p.Name,
		&p.Order,
		&color,
		&roles,
		&p.RequiresApproval,
		&p.IsStartPhase,
		&p.IsEndPhase,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if color.Valid {
		p.Color = color.String
	}
	if p.AllowedRoles, err = unmarshalRoles(roles); err != nil {
		return nil, err
	}
	return &p, nil
}

// marshalRoles stores a role set as JSON text; an empty set is NULL.
func marshalRoles(roles []string) (sql.NullString, error) {
	if len(roles) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal roles: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalRoles restores a role set from JSON text.
func unmarshalRoles(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var roles []string
	if err := json.Unmarshal([]byte(raw.String), &roles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roles: %w", err)
	}
	return roles, nil
}

// Verify interface compliance
var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
