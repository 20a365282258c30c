package port

import (
	"context"
	"time"

	"github.com/taskdesk/taskdesk/internal/domain/entity"
)

// WorkflowRepository defines persistence operations for Workflow, Phase and
// Transition configuration. Repositories return lifecycle.ErrNotFound for
// missing rows.
type WorkflowRepository interface {
	// Create persists a workflow. The ID is filled in on return.
	Create(ctx context.Context, wf *entity.Workflow) error

	// CreatePhase persists a phase. The ID is filled in on return.
	CreatePhase(ctx context.Context, p *entity.Phase) error

	// CreateTransition persists a transition. The ID is filled in on
	// return.
	CreateTransition(ctx context.Context, t *entity.Transition) error

	// GetByID retrieves a workflow by its ID
	GetByID(ctx context.Context, id int64) (*entity.Workflow, error)

	// GetPhases retrieves all phases of a workflow
	GetPhases(ctx context.Context, workflowID int64) ([]*entity.Phase, error)

	// GetPhase retrieves a single phase by its ID
	GetPhase(ctx context.Context, id int64) (*entity.Phase, error)

	// GetTransitions retrieves all transitions of a workflow
	GetTransitions(ctx context.Context, workflowID int64) ([]*entity.Transition, error)

	// ListByCompany retrieves all workflows owned by a company
	ListByCompany(ctx context.Context, companyID int64) ([]*entity.Workflow, error)

	// GetDefaultForTaskType retrieves the company's default workflow for a
	// task type
	GetDefaultForTaskType(ctx context.Context, companyID int64, taskType string) (*entity.Workflow, error)
}

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *entity.Task) error

	// GetByID retrieves a task by its ID
	GetByID(ctx context.Context, id int64) (*entity.Task, error)

	// GetBySubtaskID retrieves the linked task spawned from a subtask, or
	// lifecycle.ErrNotFound when none exists
	GetBySubtaskID(ctx context.Context, subtaskID int64) (*entity.Task, error)

	// UpdateCurrentPhase moves the task's phase pointer with an optimistic
	// version check; returns lifecycle.ErrConflictingUpdate when the
	// expected version lost a race. completedAt is only ever set, never
	// cleared.
	UpdateCurrentPhase(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error

	// UpdateAssignee updates the task's assignee
	UpdateAssignee(ctx context.Context, id, userID int64) error

	// CreateAssignment records a task assignment
	CreateAssignment(ctx context.Context, a *entity.TaskAssignment) error

	// ListByCompany retrieves tasks of a company, newest first
	ListByCompany(ctx context.Context, companyID int64, limit, offset int) ([]*entity.Task, error)
}

// SubtaskRepository defines persistence operations for Subtask
type SubtaskRepository interface {
	// Create creates a new subtask
	Create(ctx context.Context, st *entity.Subtask) error

	// GetByID retrieves a subtask by its ID
	GetByID(ctx context.Context, id int64) (*entity.Subtask, error)

	// GetByTaskID retrieves all subtasks of a parent task
	GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Subtask, error)

	// Update persists the subtask's mirrored fields (assignee, phase,
	// completion)
	Update(ctx context.Context, st *entity.Subtask) error

	// ListOrphaned retrieves subtasks with a non-null assignee and no
	// linked task (the repairable legacy state)
	ListOrphaned(ctx context.Context) ([]*entity.Subtask, error)
}

// HistoryRepository defines persistence operations for PhaseHistory.
// Rows are append-only; there is no update or delete.
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.PhaseHistory) error
	GetByTaskID(ctx context.Context, taskID int64) ([]*entity.PhaseHistory, error)
}

// ApprovalRepository defines persistence operations for PhaseApproval
type ApprovalRepository interface {
	Create(ctx context.Context, a *entity.PhaseApproval) error
	GetByID(ctx context.Context, id int64) (*entity.PhaseApproval, error)

	// GetPendingByTaskID retrieves the task's single pending approval, or
	// lifecycle.ErrNotFound
	GetPendingByTaskID(ctx context.Context, taskID int64) (*entity.PhaseApproval, error)

	// Resolve marks an approval resolved with the given decision
	Resolve(ctx context.Context, id int64, decision string, approverID int64, resolvedAt time.Time) error
}

// UserRepository defines read operations for actor resolution
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	MarkSent(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, status, errorMsg string) error
	GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Notification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
