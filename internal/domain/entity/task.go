package entity

import "time"

// Task belongs to one company and one workflow. CurrentPhaseID always
// references a phase of the task's own workflow. Version is bumped on every
// phase move and backs the optimistic lock that serializes concurrent
// transitions on the same task.
//
// A task with TaskType SUBTASK was spawned from a Subtask record: it carries
// the parent task in ParentTaskID and the originating subtask in SubtaskID.
// At most one task may reference a given SubtaskID.
type Task struct {
	ID             int64      `json:"id"`
	CompanyID      int64      `json:"company_id"`
	WorkflowID     int64      `json:"workflow_id"`
	CurrentPhaseID int64      `json:"current_phase_id"`
	Version        int64      `json:"version"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	TaskType       string     `json:"task_type"`
	Priority       string     `json:"priority,omitempty"`
	AssigneeID     *int64     `json:"assignee_id,omitempty"`
	CreatorID      int64      `json:"creator_id"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	ParentTaskID   *int64     `json:"parent_task_id,omitempty"`
	SubtaskID      *int64     `json:"subtask_id,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsSubtaskLink reports whether this task mirrors a subtask record.
func (t *Task) IsSubtaskLink() bool {
	return t.SubtaskID != nil
}

// Subtask is a lightweight checklist item on a parent task. Once a linked
// task exists (created lazily on first assignment), the linked task is the
// source of truth for phase and completion, and the synchronizer is the only
// writer of the mirrored fields here.
type Subtask struct {
	ID           int64     `json:"id"`
	TaskID       int64     `json:"task_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	AssignedToID *int64    `json:"assigned_to_id,omitempty"`
	PhaseID      *int64    `json:"phase_id,omitempty"`
	IsCompleted  bool      `json:"is_completed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TaskAssignment records who assigned a task to whom, and when.
type TaskAssignment struct {
	ID           int64     `json:"id"`
	TaskID       int64     `json:"task_id"`
	UserID       int64     `json:"user_id"`
	AssignedByID int64     `json:"assigned_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}
