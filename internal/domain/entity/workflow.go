package entity

import "time"

// Workflow is a tenant-owned, named, ordered set of phases defining the
// lifecycle for one task type. Phases are data, not code: new workflows
// require no redeploy.
type Workflow struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Name      string    `json:"name"`
	TaskType  string    `json:"task_type"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Phase is one named state in a workflow. Order defines the default
// forward/back direction; AllowedRoles restricts who may move a task into
// this phase; RequiresApproval gates the transition behind an admin decision.
type Phase struct {
	ID               int64     `json:"id"`
	WorkflowID       int64     `json:"workflow_id"`
	Name             string    `json:"name"`
	Order            int       `json:"order"`
	Color            string    `json:"color,omitempty"`
	AllowedRoles     []string  `json:"allowed_roles"`
	RequiresApproval bool      `json:"requires_approval"`
	IsStartPhase     bool      `json:"is_start_phase"`
	IsEndPhase       bool      `json:"is_end_phase"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Transition is advisory metadata for a directed edge between two phases of
// the same workflow: a display name and the roles to notify when the edge is
// taken. It is not an authorization gate.
type Transition struct {
	ID          int64    `json:"id"`
	WorkflowID  int64    `json:"workflow_id"`
	FromPhaseID int64    `json:"from_phase_id"`
	ToPhaseID   int64    `json:"to_phase_id"`
	Name        string   `json:"name"`
	NotifyRoles []string `json:"notify_roles"`
}
