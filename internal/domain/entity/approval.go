package entity

import "time"

// PhaseApproval is a pending or resolved request to move a task into an
// approval-gated phase. A task has at most one PENDING approval at a time;
// the row is created instead of committing the move, and the move happens
// only when an administrator approves.
type PhaseApproval struct {
	ID               int64      `json:"id"`
	CompanyID        int64      `json:"company_id"`
	TaskID           int64      `json:"task_id"`
	RequestedPhaseID int64      `json:"requested_phase_id"`
	RequestedByID    int64      `json:"requested_by_id"`
	ApprovedByID     *int64     `json:"approved_by_id,omitempty"`
	Status           string     `json:"status"`
	Decision         string     `json:"decision,omitempty"`
	Note             string     `json:"note,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// IsPending reports whether the approval is still awaiting a decision.
func (a *PhaseApproval) IsPending() bool {
	return a.Status == ApprovalStatusPending
}
