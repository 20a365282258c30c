package entity

import "time"

// PhaseHistory is the append-only audit trail of committed phase moves.
// Rows are never mutated or deleted except by full workflow teardown.
// FromPhaseID is nil for the row recorded at task creation.
type PhaseHistory struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	TaskID      int64     `json:"task_id"`
	FromPhaseID *int64    `json:"from_phase_id,omitempty"`
	ToPhaseID   int64     `json:"to_phase_id"`
	ActorID     int64     `json:"actor_id"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
