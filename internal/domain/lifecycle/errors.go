package lifecycle

import "errors"

var (
	// ErrNotFound is returned when a workflow, phase, task, subtask or
	// approval does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPhase is returned when a phase does not belong to the
	// task's workflow.
	ErrInvalidPhase = errors.New("phase does not belong to task workflow")

	// ErrForbidden is returned on any role, ownership or tenant violation.
	ErrForbidden = errors.New("forbidden")

	// ErrNoOpTransition is returned when a task is moved to its own
	// current phase. Rejected rather than silently accepted so history
	// stays meaningful.
	ErrNoOpTransition = errors.New("task already in target phase")

	// ErrApprovalAlreadyPending is returned when a second approval-gated
	// move is requested while one approval is still pending.
	ErrApprovalAlreadyPending = errors.New("approval already pending for task")

	// ErrConflictingUpdate is returned when the per-task version check
	// loses a race with a concurrent transition. Re-issuing the move is
	// safe.
	ErrConflictingUpdate = errors.New("conflicting concurrent update")
)

// Stable error codes surfaced to the UI layer. No internal detail crosses
// the boundary.
const (
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidPhase           = "INVALID_PHASE"
	CodeForbidden              = "FORBIDDEN"
	CodeNoOpTransition         = "NO_OP_TRANSITION"
	CodeApprovalAlreadyPending = "APPROVAL_ALREADY_PENDING"
	CodeConflictingUpdate      = "CONFLICTING_UPDATE"
	CodeInternal               = "INTERNAL"
)

// Code maps an error to its stable code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidPhase):
		return CodeInvalidPhase
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNoOpTransition):
		return CodeNoOpTransition
	case errors.Is(err, ErrApprovalAlreadyPending):
		return CodeApprovalAlreadyPending
	case errors.Is(err, ErrConflictingUpdate):
		return CodeConflictingUpdate
	default:
		return CodeInternal
	}
}
