package event

// Type identifies the type of domain event
type Type string

const (
	TypeTaskCreated       Type = "task.created"
	TypePhaseChanged      Type = "task.phase_changed"
	TypeApprovalRequested Type = "task.approval_requested"
	TypeApprovalResolved  Type = "task.approval_resolved"
	TypeSubtaskAssigned   Type = "subtask.assigned"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTaskCreated,
		TypePhaseChanged,
		TypeApprovalRequested,
		TypeApprovalResolved,
		TypeSubtaskAssigned:
		return true
	default:
		return false
	}
}
