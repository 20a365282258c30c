package lifecycle

// Decision is the outcome of authorizing a phase transition. Denials are
// expressed as typed errors, not a decision value.
type Decision string

const (
	// DecisionAllow permits the move to commit immediately.
	DecisionAllow Decision = "ALLOW"

	// DecisionNeedsApproval defers the move behind a pending approval
	// record to be resolved by an administrator.
	DecisionNeedsApproval Decision = "NEEDS_APPROVAL"
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}
