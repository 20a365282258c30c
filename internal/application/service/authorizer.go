package service

import (
	"fmt"

	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/domain/phasegraph"
)

// Authorizer decides whether an actor may move a task to a target phase.
// It is pure: tenant scope has already been checked by the guard, and the
// engine commits (or defers) the move afterwards.
type Authorizer struct{}

// NewAuthorizer creates a new transition authorizer
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// Authorize returns DecisionAllow or DecisionNeedsApproval, or a typed
// denial error:
//   - lifecycle.ErrInvalidPhase when the target is not a phase of the
//     task's workflow
//   - lifecycle.ErrNoOpTransition when the target is the current phase
//   - lifecycle.ErrForbidden when the actor's role is not allowed on the
//     target phase, or the task is assigned to someone else
//
// Administrators bypass the role restriction and the assignee-ownership
// policy, and commit approval-gated moves directly.
func (a *Authorizer) Authorize(graph *phasegraph.Graph, task *entity.Task, actor *lifecycle.Actor, targetPhaseID int64) (lifecycle.Decision, error) {
	target, ok := graph.Phase(targetPhaseID)
	if !ok {
		return "", fmt.Errorf("phase %d not in workflow %d: %w",
			targetPhaseID, task.WorkflowID, lifecycle.ErrInvalidPhase)
	}

	if task.CurrentPhaseID == targetPhaseID {
		return "", fmt.Errorf("task %d already in phase %d: %w",
			task.ID, targetPhaseID, lifecycle.ErrNoOpTransition)
	}

	admin := actor.CanAdminister(task.CompanyID)

	if !admin {
		if !graph.IsRoleAllowed(target.ID, actor.Role) {
			return "", fmt.Errorf("role %s not allowed on phase %q: %w",
				actor.Role, target.Name, lifecycle.ErrForbidden)
		}

		// Only the assignee or an administrator may move a task. This is
		// ownership policy, not a role check.
		if task.AssigneeID != nil && *task.AssigneeID != actor.ID {
			return "", fmt.Errorf("task %d assigned to user %d: %w",
				task.ID, *task.AssigneeID, lifecycle.ErrForbidden)
		}

		if target.RequiresApproval {
			return lifecycle.DecisionNeedsApproval, nil
		}
	}

	return lifecycle.DecisionAllow, nil
}
