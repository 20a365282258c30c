package service

import (
	"errors"
	"testing"

	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/domain/phasegraph"
)

func buildTestGraph(t *testing.T) *phasegraph.Graph {
	t.Helper()
	g, err := phasegraph.New(10, testPhases(10), testTransitions(10))
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	return g
}

func TestAuthorizer_Authorize(t *testing.T) {
	assignee := int64(5)

	tests := []struct {
		name          string
		task          *entity.Task
		actor         *lifecycle.Actor
		targetPhaseID int64
		wantDecision  lifecycle.Decision
		wantErr       error
	}{
		{
			name:          "target phase not in workflow",
			task:          &entity.Task{ID: 1, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101},
			actor:         &lifecycle.Actor{ID: 5, Role: entity.RoleEmployee, CompanyID: companyPtr(7)},
			targetPhaseID: 999,
			wantErr:       lifecycle.ErrInvalidPhase,
		},
		{
			name:          "no-op transition rejected",
			task:          &entity.Task{ID: 1, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101},
			actor:         &lifecycle.Actor{ID: 5, Role: entity.RoleEmployee, CompanyID: companyPtr(7)},
			targetPhaseID: 101,
			wantErr:       lifecycle.ErrNoOpTransition,
		},
		{
			name:          "role not allowed on target phase",
			task:          &entity.Task{ID: 1, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101},
			actor:         &lifecycle.Actor{ID: 5, Role: entity.RoleEmployee, CompanyID: companyPtr(7)},
			targetPhaseID: 102,
			wantErr:       lifecycle.ErrForbidden,
		},
		{
			name: "assigned to someone else",
			task: &entity.Task{ID: 1, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101,
				AssigneeID: &assignee},
			actor:         &lifecycle.Actor{ID: 6, Role: entity.RoleManager, CompanyID: companyPtr(7)},
			targetPhaseID: 102,
			wantErr:       lifecycle.ErrForbidden,
		},
		{
			name: "manager moving own task into gated phase needs approval",
			task: &entity.Task{ID: 1, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101,
				AssigneeID: &assignee},
			actor:         &lifecycle.Actor{ID: 5, Role: entity.RoleManager, CompanyID: companyPtr(7)},
			targetPhaseID: 102,
			wantDecision:  lifecycle.DecisionNeedsApproval,
		},
		{
			name:          "employee allowed on open end phase",
			task:          &entity.Task{ID: 1, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101},
			actor:         &lifecycle.Actor{ID: 5, Role: entity.RoleEmployee, CompanyID: companyPtr(7)},
			targetPhaseID: 103,
			wantDecision:  lifecycle.DecisionAllow,
		},
		{
			name: "admin bypasses role, ownership and approval gate",
			task: &entity.Task{ID: 1, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101,
				AssigneeID: &assignee},
			actor:         &lifecycle.Actor{ID: 9, Role: entity.RoleAdmin, CompanyID: companyPtr(7), Admin: true},
			targetPhaseID: 102,
			wantDecision:  lifecycle.DecisionAllow,
		},
		{
			name: "platform administrator commits directly",
			task: &entity.Task{ID: 1, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101,
				AssigneeID: &assignee},
			actor:         &lifecycle.Actor{ID: 9, Role: entity.RoleSuperAdmin, Admin: true, Platform: true},
			targetPhaseID: 102,
			wantDecision:  lifecycle.DecisionAllow,
		},
	}

	graph := buildTestGraph(t)
	authorizer := NewAuthorizer()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := authorizer.Authorize(graph, tt.task, tt.actor, tt.targetPhaseID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Authorize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authorize() error = %v", err)
			}
			if decision != tt.wantDecision {
				t.Errorf("Authorize() decision = %v, want %v", decision, tt.wantDecision)
			}
		})
	}
}
