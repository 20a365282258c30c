package service

import (
	"context"
	"fmt"
	"time"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/domain/phasegraph"
)

// PhaseInput describes one phase of a workflow being created.
type PhaseInput struct {
	Name             string   `json:"name"`
	Order            int      `json:"order"`
	Color            string   `json:"color"`
	AllowedRoles     []string `json:"allowed_roles"`
	RequiresApproval bool     `json:"requires_approval"`
	IsStartPhase     bool     `json:"is_start_phase"`
	IsEndPhase       bool     `json:"is_end_phase"`
}

// TransitionInput describes one advisory edge, referencing phases by their
// order value since phase IDs do not exist before persistence.
type TransitionInput struct {
	FromOrder   int      `json:"from_order"`
	ToOrder     int      `json:"to_order"`
	Name        string   `json:"name"`
	NotifyRoles []string `json:"notify_roles"`
}

// WorkflowInput describes a workflow being created.
type WorkflowInput struct {
	Name        string            `json:"name"`
	TaskType    string            `json:"task_type"`
	IsDefault   bool              `json:"is_default"`
	Phases      []PhaseInput      `json:"phases"`
	Transitions []TransitionInput `json:"transitions"`
}

// WorkflowDetail bundles a workflow with its full phase graph
// configuration.
type WorkflowDetail struct {
	Workflow    *entity.Workflow     `json:"workflow"`
	Phases      []*entity.Phase      `json:"phases"`
	Transitions []*entity.Transition `json:"transitions"`
}

// WorkflowService manages per-company workflow configuration. Workflows
// are immutable once created; a changed process is a new workflow.
type WorkflowService interface {
	// Create persists a workflow after validating that its phases form a
	// well-formed graph. Administrator only.
	Create(ctx context.Context, actorID int64, input *WorkflowInput) (*WorkflowDetail, error)

	// Get retrieves a workflow with its phases and transitions.
	Get(ctx context.Context, actorID, workflowID int64) (*WorkflowDetail, error)

	// List retrieves the actor's company workflows.
	List(ctx context.Context, actorID, companyID int64) ([]*entity.Workflow, error)
}

type workflowServiceImpl struct {
	workflows port.WorkflowRepository
	txManager port.TransactionManager
	guard     *TenantGuard
	logger    Logger
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	workflows port.WorkflowRepository,
	txManager port.TransactionManager,
	guard *TenantGuard,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		workflows: workflows,
		txManager: txManager,
		guard:     guard,
		logger:    logger,
	}
}

func (s *workflowServiceImpl) Create(ctx context.Context, actorID int64, input *WorkflowInput) (*WorkflowDetail, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin || actor.CompanyID == nil {
		return nil, fmt.Errorf("workflow creation requires a tenant administrator: %w", lifecycle.ErrForbidden)
	}
	if input.Name == "" || input.TaskType == "" {
		return nil, fmt.Errorf("workflow name and task type are required")
	}

	now := time.Now()
	wf := &entity.Workflow{
		CompanyID: *actor.CompanyID,
		Name:      input.Name,
		TaskType:  input.TaskType,
		IsDefault: input.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var phases []*entity.Phase
	var transitions []*entity.Transition

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.workflows.Create(txCtx, wf); err != nil {
			return err
		}

		idByOrder := make(map[int]int64, len(input.Phases))
		for _, in := range input.Phases {
			p := &entity.Phase{
				WorkflowID:       wf.ID,
				Name:             in.Name,
				Order:            in.Order,
				Color:            in.Color,
				AllowedRoles:     in.AllowedRoles,
				RequiresApproval: in.RequiresApproval,
				IsStartPhase:     in.IsStartPhase,
				IsEndPhase:       in.IsEndPhase,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.workflows.CreatePhase(txCtx, p); err != nil {
				return err
			}
			idByOrder[p.Order] = p.ID
			phases = append(phases, p)
		}

		for _, in := range input.Transitions {
			fromID, ok := idByOrder[in.FromOrder]
			if !ok {
				return fmt.Errorf("transition references unknown phase order %d: %w",
					in.FromOrder, lifecycle.ErrInvalidPhase)
			}
			toID, ok := idByOrder[in.ToOrder]
			if !ok {
				return fmt.Errorf("transition references unknown phase order %d: %w",
					in.ToOrder, lifecycle.ErrInvalidPhase)
			}
			t := &entity.Transition{
				WorkflowID:  wf.ID,
				FromPhaseID: fromID,
				ToPhaseID:   toID,
				Name:        in.Name,
				NotifyRoles: in.NotifyRoles,
			}
			if err := s.workflows.CreateTransition(txCtx, t); err != nil {
				return err
			}
			transitions = append(transitions, t)
		}

		// A workflow that cannot produce a valid graph must never be
		// persisted; a validation failure rolls everything back.
		if _, err := phasegraph.New(wf.ID, phases, transitions); err != nil {
			return fmt.Errorf("workflow validation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow created",
		"workflow_id", wf.ID,
		"company_id", wf.CompanyID,
		"task_type", wf.TaskType,
		"phases", len(phases))

	return &WorkflowDetail{Workflow: wf, Phases: phases, Transitions: transitions}, nil
}

func (s *workflowServiceImpl) Get(ctx context.Context, actorID, workflowID int64) (*WorkflowDetail, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckCompany(actor, wf.CompanyID); err != nil {
		return nil, err
	}

	phases, err := s.workflows.GetPhases(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	transitions, err := s.workflows.GetTransitions(ctx, wf.ID)
	if err != nil {
		return nil, err
	}

	return &WorkflowDetail{Workflow: wf, Phases: phases, Transitions: transitions}, nil
}

func (s *workflowServiceImpl) List(ctx context.Context, actorID, companyID int64) ([]*entity.Workflow, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckCompany(actor, companyID); err != nil {
		return nil, err
	}
	return s.workflows.ListByCompany(ctx, companyID)
}
