package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/event"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/domain/phasegraph"
)

// Move result status constants
const (
	MoveStatusMoved             = "MOVED"
	MoveStatusApprovalRequested = "APPROVAL_REQUESTED"
)

// MoveResult is the outcome of a MoveToPhase call.
type MoveResult struct {
	Status     string       `json:"status"`
	Task       *entity.Task `json:"task"`
	ApprovalID int64        `json:"approval_id,omitempty"`
}

// SubtaskSynchronizer is the hook the engine invokes, inside the commit
// transaction, when the moved task is the linked task of a subtask.
type SubtaskSynchronizer interface {
	OnLinkedTaskPhaseChanged(ctx context.Context, task *entity.Task, endPhase bool) error
}

// LifecycleService owns the task's current-phase pointer: it applies
// validated transitions, records history, and triggers side effects.
type LifecycleService interface {
	// MoveToPhase commits an authorized phase change, or creates a
	// pending approval when the transition is approval-gated.
	MoveToPhase(ctx context.Context, taskID, targetPhaseID, actorID int64, note string) (*MoveResult, error)

	// ResolveApproval applies or rejects a pending approval. Approving
	// performs the same commit sequence as a direct move.
	ResolveApproval(ctx context.Context, approvalID int64, decision string, approverID int64) (*entity.Task, error)
}

type lifecycleServiceImpl struct {
	workflows  port.WorkflowRepository
	tasks      port.TaskRepository
	history    port.HistoryRepository
	approvals  port.ApprovalRepository
	txManager  port.TransactionManager
	guard      *TenantGuard
	authorizer *Authorizer
	sync       SubtaskSynchronizer
	sink       port.EventSink
	logger     Logger
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	workflows port.WorkflowRepository,
	tasks port.TaskRepository,
	history port.HistoryRepository,
	approvals port.ApprovalRepository,
	txManager port.TransactionManager,
	guard *TenantGuard,
	authorizer *Authorizer,
	sync SubtaskSynchronizer,
	sink port.EventSink,
	logger Logger,
) LifecycleService {
	return &lifecycleServiceImpl{
		workflows:  workflows,
		tasks:      tasks,
		history:    history,
		approvals:  approvals,
		txManager:  txManager,
		guard:      guard,
		authorizer: authorizer,
		sync:       sync,
		sink:       sink,
		logger:     logger,
	}
}

// MoveToPhase re-verifies authorization and commits atomically: phase
// pointer, history row and subtask mirroring land in one transaction, and
// the phase-changed event fires only after the commit.
func (s *lifecycleServiceImpl) MoveToPhase(ctx context.Context, taskID, targetPhaseID, actorID int64, note string) (*MoveResult, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.guard.CheckCompany(actor, task.CompanyID); err != nil {
		return nil, err
	}

	graph, err := s.loadGraph(ctx, task.WorkflowID)
	if err != nil {
		return nil, err
	}

	decision, err := s.authorizer.Authorize(graph, task, actor, targetPhaseID)
	if err != nil {
		return nil, err
	}

	if decision == lifecycle.DecisionNeedsApproval {
		return s.requestApproval(ctx, task, targetPhaseID, actor, note)
	}

	if err := s.commitMove(ctx, graph, task, targetPhaseID, actor, note, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Task moved",
		"task_id", task.ID,
		"phase_id", task.CurrentPhaseID,
		"actor_id", actor.ID)

	return &MoveResult{Status: MoveStatusMoved, Task: task}, nil
}

// ResolveApproval applies an administrator's decision on a pending
// approval. The task stays in its prior phase until approval; rejection
// only closes the approval record.
func (s *lifecycleServiceImpl) ResolveApproval(ctx context.Context, approvalID int64, decision string, approverID int64) (*entity.Task, error) {
	if decision != entity.DecisionApproved && decision != entity.DecisionRejected {
		return nil, fmt.Errorf("unknown approval decision %q", decision)
	}

	actor, err := s.guard.Resolve(ctx, approverID)
	if err != nil {
		return nil, err
	}

	approval, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}

	if err := s.guard.CheckCompany(actor, approval.CompanyID); err != nil {
		return nil, err
	}
	if !actor.CanAdminister(approval.CompanyID) {
		return nil, fmt.Errorf("approval resolution requires administrator: %w", lifecycle.ErrForbidden)
	}
	if !approval.IsPending() {
		return nil, fmt.Errorf("approval %d already resolved: %w", approvalID, lifecycle.ErrNotFound)
	}

	task, err := s.tasks.GetByID(ctx, approval.TaskID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resolve := func(txCtx context.Context) error {
		return s.approvals.Resolve(txCtx, approval.ID, decision, actor.ID, now)
	}

	if decision == entity.DecisionRejected {
		if err := s.txManager.WithTransaction(ctx, resolve); err != nil {
			return nil, err
		}
	} else if task.CurrentPhaseID == approval.RequestedPhaseID {
		// An administrator moved the task there in the meantime; closing
		// the approval is all that is left to do.
		if err := s.txManager.WithTransaction(ctx, resolve); err != nil {
			return nil, err
		}
	} else {
		graph, err := s.loadGraph(ctx, task.WorkflowID)
		if err != nil {
			return nil, err
		}
		if !graph.Contains(approval.RequestedPhaseID) {
			return nil, fmt.Errorf("phase %d not in workflow %d: %w",
				approval.RequestedPhaseID, task.WorkflowID, lifecycle.ErrInvalidPhase)
		}
		if err := s.commitMove(ctx, graph, task, approval.RequestedPhaseID, actor, approval.Note, resolve); err != nil {
			return nil, err
		}
	}

	s.sink.Publish(ctx, event.New(event.TypeApprovalResolved, task.ID, task.CompanyID,
		[]string{userRecipient(approval.RequestedByID)},
		map[string]interface{}{
			"approval_id": approval.ID,
			"decision":    decision,
		}))

	s.logger.Info("Approval resolved",
		"approval_id", approval.ID,
		"decision", decision,
		"approver_id", actor.ID)

	return task, nil
}

// commitMove performs the atomic commit sequence for an allowed move. The
// optional extra function runs inside the same transaction (used to close
// the approval record on an approved resolution). On success the task
// struct reflects the committed state.
func (s *lifecycleServiceImpl) commitMove(
	ctx context.Context,
	graph *phasegraph.Graph,
	task *entity.Task,
	targetPhaseID int64,
	actor *lifecycle.Actor,
	note string,
	extra func(ctx context.Context) error,
) error {
	target, ok := graph.Phase(targetPhaseID)
	if !ok {
		return fmt.Errorf("phase %d not in workflow %d: %w",
			targetPhaseID, task.WorkflowID, lifecycle.ErrInvalidPhase)
	}

	fromPhaseID := task.CurrentPhaseID

	// Re-entering an end phase never resets an already-set completion time.
	completedAt := task.CompletedAt
	if target.IsEndPhase && completedAt == nil {
		now := time.Now()
		completedAt = &now
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.tasks.UpdateCurrentPhase(txCtx, task.ID, task.Version, target.ID, completedAt); err != nil {
			return err
		}

		history := &entity.PhaseHistory{
			CompanyID:   task.CompanyID,
			TaskID:      task.ID,
			FromPhaseID: &fromPhaseID,
			ToPhaseID:   target.ID,
			ActorID:     actor.ID,
			Note:        note,
			CreatedAt:   time.Now(),
		}
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		task.CurrentPhaseID = target.ID
		task.Version++
		task.CompletedAt = completedAt

		if task.IsSubtaskLink() {
			if err := s.sync.OnLinkedTaskPhaseChanged(txCtx, task, target.IsEndPhase); err != nil {
				return fmt.Errorf("sync subtask: %w", err)
			}
		}

		if extra != nil {
			return extra(txCtx)
		}
		return nil
	})
	if err != nil {
		// The struct must not lie about uncommitted state.
		task.CurrentPhaseID = fromPhaseID
		return err
	}

	s.sink.Publish(ctx, event.New(event.TypePhaseChanged, task.ID, task.CompanyID,
		moveRecipients(graph, fromPhaseID, target, task),
		map[string]interface{}{
			"from_phase_id": fromPhaseID,
			"to_phase_id":   target.ID,
			"actor_id":      actor.ID,
		}))

	return nil
}

// requestApproval records a single pending approval instead of committing
// the move.
func (s *lifecycleServiceImpl) requestApproval(ctx context.Context, task *entity.Task, targetPhaseID int64, actor *lifecycle.Actor, note string) (*MoveResult, error) {
	_, err := s.approvals.GetPendingByTaskID(ctx, task.ID)
	if err == nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, lifecycle.ErrApprovalAlreadyPending)
	}
	if !errors.Is(err, lifecycle.ErrNotFound) {
		return nil, err
	}

	approval := &entity.PhaseApproval{
		CompanyID:        task.CompanyID,
		TaskID:           task.ID,
		RequestedPhaseID: targetPhaseID,
		RequestedByID:    actor.ID,
		Status:           entity.ApprovalStatusPending,
		Note:             note,
		CreatedAt:        time.Now(),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.approvals.Create(txCtx, approval)
	})
	if err != nil {
		return nil, err
	}

	s.sink.Publish(ctx, event.New(event.TypeApprovalRequested, task.ID, task.CompanyID,
		[]string{entity.RoleAdmin},
		map[string]interface{}{
			"approval_id":        approval.ID,
			"requested_phase_id": targetPhaseID,
			"requested_by_id":    actor.ID,
		}))

	s.logger.Info("Approval requested",
		"task_id", task.ID,
		"approval_id", approval.ID,
		"requested_phase_id", targetPhaseID)

	return &MoveResult{
		Status:     MoveStatusApprovalRequested,
		Task:       task,
		ApprovalID: approval.ID,
	}, nil
}

// loadGraph builds the validated phase graph for a workflow from persisted
// configuration.
func (s *lifecycleServiceImpl) loadGraph(ctx context.Context, workflowID int64) (*phasegraph.Graph, error) {
	phases, err := s.workflows.GetPhases(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	transitions, err := s.workflows.GetTransitions(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	graph, err := phasegraph.New(workflowID, phases, transitions)
	if err != nil {
		return nil, fmt.Errorf("workflow %d configuration: %w", workflowID, err)
	}
	return graph, nil
}

// moveRecipients assembles the notification targets for a committed move:
// the advisory edge's notify roles, the target phase's allowed roles and
// the task assignee.
func moveRecipients(graph *phasegraph.Graph, fromPhaseID int64, target *entity.Phase, task *entity.Task) []string {
	seen := make(map[string]bool)
	var recipients []string

	add := func(r string) {
		if r != "" && !seen[r] {
			seen[r] = true
			recipients = append(recipients, r)
		}
	}

	for _, role := range graph.NotifyRoles(fromPhaseID, target.ID) {
		add(role)
	}
	for _, role := range target.AllowedRoles {
		add(role)
	}
	if task.AssigneeID != nil {
		add(userRecipient(*task.AssigneeID))
	}

	return recipients
}

func userRecipient(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}
