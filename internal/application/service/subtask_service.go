package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/event"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/domain/phasegraph"
)

// RepairResult summarizes a repair batch over orphaned subtasks.
type RepairResult struct {
	Fixed   int `json:"fixed"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// SubtaskService keeps subtasks and their linked tasks consistent. The
// linked task is the source of truth for phase state; the subtask mirrors
// it.
type SubtaskService interface {
	SubtaskSynchronizer

	// Assign sets the subtask's assignee and guarantees a linked task
	// exists, creating one in the parent's workflow on first assignment.
	// Returns the updated subtask together with its linked task.
	Assign(ctx context.Context, subtaskID, assigneeID, actorID int64) (*entity.Subtask, *entity.Task, error)

	// ToggleCompletion flips the subtask's completion checkbox without
	// moving the linked task. The override sticks until the linked task
	// reaches an end phase.
	ToggleCompletion(ctx context.Context, subtaskID, actorID int64) (*entity.Subtask, error)

	// RepairOrphanedLinkedTasks creates linked tasks for assigned subtasks
	// that predate the linking scheme. One failure skips one subtask, not
	// the batch.
	RepairOrphanedLinkedTasks(ctx context.Context, actorID int64) (*RepairResult, error)
}

type subtaskServiceImpl struct {
	subtasks  port.SubtaskRepository
	tasks     port.TaskRepository
	workflows port.WorkflowRepository
	history   port.HistoryRepository
	txManager port.TransactionManager
	guard     *TenantGuard
	sink      port.EventSink
	logger    Logger
}

// NewSubtaskService creates a new SubtaskService
func NewSubtaskService(
	subtasks port.SubtaskRepository,
	tasks port.TaskRepository,
	workflows port.WorkflowRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	guard *TenantGuard,
	sink port.EventSink,
	logger Logger,
) SubtaskService {
	return &subtaskServiceImpl{
		subtasks:  subtasks,
		tasks:     tasks,
		workflows: workflows,
		history:   history,
		txManager: txManager,
		guard:     guard,
		sink:      sink,
		logger:    logger,
	}
}

func (s *subtaskServiceImpl) Assign(ctx context.Context, subtaskID, assigneeID, actorID int64) (*entity.Subtask, *entity.Task, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}

	subtask, err := s.subtasks.GetByID(ctx, subtaskID)
	if err != nil {
		return nil, nil, err
	}

	parent, err := s.tasks.GetByID(ctx, subtask.TaskID)
	if err != nil {
		return nil, nil, fmt.Errorf("load parent task: %w", err)
	}
	if err := s.guard.CheckCompany(actor, parent.CompanyID); err != nil {
		return nil, nil, err
	}

	linked, err := s.tasks.GetBySubtaskID(ctx, subtask.ID)
	switch {
	case err == nil:
		// Reassignment: mirror the new assignee onto the existing linked
		// task.
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			subtask.AssignedToID = &assigneeID
			if err := s.subtasks.Update(txCtx, subtask); err != nil {
				return err
			}
			if err := s.tasks.UpdateAssignee(txCtx, linked.ID, assigneeID); err != nil {
				return err
			}
			return s.tasks.CreateAssignment(txCtx, &entity.TaskAssignment{
				TaskID:       linked.ID,
				UserID:       assigneeID,
				AssignedByID: actor.ID,
				CreatedAt:    time.Now(),
			})
		})
		if err != nil {
			return nil, nil, err
		}

	case errors.Is(err, lifecycle.ErrNotFound):
		linked, err = s.spawnLinkedTask(ctx, subtask, parent, assigneeID, actor.ID)
		if err != nil {
			return nil, nil, err
		}

	default:
		return nil, nil, err
	}

	s.sink.Publish(ctx, event.New(event.TypeSubtaskAssigned, linked.ID, parent.CompanyID,
		[]string{userRecipient(assigneeID)},
		map[string]interface{}{
			"subtask_id":  subtask.ID,
			"assignee_id": assigneeID,
		}))

	s.logger.Info("Subtask assigned",
		"subtask_id", subtask.ID,
		"assignee_id", assigneeID,
		"linked_task_id", linked.ID)

	return subtask, linked, nil
}

// OnLinkedTaskPhaseChanged mirrors a committed phase change onto the
// subtask. It runs inside the engine's commit transaction. A manual
// completion override survives non-terminal moves; an end phase always
// completes the subtask.
func (s *subtaskServiceImpl) OnLinkedTaskPhaseChanged(ctx context.Context, task *entity.Task, endPhase bool) error {
	if task.SubtaskID == nil {
		return nil
	}

	subtask, err := s.subtasks.GetByID(ctx, *task.SubtaskID)
	if err != nil {
		return fmt.Errorf("load subtask %d: %w", *task.SubtaskID, err)
	}

	phaseID := task.CurrentPhaseID
	subtask.PhaseID = &phaseID
	if endPhase {
		subtask.IsCompleted = true
	}

	return s.subtasks.Update(ctx, subtask)
}

func (s *subtaskServiceImpl) ToggleCompletion(ctx context.Context, subtaskID, actorID int64) (*entity.Subtask, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	subtask, err := s.subtasks.GetByID(ctx, subtaskID)
	if err != nil {
		return nil, err
	}

	parent, err := s.tasks.GetByID(ctx, subtask.TaskID)
	if err != nil {
		return nil, fmt.Errorf("load parent task: %w", err)
	}
	if err := s.guard.CheckCompany(actor, parent.CompanyID); err != nil {
		return nil, err
	}

	subtask.IsCompleted = !subtask.IsCompleted
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.subtasks.Update(txCtx, subtask)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subtask completion toggled",
		"subtask_id", subtask.ID,
		"is_completed", subtask.IsCompleted,
		"actor_id", actor.ID)

	return subtask, nil
}

func (s *subtaskServiceImpl) RepairOrphanedLinkedTasks(ctx context.Context, actorID int64) (*RepairResult, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin {
		return nil, fmt.Errorf("repair requires administrator: %w", lifecycle.ErrForbidden)
	}

	orphaned, err := s.subtasks.ListOrphaned(ctx)
	if err != nil {
		return nil, err
	}

	result := &RepairResult{Total: len(orphaned)}
	for _, subtask := range orphaned {
		parent, err := s.tasks.GetByID(ctx, subtask.TaskID)
		if err != nil {
			s.logger.Error("Repair skipped subtask, parent task missing",
				"subtask_id", subtask.ID, "error", err)
			result.Skipped++
			continue
		}
		if !actor.CanAdminister(parent.CompanyID) {
			result.Skipped++
			continue
		}

		if _, err := s.spawnLinkedTask(ctx, subtask, parent, *subtask.AssignedToID, actor.ID); err != nil {
			s.logger.Error("Repair skipped subtask",
				"subtask_id", subtask.ID, "error", err)
			result.Skipped++
			continue
		}
		result.Fixed++
	}

	s.logger.Info("Orphaned subtask repair finished",
		"fixed", result.Fixed,
		"skipped", result.Skipped,
		"total", result.Total)

	return result, nil
}

// spawnLinkedTask creates the linked task for a subtask in one transaction,
// with its creation history row. The linked task inherits the parent's
// workflow and starts at the subtask's phase, falling back to the parent's
// current phase when the subtask has none.
func (s *subtaskServiceImpl) spawnLinkedTask(ctx context.Context, subtask *entity.Subtask, parent *entity.Task, assigneeID, actorID int64) (*entity.Task, error) {
	phases, err := s.workflows.GetPhases(ctx, parent.WorkflowID)
	if err != nil {
		return nil, err
	}
	transitions, err := s.workflows.GetTransitions(ctx, parent.WorkflowID)
	if err != nil {
		return nil, err
	}
	graph, err := phasegraph.New(parent.WorkflowID, phases, transitions)
	if err != nil {
		return nil, fmt.Errorf("workflow %d configuration: %w", parent.WorkflowID, err)
	}

	phaseID := parent.CurrentPhaseID
	if subtask.PhaseID != nil && graph.Contains(*subtask.PhaseID) {
		phaseID = *subtask.PhaseID
	}

	now := time.Now()
	parentID := parent.ID
	subtaskID := subtask.ID
	linked := &entity.Task{
		CompanyID:      parent.CompanyID,
		WorkflowID:     parent.WorkflowID,
		CurrentPhaseID: phaseID,
		Title:          subtask.Title,
		Description:    subtask.Description,
		TaskType:       entity.TaskTypeSubtask,
		Priority:       parent.Priority,
		AssigneeID:     &assigneeID,
		CreatorID:      actorID,
		DueDate:        parent.DueDate,
		ParentTaskID:   &parentID,
		SubtaskID:      &subtaskID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.tasks.Create(txCtx, linked); err != nil {
			return err
		}
		subtask.AssignedToID = &assigneeID
		linkedPhaseID := phaseID
		subtask.PhaseID = &linkedPhaseID
		if err := s.subtasks.Update(txCtx, subtask); err != nil {
			return err
		}
		if err := s.tasks.CreateAssignment(txCtx, &entity.TaskAssignment{
			TaskID:       linked.ID,
			UserID:       assigneeID,
			AssignedByID: actorID,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		// Creation history has no from-phase.
		return s.history.Create(txCtx, &entity.PhaseHistory{
			CompanyID: parent.CompanyID,
			TaskID:    linked.ID,
			ToPhaseID: phaseID,
			ActorID:   actorID,
			Note:      "linked task created from subtask",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	return linked, nil
}

// Verify interface compliance
var _ SubtaskSynchronizer = (*subtaskServiceImpl)(nil)
