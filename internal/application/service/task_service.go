package service

import (
	"context"
	"fmt"
	"time"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/event"
	"github.com/taskdesk/taskdesk/internal/domain/phasegraph"
)

// TaskInput describes a task being created.
type TaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TaskType    string     `json:"task_type"`
	Priority    string     `json:"priority"`
	WorkflowID  int64      `json:"workflow_id"`
	AssigneeID  *int64     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

// TaskDetail bundles a task with its full phase history.
type TaskDetail struct {
	Task    *entity.Task           `json:"task"`
	History []*entity.PhaseHistory `json:"history"`
}

// TaskService handles task creation and reads. Phase changes go through
// the lifecycle engine, never through here.
type TaskService interface {
	// Create places a new task at the start phase of its workflow and
	// records the creation history row.
	Create(ctx context.Context, actorID int64, input *TaskInput) (*entity.Task, error)

	// Get retrieves a task with its phase history.
	Get(ctx context.Context, actorID, taskID int64) (*TaskDetail, error)

	// List retrieves the company's tasks, newest first.
	List(ctx context.Context, actorID, companyID int64, limit, offset int) ([]*entity.Task, error)
}

type taskServiceImpl struct {
	tasks     port.TaskRepository
	workflows port.WorkflowRepository
	history   port.HistoryRepository
	txManager port.TransactionManager
	guard     *TenantGuard
	sink      port.EventSink
	logger    Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(
	tasks port.TaskRepository,
	workflows port.WorkflowRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	guard *TenantGuard,
	sink port.EventSink,
	logger Logger,
) TaskService {
	return &taskServiceImpl{
		tasks:     tasks,
		workflows: workflows,
		history:   history,
		txManager: txManager,
		guard:     guard,
		sink:      sink,
		logger:    logger,
	}
}

func (s *taskServiceImpl) Create(ctx context.Context, actorID int64, input *TaskInput) (*entity.Task, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if input.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}

	taskType := input.TaskType
	if taskType == "" {
		taskType = entity.TaskTypeTask
	}
	priority := input.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}

	var wf *entity.Workflow
	if input.WorkflowID != 0 {
		wf, err = s.workflows.GetByID(ctx, input.WorkflowID)
	} else {
		if actor.CompanyID == nil {
			return nil, fmt.Errorf("platform actor must name a workflow explicitly")
		}
		wf, err = s.workflows.GetDefaultForTaskType(ctx, *actor.CompanyID, taskType)
	}
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
	graph, err := phasegraph.New(wf.ID, phases, transitions)
	if err != nil {
		return nil, fmt.Errorf("workflow %d configuration: %w", wf.ID, err)
	}
	start := graph.StartPhase()

	now := time.Now()
	task := &entity.Task{
		CompanyID:      wf.CompanyID,
		WorkflowID:     wf.ID,
		CurrentPhaseID: start.ID,
		Title:          input.Title,
		Description:    input.Description,
		TaskType:       taskType,
		Priority:       priority,
		AssigneeID:     input.AssigneeID,
		CreatorID:      actor.ID,
		DueDate:        input.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.tasks.Create(txCtx, task); err != nil {
			return err
		}
		if task.AssigneeID != nil {
			if err := s.tasks.CreateAssignment(txCtx, &entity.TaskAssignment{
				TaskID:       task.ID,
				UserID:       *task.AssigneeID,
				AssignedByID: actor.ID,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
		}
		// Creation history has no from-phase.
		return s.history.Create(txCtx, &entity.PhaseHistory{
			CompanyID: task.CompanyID,
			TaskID:    task.ID,
			ToPhaseID: start.ID,
			ActorID:   actor.ID,
			Note:      "task created",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	var recipients []string
	if task.AssigneeID != nil {
		recipients = append(recipients, userRecipient(*task.AssigneeID))
	}
	s.sink.Publish(ctx, event.New(event.TypeTaskCreated, task.ID, task.CompanyID, recipients,
		map[string]interface{}{
			"workflow_id": wf.ID,
			"phase_id":    start.ID,
			"creator_id":  actor.ID,
		}))

	s.logger.Info("Task created",
		"task_id", task.ID,
		"workflow_id", wf.ID,
		"phase_id", start.ID)

	return task, nil
}

func (s *taskServiceImpl) Get(ctx context.Context, actorID, taskID int64) (*TaskDetail, error) {
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

	history, err := s.history.GetByTaskID(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	return &TaskDetail{Task: task, History: history}, nil
}

func (s *taskServiceImpl) List(ctx context.Context, actorID, companyID int64, limit, offset int) ([]*entity.Task, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckCompany(actor, companyID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.tasks.ListByCompany(ctx, companyID, limit, offset)
}
