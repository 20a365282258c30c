package service

import (
	"context"
	"time"

	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/event"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
)

// Mock repositories

type mockWorkflowRepo struct {
	createFunc                func(ctx context.Context, wf *entity.Workflow) error
	createPhaseFunc           func(ctx context.Context, p *entity.Phase) error
	createTransitionFunc      func(ctx context.Context, t *entity.Transition) error
	getByIDFunc               func(ctx context.Context, id int64) (*entity.Workflow, error)
	getPhasesFunc             func(ctx context.Context, workflowID int64) ([]*entity.Phase, error)
	getPhaseFunc              func(ctx context.Context, id int64) (*entity.Phase, error)
	getTransitionsFunc        func(ctx context.Context, workflowID int64) ([]*entity.Transition, error)
	listByCompanyFunc         func(ctx context.Context, companyID int64) ([]*entity.Workflow, error)
	getDefaultForTaskTypeFunc func(ctx context.Context, companyID int64, taskType string) (*entity.Workflow, error)
}

func (m *mockWorkflowRepo) Create(ctx context.Context, wf *entity.Workflow) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, wf)
	}
	wf.ID = 10
	return nil
}

func (m *mockWorkflowRepo) CreatePhase(ctx context.Context, p *entity.Phase) error {
	if m.createPhaseFunc != nil {
		return m.createPhaseFunc(ctx, p)
	}
	p.ID = int64(100 + p.Order)
	return nil
}

func (m *mockWorkflowRepo) CreateTransition(ctx context.Context, t *entity.Transition) error {
	if m.createTransitionFunc != nil {
		return m.createTransitionFunc(ctx, t)
	}
	t.ID = 1
	return nil
}

func (m *mockWorkflowRepo) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Workflow{ID: id, CompanyID: 7, Name: "Default", TaskType: entity.TaskTypeTask}, nil
}

func (m *mockWorkflowRepo) GetPhases(ctx context.Context, workflowID int64) ([]*entity.Phase, error) {
	if m.getPhasesFunc != nil {
		return m.getPhasesFunc(ctx, workflowID)
	}
	return testPhases(workflowID), nil
}

func (m *mockWorkflowRepo) GetPhase(ctx context.Context, id int64) (*entity.Phase, error) {
	if m.getPhaseFunc != nil {
		return m.getPhaseFunc(ctx, id)
	}
	for _, p := range testPhases(10) {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, lifecycle.ErrNotFound
}

func (m *mockWorkflowRepo) GetTransitions(ctx context.Context, workflowID int64) ([]*entity.Transition, error) {
	if m.getTransitionsFunc != nil {
		return m.getTransitionsFunc(ctx, workflowID)
	}
	return testTransitions(workflowID), nil
}

func (m *mockWorkflowRepo) ListByCompany(ctx context.Context, companyID int64) ([]*entity.Workflow, error) {
	if m.listByCompanyFunc != nil {
		return m.listByCompanyFunc(ctx, companyID)
	}
	return []*entity.Workflow{}, nil
}

func (m *mockWorkflowRepo) GetDefaultForTaskType(ctx context.Context, companyID int64, taskType string) (*entity.Workflow, error) {
	if m.getDefaultForTaskTypeFunc != nil {
		return m.getDefaultForTaskTypeFunc(ctx, companyID, taskType)
	}
	return &entity.Workflow{ID: 10, CompanyID: companyID, Name: "Default", TaskType: taskType, IsDefault: true}, nil
}

type mockTaskRepo struct {
	createFunc             func(ctx context.Context, task *entity.Task) error
	getByIDFunc            func(ctx context.Context, id int64) (*entity.Task, error)
	getBySubtaskIDFunc     func(ctx context.Context, subtaskID int64) (*entity.Task, error)
	updateCurrentPhaseFunc func(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error
	updateAssigneeFunc     func(ctx context.Context, id, userID int64) error
	createAssignmentFunc   func(ctx context.Context, a *entity.TaskAssignment) error
	listByCompanyFunc      func(ctx context.Context, companyID int64, limit, offset int) ([]*entity.Task, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	task.ID = 1
	task.Version = 1
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Task{ID: id, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101, Version: 1,
		Title: "Test task", TaskType: entity.TaskTypeTask, Priority: entity.PriorityMedium}, nil
}

func (m *mockTaskRepo) GetBySubtaskID(ctx context.Context, subtaskID int64) (*entity.Task, error) {
	if m.getBySubtaskIDFunc != nil {
		return m.getBySubtaskIDFunc(ctx, subtaskID)
	}
	return nil, lifecycle.ErrNotFound
}

func (m *mockTaskRepo) UpdateCurrentPhase(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error {
	if m.updateCurrentPhaseFunc != nil {
		return m.updateCurrentPhaseFunc(ctx, id, expectedVersion, phaseID, completedAt)
	}
	return nil
}

func (m *mockTaskRepo) UpdateAssignee(ctx context.Context, id, userID int64) error {
	if m.updateAssigneeFunc != nil {
		return m.updateAssigneeFunc(ctx, id, userID)
	}
	return nil
}

func (m *mockTaskRepo) CreateAssignment(ctx context.Context, a *entity.TaskAssignment) error {
	if m.createAssignmentFunc != nil {
		return m.createAssignmentFunc(ctx, a)
	}
	a.ID = 1
	return nil
}

func (m *mockTaskRepo) ListByCompany(ctx context.Context, companyID int64, limit, offset int) ([]*entity.Task, error) {
	if m.listByCompanyFunc != nil {
		return m.listByCompanyFunc(ctx, companyID, limit, offset)
	}
	return []*entity.Task{}, nil
}

type mockSubtaskRepo struct {
	createFunc       func(ctx context.Context, st *entity.Subtask) error
	getByIDFunc      func(ctx context.Context, id int64) (*entity.Subtask, error)
	getByTaskIDFunc  func(ctx context.Context, taskID int64) ([]*entity.Subtask, error)
	updateFunc       func(ctx context.Context, st *entity.Subtask) error
	listOrphanedFunc func(ctx context.Context) ([]*entity.Subtask, error)
}

func (m *mockSubtaskRepo) Create(ctx context.Context, st *entity.Subtask) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, st)
	}
	st.ID = 1
	return nil
}

func (m *mockSubtaskRepo) GetByID(ctx context.Context, id int64) (*entity.Subtask, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Subtask{ID: id, TaskID: 1, Title: "Test subtask"}, nil
}

func (m *mockSubtaskRepo) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Subtask, error) {
	if m.getByTaskIDFunc != nil {
		return m.getByTaskIDFunc(ctx, taskID)
	}
	return []*entity.Subtask{}, nil
}

func (m *mockSubtaskRepo) Update(ctx context.Context, st *entity.Subtask) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, st)
	}
	return nil
}

func (m *mockSubtaskRepo) ListOrphaned(ctx context.Context) ([]*entity.Subtask, error) {
	if m.listOrphanedFunc != nil {
		return m.listOrphanedFunc(ctx)
	}
	return []*entity.Subtask{}, nil
}

type mockHistoryRepo struct {
	createFunc      func(ctx context.Context, h *entity.PhaseHistory) error
	getByTaskIDFunc func(ctx context.Context, taskID int64) ([]*entity.PhaseHistory, error)
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *entity.PhaseHistory) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, h)
	}
	h.ID = 1
	return nil
}

func (m *mockHistoryRepo) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.PhaseHistory, error) {
	if m.getByTaskIDFunc != nil {
		return m.getByTaskIDFunc(ctx, taskID)
	}
	return []*entity.PhaseHistory{}, nil
}

type mockApprovalRepo struct {
	createFunc             func(ctx context.Context, a *entity.PhaseApproval) error
	getByIDFunc            func(ctx context.Context, id int64) (*entity.PhaseApproval, error)
	getPendingByTaskIDFunc func(ctx context.Context, taskID int64) (*entity.PhaseApproval, error)
	resolveFunc            func(ctx context.Context, id int64, decision string, approverID int64, resolvedAt time.Time) error
}

func (m *mockApprovalRepo) Create(ctx context.Context, a *entity.PhaseApproval) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, a)
	}
	a.ID = 1
	return nil
}

func (m *mockApprovalRepo) GetByID(ctx context.Context, id int64) (*entity.PhaseApproval, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, lifecycle.ErrNotFound
}

func (m *mockApprovalRepo) GetPendingByTaskID(ctx context.Context, taskID int64) (*entity.PhaseApproval, error) {
	if m.getPendingByTaskIDFunc != nil {
		return m.getPendingByTaskIDFunc(ctx, taskID)
	}
	return nil, lifecycle.ErrNotFound
}

func (m *mockApprovalRepo) Resolve(ctx context.Context, id int64, decision string, approverID int64, resolvedAt time.Time) error {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, id, decision, approverID, resolvedAt)
	}
	return nil
}

type mockUserRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*entity.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	companyID := int64(7)
	return &entity.User{ID: id, Role: entity.RoleEmployee, CompanyID: &companyID}, nil
}

type mockNotificationRepo struct {
	createFunc       func(ctx context.Context, n *entity.Notification) error
	markSentFunc     func(ctx context.Context, id int64) error
	updateStatusFunc func(ctx context.Context, id int64, status, errorMsg string) error
	getByTaskIDFunc  func(ctx context.Context, taskID int64) ([]*entity.Notification, error)
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, n)
	}
	n.ID = 1
	return nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64) error {
	if m.markSentFunc != nil {
		return m.markSentFunc(ctx, id)
	}
	return nil
}

func (m *mockNotificationRepo) UpdateStatus(ctx context.Context, id int64, status, errorMsg string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status, errorMsg)
	}
	return nil
}

func (m *mockNotificationRepo) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.Notification, error) {
	if m.getByTaskIDFunc != nil {
		return m.getByTaskIDFunc(ctx, taskID)
	}
	return []*entity.Notification{}, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockEventSink captures published events
type mockEventSink struct {
	events []*event.Event
}

func (m *mockEventSink) Publish(ctx context.Context, evt *event.Event) {
	m.events = append(m.events, evt)
}

// mockSubtaskSync captures synchronization callbacks
type mockSubtaskSync struct {
	calls int
	fn    func(ctx context.Context, task *entity.Task, endPhase bool) error
}

func (m *mockSubtaskSync) OnLinkedTaskPhaseChanged(ctx context.Context, task *entity.Task, endPhase bool) error {
	m.calls++
	if m.fn != nil {
		return m.fn(ctx, task, endPhase)
	}
	return nil
}

// Test fixture: a three phase workflow. Backlog is the open start phase,
// Review is restricted to managers and approval gated, Done is the end
// phase.
func testPhases(workflowID int64) []*entity.Phase {
	return []*entity.Phase{
		{ID: 101, WorkflowID: workflowID, Name: "Backlog", Order: 1, IsStartPhase: true},
		{ID: 102, WorkflowID: workflowID, Name: "Review", Order: 2,
			AllowedRoles: []string{entity.RoleManager}, RequiresApproval: true},
		{ID: 103, WorkflowID: workflowID, Name: "Done", Order: 3, IsEndPhase: true},
	}
}

func testTransitions(workflowID int64) []*entity.Transition {
	return []*entity.Transition{
		{ID: 1, WorkflowID: workflowID, FromPhaseID: 101, ToPhaseID: 102,
			Name: "submit", NotifyRoles: []string{entity.RoleManager}},
		{ID: 2, WorkflowID: workflowID, FromPhaseID: 102, ToPhaseID: 103, Name: "finish"},
	}
}

func newTestGuard(users *mockUserRepo) *TenantGuard {
	return NewTenantGuard(users, &mockLogger{})
}

func userWithRole(role string, companyID *int64) func(ctx context.Context, id int64) (*entity.User, error) {
	return func(ctx context.Context, id int64) (*entity.User, error) {
		return &entity.User{ID: id, Role: role, CompanyID: companyID}, nil
	}
}

func companyPtr(id int64) *int64 {
	return &id
}
