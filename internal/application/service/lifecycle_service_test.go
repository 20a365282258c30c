package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/event"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
)

type lifecycleFixture struct {
	workflows *mockWorkflowRepo
	tasks     *mockTaskRepo
	history   *mockHistoryRepo
	approvals *mockApprovalRepo
	users     *mockUserRepo
	sync      *mockSubtaskSync
	sink      *mockEventSink
	service   LifecycleService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		workflows: &mockWorkflowRepo{},
		tasks:     &mockTaskRepo{},
		history:   &mockHistoryRepo{},
		approvals: &mockApprovalRepo{},
		users:     &mockUserRepo{},
		sync:      &mockSubtaskSync{},
		sink:      &mockEventSink{},
	}
	f.service = NewLifecycleService(
		f.workflows, f.tasks, f.history, f.approvals,
		&mockTxManager{}, newTestGuard(f.users), NewAuthorizer(),
		f.sync, f.sink, &mockLogger{},
	)
	return f
}

func TestMoveToPhase_Allowed(t *testing.T) {
	f := newLifecycleFixture()

	var recordedHistory *entity.PhaseHistory
	f.history.createFunc = func(ctx context.Context, h *entity.PhaseHistory) error {
		recordedHistory = h
		h.ID = 1
		return nil
	}

	var committedPhase int64
	var committedCompletedAt *time.Time
	f.tasks.updateCurrentPhaseFunc = func(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error {
		committedPhase = phaseID
		committedCompletedAt = completedAt
		return nil
	}

	// Phase 103 is the open end phase, reachable by any role.
	result, err := f.service.MoveToPhase(context.Background(), 1, 103, 5, "done")
	if err != nil {
		t.Fatalf("MoveToPhase() error = %v", err)
	}

	if result.Status != MoveStatusMoved {
		t.Errorf("result.Status = %s, want %s", result.Status, MoveStatusMoved)
	}
	if result.Task.CurrentPhaseID != 103 {
		t.Errorf("task.CurrentPhaseID = %d, want 103", result.Task.CurrentPhaseID)
	}
	if result.Task.Version != 2 {
		t.Errorf("task.Version = %d, want 2", result.Task.Version)
	}
	if committedPhase != 103 {
		t.Errorf("committed phase = %d, want 103", committedPhase)
	}
	if committedCompletedAt == nil {
		t.Error("completedAt not set on move into end phase")
	}

	if recordedHistory == nil {
		t.Fatal("no history row recorded")
	}
	if recordedHistory.FromPhaseID == nil || *recordedHistory.FromPhaseID != 101 {
		t.Errorf("history.FromPhaseID = %v, want 101", recordedHistory.FromPhaseID)
	}
	if recordedHistory.ToPhaseID != 103 {
		t.Errorf("history.ToPhaseID = %d, want 103", recordedHistory.ToPhaseID)
	}
	if recordedHistory.Note != "done" {
		t.Errorf("history.Note = %q, want %q", recordedHistory.Note, "done")
	}

	if len(f.sink.events) != 1 || f.sink.events[0].Type != event.TypePhaseChanged {
		t.Fatalf("published events = %v, want one phase_changed", f.sink.events)
	}
}

func TestMoveToPhase_ApprovalRequested(t *testing.T) {
	f := newLifecycleFixture()
	f.users.getByIDFunc = userWithRole(entity.RoleManager, companyPtr(7))

	var moved bool
	f.tasks.updateCurrentPhaseFunc = func(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error {
		moved = true
		return nil
	}

	var created *entity.PhaseApproval
	f.approvals.createFunc = func(ctx context.Context, a *entity.PhaseApproval) error {
		created = a
		a.ID = 33
		return nil
	}

	// Phase 102 requires approval for non-administrators.
	result, err := f.service.MoveToPhase(context.Background(), 1, 102, 5, "please review")
	if err != nil {
		t.Fatalf("MoveToPhase() error = %v", err)
	}

	if result.Status != MoveStatusApprovalRequested {
		t.Errorf("result.Status = %s, want %s", result.Status, MoveStatusApprovalRequested)
	}
	if result.ApprovalID != 33 {
		t.Errorf("result.ApprovalID = %d, want 33", result.ApprovalID)
	}
	if moved {
		t.Error("task phase committed despite pending approval")
	}
	if result.Task.CurrentPhaseID != 101 {
		t.Errorf("task.CurrentPhaseID = %d, want unchanged 101", result.Task.CurrentPhaseID)
	}

	if created == nil {
		t.Fatal("no approval created")
	}
	if created.Status != entity.ApprovalStatusPending {
		t.Errorf("approval.Status = %s, want PENDING", created.Status)
	}
	if created.RequestedPhaseID != 102 {
		t.Errorf("approval.RequestedPhaseID = %d, want 102", created.RequestedPhaseID)
	}

	if len(f.sink.events) != 1 || f.sink.events[0].Type != event.TypeApprovalRequested {
		t.Fatalf("published events = %v, want one approval_requested", f.sink.events)
	}
}

func TestMoveToPhase_ApprovalAlreadyPending(t *testing.T) {
	f := newLifecycleFixture()
	f.users.getByIDFunc = userWithRole(entity.RoleManager, companyPtr(7))
	f.approvals.getPendingByTaskIDFunc = func(ctx context.Context, taskID int64) (*entity.PhaseApproval, error) {
		return &entity.PhaseApproval{ID: 9, TaskID: taskID, Status: entity.ApprovalStatusPending}, nil
	}

	_, err := f.service.MoveToPhase(context.Background(), 1, 102, 5, "")
	if !errors.Is(err, lifecycle.ErrApprovalAlreadyPending) {
		t.Errorf("MoveToPhase() error = %v, want ErrApprovalAlreadyPending", err)
	}
}

func TestMoveToPhase_CrossTenant(t *testing.T) {
	f := newLifecycleFixture()
	f.users.getByIDFunc = userWithRole(entity.RoleAdmin, companyPtr(8))

	_, err := f.service.MoveToPhase(context.Background(), 1, 103, 5, "")
	if !errors.Is(err, lifecycle.ErrForbidden) {
		t.Errorf("MoveToPhase() error = %v, want ErrForbidden", err)
	}
	if len(f.sink.events) != 0 {
		t.Errorf("events published on denied move: %v", f.sink.events)
	}
}

func TestMoveToPhase_VersionConflict(t *testing.T) {
	f := newLifecycleFixture()
	f.tasks.updateCurrentPhaseFunc = func(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error {
		return lifecycle.ErrConflictingUpdate
	}

	_, err := f.service.MoveToPhase(context.Background(), 1, 103, 5, "")
	if !errors.Is(err, lifecycle.ErrConflictingUpdate) {
		t.Errorf("MoveToPhase() error = %v, want ErrConflictingUpdate", err)
	}
	if len(f.sink.events) != 0 {
		t.Errorf("events published on failed commit: %v", f.sink.events)
	}
}

func TestMoveToPhase_SyncsLinkedSubtask(t *testing.T) {
	f := newLifecycleFixture()
	subtaskID := int64(20)
	f.tasks.getByIDFunc = func(ctx context.Context, id int64) (*entity.Task, error) {
		return &entity.Task{ID: id, CompanyID: 7, WorkflowID: 10, CurrentPhaseID: 101, Version: 1,
			TaskType: entity.TaskTypeSubtask, SubtaskID: &subtaskID}, nil
	}

	var syncedEndPhase bool
	f.sync.fn = func(ctx context.Context, task *entity.Task, endPhase bool) error {
		syncedEndPhase = endPhase
		if task.CurrentPhaseID != 103 {
			t.Errorf("sync saw phase %d, want committed 103", task.CurrentPhaseID)
		}
		return nil
	}

	if _, err := f.service.MoveToPhase(context.Background(), 1, 103, 5, ""); err != nil {
		t.Fatalf("MoveToPhase() error = %v", err)
	}
	if f.sync.calls != 1 {
		t.Errorf("sync calls = %d, want 1", f.sync.calls)
	}
	if !syncedEndPhase {
		t.Error("sync not told the target is an end phase")
	}
}

func TestResolveApproval_Approve(t *testing.T) {
	f := newLifecycleFixture()
	f.users.getByIDFunc = userWithRole(entity.RoleAdmin, companyPtr(7))
	f.approvals.getByIDFunc = func(ctx context.Context, id int64) (*entity.PhaseApproval, error) {
		return &entity.PhaseApproval{ID: id, CompanyID: 7, TaskID: 1, RequestedPhaseID: 102,
			RequestedByID: 5, Status: entity.ApprovalStatusPending}, nil
	}

	var resolvedDecision string
	f.approvals.resolveFunc = func(ctx context.Context, id int64, decision string, approverID int64, resolvedAt time.Time) error {
		resolvedDecision = decision
		return nil
	}

	var committedPhase int64
	f.tasks.updateCurrentPhaseFunc = func(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error {
		committedPhase = phaseID
		return nil
	}

	task, err := f.service.ResolveApproval(context.Background(), 33, entity.DecisionApproved, 9)
	if err != nil {
		t.Fatalf("ResolveApproval() error = %v", err)
	}

	if resolvedDecision != entity.DecisionApproved {
		t.Errorf("resolved decision = %s, want APPROVED", resolvedDecision)
	}
	if committedPhase != 102 {
		t.Errorf("committed phase = %d, want 102", committedPhase)
	}
	if task.CurrentPhaseID != 102 {
		t.Errorf("task.CurrentPhaseID = %d, want 102", task.CurrentPhaseID)
	}

	// phase_changed from the commit, approval_resolved after.
	if len(f.sink.events) != 2 {
		t.Fatalf("published %d events, want 2", len(f.sink.events))
	}
	if f.sink.events[0].Type != event.TypePhaseChanged || f.sink.events[1].Type != event.TypeApprovalResolved {
		t.Errorf("event types = %v, %v", f.sink.events[0].Type, f.sink.events[1].Type)
	}
}

func TestResolveApproval_Reject(t *testing.T) {
	f := newLifecycleFixture()
	f.users.getByIDFunc = userWithRole(entity.RoleAdmin, companyPtr(7))
	f.approvals.getByIDFunc = func(ctx context.Context, id int64) (*entity.PhaseApproval, error) {
		return &entity.PhaseApproval{ID: id, CompanyID: 7, TaskID: 1, RequestedPhaseID: 102,
			RequestedByID: 5, Status: entity.ApprovalStatusPending}, nil
	}

	var moved bool
	f.tasks.updateCurrentPhaseFunc = func(ctx context.Context, id, expectedVersion, phaseID int64, completedAt *time.Time) error {
		moved = true
		return nil
	}

	task, err := f.service.ResolveApproval(context.Background(), 33, entity.DecisionRejected, 9)
	if err != nil {
		t.Fatalf("ResolveApproval() error = %v", err)
	}

	if moved {
		t.Error("task moved on rejection")
	}
	if task.CurrentPhaseID != 101 {
		t.Errorf("task.CurrentPhaseID = %d, want unchanged 101", task.CurrentPhaseID)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != event.TypeApprovalResolved {
		t.Fatalf("published events = %v, want one approval_resolved", f.sink.events)
	}
}

func TestResolveApproval_RequiresAdmin(t *testing.T) {
	f := newLifecycleFixture()
	f.users.getByIDFunc = userWithRole(entity.RoleManager, companyPtr(7))
	f.approvals.getByIDFunc = func(ctx context.Context, id int64) (*entity.PhaseApproval, error) {
		return &entity.PhaseApproval{ID: id, CompanyID: 7, TaskID: 1, RequestedPhaseID: 102,
			Status: entity.ApprovalStatusPending}, nil
	}

	_, err := f.service.ResolveApproval(context.Background(), 33, entity.DecisionApproved, 6)
	if !errors.Is(err, lifecycle.ErrForbidden) {
		t.Errorf("ResolveApproval() error = %v, want ErrForbidden", err)
	}
}

func TestResolveApproval_AlreadyResolved(t *testing.T) {
	f := newLifecycleFixture()
	f.users.getByIDFunc = userWithRole(entity.RoleAdmin, companyPtr(7))
	f.approvals.getByIDFunc = func(ctx context.Context, id int64) (*entity.PhaseApproval, error) {
		return &entity.PhaseApproval{ID: id, CompanyID: 7, TaskID: 1, RequestedPhaseID: 102,
			Status: entity.ApprovalStatusResolved, Decision: entity.DecisionApproved}, nil
	}

	_, err := f.service.ResolveApproval(context.Background(), 33, entity.DecisionApproved, 9)
	if !errors.Is(err, lifecycle.ErrNotFound) {
		t.Errorf("ResolveApproval() error = %v, want ErrNotFound", err)
	}
}

func TestResolveApproval_UnknownDecision(t *testing.T) {
	f := newLifecycleFixture()

	_, err := f.service.ResolveApproval(context.Background(), 33, "MAYBE", 9)
	if err == nil {
		t.Error("ResolveApproval() accepted unknown decision")
	}
}
