package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskdesk/taskdesk/internal/application/service"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
)

// actorHeader carries the acting user's id. Authentication happens in
// front of this service; the header is the trusted identity it forwards.
const actorHeader = "X-Actor-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	lifecycleService service.LifecycleService
	taskService      service.TaskService
	subtaskService   service.SubtaskService
	workflowService  service.WorkflowService
	reportService    service.ReportService
	logger           Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	lifecycleService service.LifecycleService,
	taskService service.TaskService,
	subtaskService service.SubtaskService,
	workflowService service.WorkflowService,
	reportService service.ReportService,
	logger Logger,
) *Handlers {
	return &Handlers{
		lifecycleService: lifecycleService,
		taskService:      taskService,
		subtaskService:   subtaskService,
		workflowService:  workflowService,
		reportService:    reportService,
		logger:           logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// MoveTaskRequest represents the move request body
type MoveTaskRequest struct {
	TargetPhaseID int64  `json:"target_phase_id" binding:"required"`
	Note          string `json:"note"`
}

// ResolveApprovalRequest represents the approval resolution body
type ResolveApprovalRequest struct {
	Decision string `json:"decision" binding:"required,oneof=APPROVED REJECTED"`
}

// AssignSubtaskRequest represents the subtask assignment body
type AssignSubtaskRequest struct {
	AssigneeID int64 `json:"assignee_id" binding:"required"`
}

// ListRequest represents common list query parameters
type ListRequest struct {
	CompanyID int64 `form:"company_id" binding:"required"`
	Limit     int   `form:"limit"`
	Offset    int   `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateWorkflow handles POST /api/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var input service.WorkflowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	detail, err := h.workflowService.Create(c.Request.Context(), actorID, &input)
	if err != nil {
		h.serviceError(c, "Failed to create workflow", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: detail})
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	detail, err := h.workflowService.Get(c.Request.Context(), actorID, id)
	if err != nil {
		h.serviceError(c, "Failed to get workflow", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	companyID, err := strconv.ParseInt(c.Query("company_id"), 10, 64)
	if err != nil {
		h.badRequest(c, "invalid company_id", err)
		return
	}

	workflows, err := h.workflowService.List(c.Request.Context(), actorID, companyID)
	if err != nil {
		h.serviceError(c, "Failed to list workflows", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: workflows})
}

// CreateTask handles POST /api/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var input service.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), actorID, &input)
	if err != nil {
		h.serviceError(c, "Failed to create task", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: task})
}

// GetTask handles GET /api/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	detail, err := h.taskService.Get(c.Request.Context(), actorID, id)
	if err != nil {
		h.serviceError(c, "Failed to get task", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// ListTasks handles GET /api/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	tasks, err := h.taskService.List(c.Request.Context(), actorID, req.CompanyID, req.Limit, req.Offset)
	if err != nil {
		h.serviceError(c, "Failed to list tasks", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// MoveTask handles POST /api/tasks/:id/move
func (h *Handlers) MoveTask(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	result, err := h.lifecycleService.MoveToPhase(c.Request.Context(), id, req.TargetPhaseID, actorID, req.Note)
	if err != nil {
		h.serviceError(c, "Failed to move task", err)
		return
	}

	status := http.StatusOK
	if result.Status == service.MoveStatusApprovalRequested {
		status = http.StatusAccepted
	}
	c.JSON(status, Response{Success: true, Data: result})
}

// ExportTaskHistory handles GET /api/tasks/:id/history/export
func (h *Handlers) ExportTaskHistory(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	buf, err := h.reportService.ExportHistory(c.Request.Context(), actorID, id)
	if err != nil {
		h.serviceError(c, "Failed to export history", err)
		return
	}

	filename := "task_" + strconv.FormatInt(id, 10) + "_history.xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

// ResolveApproval handles POST /api/approvals/:id/resolve
func (h *Handlers) ResolveApproval(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req ResolveApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	task, err := h.lifecycleService.ResolveApproval(c.Request.Context(), id, req.Decision, actorID)
	if err != nil {
		h.serviceError(c, "Failed to resolve approval", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// AssignSubtask handles POST /api/subtasks/:id/assign
func (h *Handlers) AssignSubtask(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req AssignSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	subtask, linked, err := h.subtaskService.Assign(c.Request.Context(), id, req.AssigneeID, actorID)
	if err != nil {
		h.serviceError(c, "Failed to assign subtask", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"subtask":     subtask,
		"linked_task": linked,
	}})
}

// ToggleSubtaskCompletion handles POST /api/subtasks/:id/completion
func (h *Handlers) ToggleSubtaskCompletion(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	subtask, err := h.subtaskService.ToggleCompletion(c.Request.Context(), id, actorID)
	if err != nil {
		h.serviceError(c, "Failed to toggle subtask completion", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: subtask})
}

// RepairOrphanedSubtasks handles POST /api/admin/subtasks/repair
func (h *Handlers) RepairOrphanedSubtasks(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	result, err := h.subtaskService.RepairOrphanedLinkedTasks(c.Request.Context(), actorID)
	if err != nil {
		h.serviceError(c, "Failed to repair orphaned subtasks", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// actorID extracts the acting user id from the request header
func (h *Handlers) actorID(c *gin.Context) (int64, bool) {
	raw := c.GetHeader(actorHeader)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   "missing or invalid " + actorHeader + " header",
		})
		return 0, false
	}
	return id, true
}

// pathID parses the :id path parameter
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.badRequest(c, "invalid id", err)
		return 0, false
	}
	return id, true
}

// badRequest writes a 400 response
func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// serviceError maps a service error onto an HTTP status via its stable
// code.
func (h *Handlers) serviceError(c *gin.Context, msg string, err error) {
	code := lifecycle.Code(err)

	var status int
	switch code {
	case lifecycle.CodeNotFound:
		status = http.StatusNotFound
	case lifecycle.CodeForbidden:
		status = http.StatusForbidden
	case lifecycle.CodeInvalidPhase:
		status = http.StatusBadRequest
	case lifecycle.CodeNoOpTransition, lifecycle.CodeApprovalAlreadyPending, lifecycle.CodeConflictingUpdate:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
		c.JSON(status, Response{Success: false, Error: msg, Code: code})
		return
	}

	c.JSON(status, Response{Success: false, Error: err.Error(), Code: code})
}
