package entity

// Task type constants
const (
	TaskTypeTask    = "TASK"
	TaskTypeSubtask = "SUBTASK"
)

// Priority constants
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// Role constants. RoleAdmin is the tenant's top administrative role;
// RoleSuperAdmin is the platform-level superuser with no tenant.
const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleManager    = "MANAGER"
	RoleEmployee   = "EMPLOYEE"
)

// Approval status constants
const (
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusResolved = "RESOLVED"
)

// Approval decision constants
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)
