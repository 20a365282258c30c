package service

import (
	"context"
	"fmt"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TenantGuard attaches the acting user's tenant scope to every lifecycle
// call and rejects cross-tenant access before any transition logic runs.
type TenantGuard struct {
	users  port.UserRepository
	logger Logger
}

// NewTenantGuard creates a new tenant isolation guard
func NewTenantGuard(users port.UserRepository, logger Logger) *TenantGuard {
	return &TenantGuard{
		users:  users,
		logger: logger,
	}
}

// Resolve implements port.ActorResolver. Capability flags are resolved once
// per request. A non-administrator with no tenant is a configuration error
// and fails closed; it never defaults to "no isolation".
func (g *TenantGuard) Resolve(ctx context.Context, userID int64) (*lifecycle.Actor, error) {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve actor %d: %w", userID, err)
	}

	actor := &lifecycle.Actor{
		ID:        user.ID,
		Role:      user.Role,
		CompanyID: user.CompanyID,
	}

	switch user.Role {
	case entity.RoleSuperAdmin:
		if user.CompanyID == nil {
			actor.Platform = true
			actor.Admin = true
		} else {
			// A tenant-bound superadmin is treated as that tenant's admin.
			actor.Admin = true
		}
	case entity.RoleAdmin:
		actor.Admin = true
	}

	if !actor.Platform && actor.CompanyID == nil {
		g.logger.Error("Actor has no tenant and is not a platform administrator",
			"user_id", userID, "role", user.Role)
		return nil, fmt.Errorf("actor %d has no tenant: %w", userID, lifecycle.ErrForbidden)
	}

	return actor, nil
}

// CheckCompany rejects access to an object owned by another tenant.
func (g *TenantGuard) CheckCompany(actor *lifecycle.Actor, companyID int64) error {
	if actor.SameCompany(companyID) {
		return nil
	}
	g.logger.Error("Cross-tenant access rejected",
		"actor_id", actor.ID, "company_id", companyID)
	return fmt.Errorf("company %d out of actor scope: %w", companyID, lifecycle.ErrForbidden)
}

// Verify interface compliance
var _ port.ActorResolver = (*TenantGuard)(nil)
