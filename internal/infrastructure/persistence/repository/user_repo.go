package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/application/port"
	"github.com/taskdesk/taskdesk/internal/domain/entity"
	"github.com/taskdesk/taskdesk/internal/domain/lifecycle"
	"github.com/taskdesk/taskdesk/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a user by its ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `
		SELECT id, name, email, role, company_id, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	var user entity.User
	var companyID sql.NullInt64

	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&companyID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID",
			zap.Int64("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if companyID.Valid {
		user.CompanyID = &companyID.Int64
	}

	return &user, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
