package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/gh-Constant/IUT-homework/internal/models"
	appErrors "github.com/gh-Constant/IUT-homework/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	DeleteCascade(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService exposes the admin-facing user directory.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns users matching the filter, with the total count for pagination.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// Get returns a single user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Delete removes a user and everything they own: their assignments, their
// completion marks, their deletion votes, their sessions, and their slot in
// any personal assignment targeting them. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor models.User, id, ip, userAgent string) error {
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete your own account")
	}

	target, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionUserDelete,
		Resource:   "users",
		ResourceID: &id,
		OldValues:  []byte(`{"username":"` + target.Username + `"}`),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record user delete audit log", zap.Error(err))
	}

	s.logger.Info("user deleted",
		zap.String("user_id", id),
		zap.String("deleted_by", actor.ID),
	)
	return nil
}
