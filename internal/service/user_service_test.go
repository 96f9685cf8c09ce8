package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gh-Constant/IUT-homework/internal/models"
	appErrors "github.com/gh-Constant/IUT-homework/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]*models.User
	deleted []string
	audits  []*models.AuditLog
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) DeleteCascade(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func TestUserServiceDelete(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u-1": {ID: "u-1", Username: "constant", Role: models.RoleUser},
	}}
	svc := NewUserService(repo, nil)
	admin := models.User{ID: "adm-1", Role: models.RoleAdmin}

	require.NoError(t, svc.Delete(context.Background(), admin, "u-1", "127.0.0.1", "test"))
	require.Equal(t, []string{"u-1"}, repo.deleted)
	require.Len(t, repo.audits, 1)
	require.Equal(t, models.AuditActionUserDelete, repo.audits[0].Action)
}

func TestUserServiceDeleteSelfForbidden(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"adm-1": {ID: "adm-1", Username: "admin", Role: models.RoleAdmin},
	}}
	svc := NewUserService(repo, nil)
	admin := models.User{ID: "adm-1", Role: models.RoleAdmin}

	err := svc.Delete(context.Background(), admin, "adm-1", "", "")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	require.Empty(t, repo.deleted)
}

func TestUserServiceDeleteMissing(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	svc := NewUserService(repo, nil)
	admin := models.User{ID: "adm-1", Role: models.RoleAdmin}

	err := svc.Delete(context.Background(), admin, "u-gone", "", "")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestUserServiceGet(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u-1": {ID: "u-1", Username: "constant"},
	}}
	svc := NewUserService(repo, nil)

	user, err := svc.Get(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, "constant", user.Username)

	_, err = svc.Get(context.Background(), "u-2")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
