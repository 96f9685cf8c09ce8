package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gh-Constant/IUT-homework/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func assignmentRows(id string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "title", "description", "subject", "due_date", "created_by", "target_type", "target_groups", "target_users", "is_archived", "links", "created_at", "updated_at"}).
		AddRow(id, "DM de maths", "", "Informatique", now.Add(48*time.Hour), "u-1", "group", "{A1,B1}", "{}", false, []byte(`[]`), now, now)
}

func TestAssignmentRepositoryListForViewer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	viewerID := "u-7"
	category := models.CategoryB1

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, subject, due_date, created_by, target_type, target_groups, target_users, is_archived, links, created_at, updated_at FROM assignments")).
		WithArgs(false, "B1", "u-7").
		WillReturnRows(assignmentRows("a-1"))

	items, err := repo.List(context.Background(), models.AssignmentFilter{
		ViewerID:       &viewerID,
		ViewerCategory: &category,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "a-1", items[0].ID)
	require.Equal(t, []string{"A1", "B1"}, []string(items[0].TargetGroups))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListAdmin(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)

	// No viewer in the filter means no visibility clause.
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE is_archived = $1 ORDER BY due_date ASC")).
		WithArgs(true).
		WillReturnRows(assignmentRows("a-2"))

	items, err := repo.List(context.Background(), models.AssignmentFilter{Archived: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	a := &models.Assignment{
		Title:      "Essai d'anglais",
		Subject:    models.SubjectAnglais,
		DueDate:    time.Now().Add(72 * time.Hour),
		CreatedBy:  "u-1",
		TargetType: models.TargetGlobal,
	}
	require.NoError(t, repo.Create(context.Background(), a))
	require.NotEmpty(t, a.ID)
	require.False(t, a.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDeleteCascades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deletion_votes WHERE assignment_id = $1")).
		WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM completions WHERE assignment_id = $1")).
		WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE id = $1")).
		WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "a-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryArchiveDue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)
	cutoff := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET is_archived = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 4))

	archived, err := repo.ArchiveDue(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 4, archived)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCountAudience(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAssignmentRepository(db)

	t.Run("global counts every user", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
		count, err := repo.CountAudience(context.Background(), &models.Assignment{TargetType: models.TargetGlobal})
		require.NoError(t, err)
		require.Equal(t, 42, count)
	})

	t.Run("group counts union of groups", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE category = ANY($1)")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))
		count, err := repo.CountAudience(context.Background(), &models.Assignment{
			TargetType:   models.TargetGroup,
			TargetGroups: []string{"A1", "B1"},
		})
		require.NoError(t, err)
		require.Equal(t, 17, count)
	})

	t.Run("personal counts existing targets only", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE id = ANY($1)")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		count, err := repo.CountAudience(context.Background(), &models.Assignment{
			TargetType:  models.TargetPersonal,
			TargetUsers: []string{"u-1", "u-2", "u-gone"},
		})
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("unknown target type errors", func(t *testing.T) {
		_, err := repo.CountAudience(context.Background(), &models.Assignment{TargetType: "broadcast"})
		require.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
