package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gh-Constant/IUT-homework/internal/models"
)

const assignmentColumns = `id, title, description, subject, due_date, created_by, target_type, target_groups, target_users, is_archived, links, created_at, updated_at`

// AssignmentRepository provides persistence for assignments.
type AssignmentRepository struct {
	db  *sqlx.DB
	obs QueryObserver
}

// NewAssignmentRepository creates the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, obs: noopObserver{}}
}

// SetObserver installs a query latency observer.
func (r *AssignmentRepository) SetObserver(obs QueryObserver) {
	if obs != nil {
		r.obs = obs
	}
}

// List returns assignments matching the filter. When the filter carries a
// viewer, the visibility rule is evaluated in SQL so only the viewer's feed
// comes back; a nil viewer returns the unfiltered set (admin listing).
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	defer observe(r.obs, "assignments.list", time.Now())

	where := []string{"is_archived = $1"}
	args := []interface{}{filter.Archived}

	if filter.ViewerID != nil && filter.ViewerCategory != nil {
		where = append(where, fmt.Sprintf(`(target_type = 'global' OR (target_type = 'group' AND $%d = ANY(target_groups)) OR (target_type = 'personal' AND $%d = ANY(target_users)))`, len(args)+1, len(args)+2))
		args = append(args, string(*filter.ViewerCategory), *filter.ViewerID)
	}
	if filter.Subject != nil {
		where = append(where, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, *filter.Subject)
	}

	query := fmt.Sprintf("SELECT %s FROM assignments WHERE %s ORDER BY due_date ASC", assignmentColumns, strings.Join(where, " AND "))
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// GetByID returns an assignment by identifier.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	defer observe(r.obs, "assignments.get", time.Now())

	query := fmt.Sprintf("SELECT %s FROM assignments WHERE id = $1", assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	defer observe(r.obs, "assignments.create", time.Now())

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	const query = `INSERT INTO assignments (id, title, description, subject, due_date, created_by, target_type, target_groups, target_users, is_archived, links, created_at, updated_at)
VALUES (:id, :title, :description, :subject, :due_date, :created_by, :target_type, :target_groups, :target_users, :is_archived, :links, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update overwrites all user-editable fields of an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, a *models.Assignment) error {
	defer observe(r.obs, "assignments.update", time.Now())

	a.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, subject = :subject, due_date = :due_date,
target_type = :target_type, target_groups = :target_groups, target_users = :target_users, is_archived = :is_archived,
links = :links, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment together with its votes and completions.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	defer observe(r.obs, "assignments.delete", time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete assignment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, step := range []string{
		`DELETE FROM deletion_votes WHERE assignment_id = $1`,
		`DELETE FROM completions WHERE assignment_id = $1`,
		`DELETE FROM assignments WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, step, id); err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete assignment: %w", err)
	}
	return nil
}

// ArchiveDue flags every non-archived assignment whose due date is before
// the cutoff. Idempotent; returns the number of rows transitioned.
func (r *AssignmentRepository) ArchiveDue(ctx context.Context, cutoff time.Time) (int64, error) {
	defer observe(r.obs, "assignments.archive_due", time.Now())

	const query = `UPDATE assignments SET is_archived = TRUE, updated_at = $2 WHERE is_archived = FALSE AND due_date < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("archive due assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive due rows affected: %w", err)
	}
	return affected, nil
}

// CountAudience counts the users the assignment is addressed to: everyone
// for global, the union of the targeted groups, or the explicit user list.
func (r *AssignmentRepository) CountAudience(ctx context.Context, a *models.Assignment) (int, error) {
	defer observe(r.obs, "assignments.count_audience", time.Now())

	var (
		query string
		args  []interface{}
	)
	switch a.TargetType {
	case models.TargetGlobal:
		query = `SELECT COUNT(*) FROM users`
	case models.TargetGroup:
		query = `SELECT COUNT(*) FROM users WHERE category = ANY($1)`
		args = append(args, pq.Array([]string(a.TargetGroups)))
	case models.TargetPersonal:
		query = `SELECT COUNT(*) FROM users WHERE id = ANY($1)`
		args = append(args, pq.Array([]string(a.TargetUsers)))
	default:
		return 0, fmt.Errorf("unknown target type %q", a.TargetType)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count audience: %w", err)
	}
	return count, nil
}
