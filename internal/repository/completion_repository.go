package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CompletionRepository stores per-user assignment completion marks.
type CompletionRepository struct {
	db  *sqlx.DB
	obs QueryObserver
}

// NewCompletionRepository creates the repository.
func NewCompletionRepository(db *sqlx.DB) *CompletionRepository {
	return &CompletionRepository{db: db, obs: noopObserver{}}
}

// SetObserver installs a query latency observer.
func (r *CompletionRepository) SetObserver(obs QueryObserver) {
	if obs != nil {
		r.obs = obs
	}
}

// SetCompleted marks or unmarks an assignment as done for a user. Both
// directions are idempotent.
func (r *CompletionRepository) SetCompleted(ctx context.Context, userID, assignmentID string, completed bool) error {
	defer observe(r.obs, "completions.set", time.Now())

	if completed {
		const query = `INSERT INTO completions (user_id, assignment_id, completed_at) VALUES ($1, $2, $3) ON CONFLICT (user_id, assignment_id) DO NOTHING`
		if _, err := r.db.ExecContext(ctx, query, userID, assignmentID, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark completion: %w", err)
		}
		return nil
	}
	const query = `DELETE FROM completions WHERE user_id = $1 AND assignment_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, assignmentID); err != nil {
		return fmt.Errorf("unmark completion: %w", err)
	}
	return nil
}

// CompletedSet returns the subset of the given assignment ids the user has
// completed.
func (r *CompletionRepository) CompletedSet(ctx context.Context, userID string, assignmentIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return out, nil
	}
	defer observe(r.obs, "completions.completed_set", time.Now())
	const query = `SELECT assignment_id FROM completions WHERE user_id = $1 AND assignment_id = ANY($2)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, pq.Array(assignmentIDs)); err != nil {
		return nil, fmt.Errorf("load completions: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// IsCompleted reports whether the user has completed the assignment.
func (r *CompletionRepository) IsCompleted(ctx context.Context, userID, assignmentID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM completions WHERE user_id = $1 AND assignment_id = $2)`
	var done bool
	if err := r.db.GetContext(ctx, &done, query, userID, assignmentID); err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return done, nil
}

// CompletionCounts returns, per assignment, how many users marked it done.
func (r *CompletionRepository) CompletionCounts(ctx context.Context, assignmentIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(assignmentIDs))
	if len(assignmentIDs) == 0 {
		return out, nil
	}
	defer observe(r.obs, "completions.counts", time.Now())
	const query = `SELECT assignment_id, COUNT(*) AS total FROM completions WHERE assignment_id = ANY($1) GROUP BY assignment_id`
	rows := []struct {
		AssignmentID string `db:"assignment_id"`
		Total        int    `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(assignmentIDs)); err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	for _, row := range rows {
		out[row.AssignmentID] = row.Total
	}
	return out, nil
}
