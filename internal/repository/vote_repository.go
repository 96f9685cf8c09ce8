package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gh-Constant/IUT-homework/internal/models"
)

// VoteRepository stores deletion votes. The table carries a uniqueness
// constraint on (assignment_id, voter_id) so concurrent duplicate votes
// collapse into a single row.
type VoteRepository struct {
	db  *sqlx.DB
	obs QueryObserver
}

// NewVoteRepository creates the repository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db, obs: noopObserver{}}
}

// SetObserver installs a query latency observer.
func (r *VoteRepository) SetObserver(obs QueryObserver) {
	if obs != nil {
		r.obs = obs
	}
}

// Add records a vote. Returns the raw unique-violation error when the voter
// has already voted; callers map it to a conflict.
func (r *VoteRepository) Add(ctx context.Context, vote *models.DeletionVote) error {
	defer observe(r.obs, "votes.add", time.Now())

	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deletion_votes (assignment_id, voter_id, created_at) VALUES (:assignment_id, :voter_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, vote); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("add deletion vote: %w", err)
	}
	return nil
}

// Count returns the number of votes cast against an assignment.
func (r *VoteRepository) Count(ctx context.Context, assignmentID string) (int, error) {
	defer observe(r.obs, "votes.count", time.Now())

	const query = `SELECT COUNT(*) FROM deletion_votes WHERE assignment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, assignmentID); err != nil {
		return 0, fmt.Errorf("count deletion votes: %w", err)
	}
	return count, nil
}

// HasVoted reports whether the user already voted against the assignment.
func (r *VoteRepository) HasVoted(ctx context.Context, assignmentID, voterID string) (bool, error) {
	defer observe(r.obs, "votes.has_voted", time.Now())

	const query = `SELECT EXISTS(SELECT 1 FROM deletion_votes WHERE assignment_id = $1 AND voter_id = $2)`
	var voted bool
	if err := r.db.GetContext(ctx, &voted, query, assignmentID, voterID); err != nil {
		return false, fmt.Errorf("check deletion vote: %w", err)
	}
	return voted, nil
}
