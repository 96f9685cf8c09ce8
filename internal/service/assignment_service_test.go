package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/gh-Constant/IUT-homework/internal/models"
	"github.com/gh-Constant/IUT-homework/internal/rules"
	appErrors "github.com/gh-Constant/IUT-homework/pkg/errors"
	"github.com/gh-Constant/IUT-homework/pkg/scheduler"
)

type mockAssignmentRepo struct {
	assignments map[string]*models.Assignment
	listed      []models.Assignment
	listErr     error
	archiveRows int64
	archiveErr  error
	audience    int
	created     *models.Assignment
	updated     *models.Assignment
	deletedIDs  []string
}

func (m *mockAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listed, nil
}

func (m *mockAssignmentRepo) GetByID(ctx context.Context, id string) (*models.Assignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return a, nil
}

func (m *mockAssignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = "a-new"
	}
	m.created = a
	return nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, a *models.Assignment) error {
	m.updated = a
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

func (m *mockAssignmentRepo) ArchiveDue(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.archiveRows, m.archiveErr
}

func (m *mockAssignmentRepo) CountAudience(ctx context.Context, a *models.Assignment) (int, error) {
	return m.audience, nil
}

type mockCompletionRepo struct {
	completed map[string]bool
	counts    map[string]int
	setCalls  []string
}

func (m *mockCompletionRepo) SetCompleted(ctx context.Context, userID, assignmentID string, completed bool) error {
	if m.completed == nil {
		m.completed = map[string]bool{}
	}
	m.completed[assignmentID] = completed
	m.setCalls = append(m.setCalls, assignmentID)
	return nil
}

func (m *mockCompletionRepo) CompletedSet(ctx context.Context, userID string, assignmentIDs []string) (map[string]bool, error) {
	return m.completed, nil
}

func (m *mockCompletionRepo) IsCompleted(ctx context.Context, userID, assignmentID string) (bool, error) {
	return m.completed[assignmentID], nil
}

func (m *mockCompletionRepo) CompletionCounts(ctx context.Context, assignmentIDs []string) (map[string]int, error) {
	return m.counts, nil
}

type mockVoteRepo struct {
	votes    int
	addErr   error
	addCalls int
	hasVoted bool
}

func (m *mockVoteRepo) Add(ctx context.Context, vote *models.DeletionVote) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.addCalls++
	m.votes++
	return nil
}

func (m *mockVoteRepo) Count(ctx context.Context, assignmentID string) (int, error) {
	return m.votes, nil
}

func (m *mockVoteRepo) HasVoted(ctx context.Context, assignmentID, voterID string) (bool, error) {
	return m.hasVoted, nil
}

type mockUserDirectory struct {
	usernames map[string]string
	audits    []*models.AuditLog
}

func (m *mockUserDirectory) UsernamesByID(ctx context.Context, ids []string) (map[string]string, error) {
	return m.usernames, nil
}

func (m *mockUserDirectory) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

type mockReminders struct {
	scheduled []scheduler.Reminder
	cancelled []string
}

func (m *mockReminders) Schedule(r scheduler.Reminder) { m.scheduled = append(m.scheduled, r) }
func (m *mockReminders) Cancel(id string)              { m.cancelled = append(m.cancelled, id) }

type assignmentFixture struct {
	svc         *AssignmentService
	repo        *mockAssignmentRepo
	completions *mockCompletionRepo
	votes       *mockVoteRepo
	users       *mockUserDirectory
	reminders   *mockReminders
	now         time.Time
}

func newAssignmentFixture(t *testing.T, policy rules.Policy) *assignmentFixture {
	t.Helper()
	f := &assignmentFixture{
		repo:        &mockAssignmentRepo{assignments: map[string]*models.Assignment{}, audience: 10},
		completions: &mockCompletionRepo{completed: map[string]bool{}, counts: map[string]int{}},
		votes:       &mockVoteRepo{},
		users:       &mockUserDirectory{usernames: map[string]string{"u-1": "constant"}},
		reminders:   &mockReminders{},
		now:         time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewAssignmentService(f.repo, f.completions, f.votes, f.users, f.reminders, nil, nil, AssignmentServiceConfig{
		Policy:           policy,
		RemindersEnabled: true,
		ReminderLead:     24 * time.Hour,
	})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *assignmentFixture) seed(a models.Assignment) *models.Assignment {
	stored := a
	f.repo.assignments[a.ID] = &stored
	return &stored
}

func groupAssignment(id string, due time.Time) models.Assignment {
	return models.Assignment{
		ID:           id,
		Title:        "DM de maths",
		Subject:      models.SubjectInformatique,
		DueDate:      due,
		CreatedBy:    "u-1",
		TargetType:   models.TargetGroup,
		TargetGroups: pq.StringArray{"B1"},
		CreatedAt:    due.Add(-96 * time.Hour),
	}
}

func TestAssignmentServiceFeedDecorates(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{VoteQuorumRatio: 0.3})
	viewer := models.User{ID: "u-2", Category: models.CategoryB1, Role: models.RoleUser}

	f.repo.listed = []models.Assignment{groupAssignment("a-1", f.now.Add(30*time.Minute))}
	f.completions.counts = map[string]int{"a-1": 4}

	views, err := f.svc.Feed(context.Background(), viewer, false)
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	require.Equal(t, "constant", v.AuthorName)
	require.False(t, v.Completed)
	require.Equal(t, rules.DeadlineUnderHour, v.Deadline.Status)
	require.Equal(t, "MOINS D'UNE HEURE", v.Deadline.Label)
	require.False(t, v.Permissions.CanEdit)
	require.Equal(t, 4, v.Stats.Completed)
	require.Equal(t, 10, v.Stats.Total)
}

func TestAssignmentServiceFeedSurvivesSweepFailure(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.repo.archiveErr = errors.New("db busy")
	f.repo.listed = []models.Assignment{}

	_, err := f.svc.Feed(context.Background(), models.User{ID: "u-2", Category: models.CategoryB1}, false)
	require.NoError(t, err)
}

func TestAssignmentServiceGetHidesInvisible(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.seed(groupAssignment("a-1", f.now.Add(time.Hour)))

	outsider := models.User{ID: "u-9", Category: models.CategoryC2, Role: models.RoleUser}
	_, err := f.svc.Get(context.Background(), outsider, "a-1")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	// Missing entirely looks the same.
	_, err = f.svc.Get(context.Background(), outsider, "a-ghost")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAssignmentServiceCreateNormalizesTargets(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	viewer := models.User{ID: "u-1", Category: models.CategoryB1, Role: models.RoleUser}

	created, err := f.svc.Create(context.Background(), viewer, CreateAssignmentRequest{
		Title:        "Oral d'anglais",
		Description:  `<p>Préparer le <strong>support</strong></p><script>alert(1)</script>`,
		Subject:      "Anglais",
		DueDate:      f.now.Add(72 * time.Hour),
		TargetType:   "group",
		TargetGroups: []models.Category{"B1", "B1", "A1"},
	})
	require.NoError(t, err)
	require.Equal(t, "u-1", created.CreatedBy)
	require.Equal(t, []string{"B1", "A1"}, []string(created.TargetGroups))
	require.Empty(t, created.TargetUsers)
	require.Contains(t, created.Description, "<strong>support</strong>")
	require.NotContains(t, created.Description, "script")
	require.False(t, created.IsArchived)

	require.Len(t, f.reminders.scheduled, 1)
	require.Equal(t, created.ID, f.reminders.scheduled[0].ID)
	require.Equal(t, created.DueDate.Add(-24*time.Hour), f.reminders.scheduled[0].FireAt)
}

func TestAssignmentServiceCreateRejectsBadTargets(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	viewer := models.User{ID: "u-1", Category: models.CategoryB1}

	cases := []struct {
		name string
		req  CreateAssignmentRequest
	}{
		{
			name: "group without groups",
			req:  CreateAssignmentRequest{Title: "t", Subject: "SAE", DueDate: f.now.Add(time.Hour), TargetType: "group"},
		},
		{
			name: "personal without users",
			req:  CreateAssignmentRequest{Title: "t", Subject: "SAE", DueDate: f.now.Add(time.Hour), TargetType: "personal"},
		},
		{
			name: "unknown group",
			req:  CreateAssignmentRequest{Title: "t", Subject: "SAE", DueDate: f.now.Add(time.Hour), TargetType: "group", TargetGroups: []models.Category{"Z9"}},
		},
		{
			name: "unknown subject",
			req:  CreateAssignmentRequest{Title: "t", Subject: "Philosophie", DueDate: f.now.Add(time.Hour), TargetType: "global"},
		},
		{
			name: "bad link scheme",
			req: CreateAssignmentRequest{Title: "t", Subject: "SAE", DueDate: f.now.Add(time.Hour), TargetType: "global",
				Links: []models.Link{{URL: "javascript:alert(1)"}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), viewer, tc.req)
			var appErr *appErrors.Error
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		})
	}
}

func TestAssignmentServiceUpdateRequiresEditRights(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.seed(groupAssignment("a-1", f.now.Add(time.Hour)))

	groupMember := models.User{ID: "u-5", Category: models.CategoryB1, Role: models.RoleUser}
	_, err := f.svc.Update(context.Background(), groupMember, "a-1", UpdateAssignmentRequest{
		Title: "hijack", Subject: "SAE", DueDate: f.now.Add(time.Hour), TargetType: "global",
	})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAssignmentServiceUpdateReschedulesReminder(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.seed(groupAssignment("a-1", f.now.Add(time.Hour)))

	creator := models.User{ID: "u-1", Category: models.CategoryB1, Role: models.RoleUser}
	newDue := f.now.Add(96 * time.Hour)
	updated, err := f.svc.Update(context.Background(), creator, "a-1", UpdateAssignmentRequest{
		Title: "DM de maths v2", Subject: "Informatique", DueDate: newDue, TargetType: "group",
		TargetGroups: []models.Category{"B1"},
	})
	require.NoError(t, err)
	require.Equal(t, "DM de maths v2", updated.Title)
	require.Equal(t, []string{"a-1"}, f.reminders.cancelled)
	require.Len(t, f.reminders.scheduled, 1)
	require.Equal(t, newDue.Add(-24*time.Hour), f.reminders.scheduled[0].FireAt)
}

func TestAssignmentServiceDeleteCoolDown(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{MinDeletionDelay: time.Hour})
	a := groupAssignment("a-1", f.now.Add(72*time.Hour))
	a.CreatedAt = f.now.Add(-10 * time.Minute)
	f.seed(a)

	creator := models.User{ID: "u-1", Category: models.CategoryB1, Role: models.RoleUser}
	err := f.svc.Delete(context.Background(), creator, "a-1", "127.0.0.1", "test")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrDeletionLocked.Code, appErr.Code)
	require.Empty(t, f.repo.deletedIDs)
}

func TestAssignmentServiceDeleteByCreator(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.seed(groupAssignment("a-1", f.now.Add(72*time.Hour)))

	creator := models.User{ID: "u-1", Category: models.CategoryB1, Role: models.RoleUser}
	require.NoError(t, f.svc.Delete(context.Background(), creator, "a-1", "127.0.0.1", "test"))
	require.Equal(t, []string{"a-1"}, f.repo.deletedIDs)
	require.Equal(t, []string{"a-1"}, f.reminders.cancelled)
	require.Len(t, f.users.audits, 1)
	require.Equal(t, models.AuditActionAssignmentDelete, f.users.audits[0].Action)
}

func TestAssignmentServiceVoteFlow(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{VoteQuorumRatio: 0.3})
	f.repo.audience = 10
	f.seed(groupAssignment("a-1", f.now.Add(72*time.Hour)))

	voter := models.User{ID: "u-5", Category: models.CategoryB1, Role: models.RoleUser}

	// First two votes accumulate without deleting.
	f.votes.votes = 0
	result, err := f.svc.Vote(context.Background(), voter, "a-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Votes)
	require.Equal(t, 3, result.Required)
	require.False(t, result.Deleted)
	require.Empty(t, f.repo.deletedIDs)

	// Third vote reaches the 30% quorum and deletes.
	f.votes.votes = 2
	result, err = f.svc.Vote(context.Background(), models.User{ID: "u-6", Category: models.CategoryB1}, "a-1")
	require.NoError(t, err)
	require.Equal(t, 3, result.Votes)
	require.True(t, result.Deleted)
	require.Equal(t, []string{"a-1"}, f.repo.deletedIDs)
	require.Len(t, f.users.audits, 1)
	require.Equal(t, models.AuditActionQuorumDelete, f.users.audits[0].Action)
}

func TestAssignmentServiceVoteRejectsPrivileged(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.seed(groupAssignment("a-1", f.now.Add(72*time.Hour)))

	creator := models.User{ID: "u-1", Category: models.CategoryB1, Role: models.RoleUser}
	_, err := f.svc.Vote(context.Background(), creator, "a-1")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	require.Zero(t, f.votes.addCalls)
}

func TestAssignmentServiceVoteTwiceRejectedBeforeInsert(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.seed(groupAssignment("a-1", f.now.Add(72*time.Hour)))
	f.votes.hasVoted = true

	voter := models.User{ID: "u-5", Category: models.CategoryB1, Role: models.RoleUser}
	_, err := f.svc.Vote(context.Background(), voter, "a-1")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrAlreadyVoted.Code, appErr.Code)
	require.Zero(t, f.votes.addCalls)
}

func TestAssignmentServiceVoteDuplicate(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.seed(groupAssignment("a-1", f.now.Add(72*time.Hour)))
	f.votes.addErr = &pq.Error{Code: "23505"}

	voter := models.User{ID: "u-5", Category: models.CategoryB1, Role: models.RoleUser}
	_, err := f.svc.Vote(context.Background(), voter, "a-1")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrAlreadyVoted.Code, appErr.Code)
}

func TestAssignmentServiceSetCompletion(t *testing.T) {
	f := newAssignmentFixture(t, rules.Policy{})
	f.seed(groupAssignment("a-1", f.now.Add(72*time.Hour)))

	viewer := models.User{ID: "u-5", Category: models.CategoryB1, Role: models.RoleUser}
	view, err := f.svc.SetCompletion(context.Background(), viewer, "a-1", true)
	require.NoError(t, err)
	require.True(t, view.Completed)
	require.Equal(t, rules.DeadlineCompleted, view.Deadline.Status)
	require.Equal(t, "TERMINÉ", view.Deadline.Label)
}
