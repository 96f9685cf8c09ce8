package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/gh-Constant/IUT-homework/internal/models"
	"github.com/gh-Constant/IUT-homework/internal/repository"
	"github.com/gh-Constant/IUT-homework/internal/rules"
	appErrors "github.com/gh-Constant/IUT-homework/pkg/errors"
	"github.com/gh-Constant/IUT-homework/pkg/scheduler"
)

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	GetByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, a *models.Assignment) error
	Update(ctx context.Context, a *models.Assignment) error
	Delete(ctx context.Context, id string) error
	ArchiveDue(ctx context.Context, cutoff time.Time) (int64, error)
	CountAudience(ctx context.Context, a *models.Assignment) (int, error)
}

type completionRepository interface {
	SetCompleted(ctx context.Context, userID, assignmentID string, completed bool) error
	CompletedSet(ctx context.Context, userID string, assignmentIDs []string) (map[string]bool, error)
	IsCompleted(ctx context.Context, userID, assignmentID string) (bool, error)
	CompletionCounts(ctx context.Context, assignmentIDs []string) (map[string]int, error)
}

type voteRepository interface {
	Add(ctx context.Context, vote *models.DeletionVote) error
	Count(ctx context.Context, assignmentID string) (int, error)
	HasVoted(ctx context.Context, assignmentID, voterID string) (bool, error)
}

type userDirectory interface {
	UsernamesByID(ctx context.Context, ids []string) (map[string]string, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type reminderScheduler interface {
	Schedule(r scheduler.Reminder)
	Cancel(id string)
}

// AssignmentService implements the assignment workflows: the viewer feed
// with lazy archival, CRUD guarded by the authorization rules, per-user
// completion, vote-to-delete with real audience quorums, and due-date
// reminder scheduling.
type AssignmentService struct {
	repo        assignmentRepository
	completions completionRepository
	votes       voteRepository
	users       userDirectory
	reminders   reminderScheduler
	validator   *validator.Validate
	logger      *zap.Logger
	sanitizer   *bluemonday.Policy
	policy      rules.Policy
	remindersOn bool
	lead        time.Duration
	metrics     *MetricsService
	now         func() time.Time
}

// SetMetrics attaches optional Prometheus instrumentation.
func (s *AssignmentService) SetMetrics(m *MetricsService) {
	s.metrics = m
}

// AssignmentServiceConfig wires policy knobs into the service.
type AssignmentServiceConfig struct {
	Policy           rules.Policy
	RemindersEnabled bool
	ReminderLead     time.Duration
}

// NewAssignmentService constructs the service.
func NewAssignmentService(
	repo assignmentRepository,
	completions completionRepository,
	votes voteRepository,
	users userDirectory,
	reminders reminderScheduler,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AssignmentServiceConfig,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	RegisterDomainValidations(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = 24 * time.Hour
	}

	// Same allowlist the legacy client enforced before rendering.
	sanitizer := bluemonday.NewPolicy()
	sanitizer.AllowElements("p", "strong", "em", "ul", "ol", "li", "br")
	sanitizer.AllowAttrs("href").OnElements("a")
	sanitizer.AllowStandardURLs()

	return &AssignmentService{
		repo:        repo,
		completions: completions,
		votes:       votes,
		users:       users,
		reminders:   reminders,
		validator:   validate,
		logger:      logger,
		sanitizer:   sanitizer,
		policy:      cfg.Policy,
		remindersOn: cfg.RemindersEnabled,
		lead:        cfg.ReminderLead,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateAssignmentRequest describes the creation payload.
type CreateAssignmentRequest struct {
	Title        string            `json:"title" validate:"required,max=200"`
	Description  string            `json:"description"`
	Subject      string            `json:"subject" validate:"required,subject"`
	DueDate      time.Time         `json:"due_date" validate:"required"`
	TargetType   string            `json:"target_type" validate:"required,targettype"`
	TargetGroups []models.Category `json:"target_groups"`
	TargetUsers  []string          `json:"target_users"`
	Links        []models.Link     `json:"links"`
}

// UpdateAssignmentRequest is a full-field overwrite, same shape as create.
type UpdateAssignmentRequest = CreateAssignmentRequest

// CompletionStats aggregates how many targeted users marked an assignment done.
type CompletionStats struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// AssignmentView is an assignment decorated for the requesting viewer.
type AssignmentView struct {
	models.Assignment
	AuthorName  string            `json:"author_name"`
	Completed   bool              `json:"completed"`
	Deadline    rules.Deadline    `json:"deadline"`
	Permissions rules.Permissions `json:"permissions"`
	Stats       *CompletionStats  `json:"stats,omitempty"`
}

// VoteResult reports the outcome of a deletion vote.
type VoteResult struct {
	Votes    int  `json:"votes"`
	Required int  `json:"required"`
	Deleted  bool `json:"deleted"`
}

// Feed returns the viewer's assignment list. Every fetch first applies the
// lazy archival sweep, then filters by visibility (admins see everything),
// and decorates each row with completion state, deadline classification,
// permissions and the author's username.
func (s *AssignmentService) Feed(ctx context.Context, viewer models.User, archived bool) ([]AssignmentView, error) {
	now := s.now()
	if swept, err := s.repo.ArchiveDue(ctx, now.Add(-s.policy.ArchiveGrace)); err != nil {
		// A failed sweep should not block reads; the next fetch retries it.
		s.logger.Warn("archival sweep failed", zap.Error(err))
	} else {
		s.metrics.RecordArchived(swept)
	}

	filter := models.AssignmentFilter{Archived: archived}
	if viewer.Role != models.RoleAdmin {
		filter.ViewerID = &viewer.ID
		filter.ViewerCategory = &viewer.Category
	}

	assignments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	ids := make([]string, len(assignments))
	authorIDs := make([]string, 0, len(assignments))
	for i, a := range assignments {
		ids[i] = a.ID
		authorIDs = append(authorIDs, a.CreatedBy)
	}

	completed, err := s.completions.CompletedSet(ctx, viewer.ID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completions")
	}
	counts, err := s.completions.CompletionCounts(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completions")
	}
	authors, err := s.users.UsernamesByID(ctx, authorIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve authors")
	}

	views := make([]AssignmentView, 0, len(assignments))
	for _, a := range assignments {
		done := completed[a.ID]
		audience, err := s.repo.CountAudience(ctx, &a)
		if err != nil {
			s.logger.Warn("audience count failed", zap.String("assignment_id", a.ID), zap.Error(err))
			audience = 0
		}
		views = append(views, AssignmentView{
			Assignment:  a,
			AuthorName:  authorName(authors, a.CreatedBy),
			Completed:   done,
			Deadline:    rules.ClassifyDeadline(a.DueDate, done, now),
			Permissions: rules.Authorize(viewer, a, s.policy, now),
			Stats:       &CompletionStats{Completed: counts[a.ID], Total: audience},
		})
	}
	return views, nil
}

// Get returns a single decorated assignment. Assignments outside the
// viewer's feed are reported as not found rather than forbidden.
func (s *AssignmentService) Get(ctx context.Context, viewer models.User, id string) (*AssignmentView, error) {
	a, err := s.loadVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	done, err := s.completions.IsCompleted(ctx, viewer.ID, a.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completion")
	}
	authors, err := s.users.UsernamesByID(ctx, []string{a.CreatedBy})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve author")
	}

	view := &AssignmentView{
		Assignment:  *a,
		AuthorName:  authorName(authors, a.CreatedBy),
		Completed:   done,
		Deadline:    rules.ClassifyDeadline(a.DueDate, done, now),
		Permissions: rules.Authorize(viewer, *a, s.policy, now),
	}
	return view, nil
}

// Create validates, sanitizes and stores a new assignment, then schedules
// its due-date reminder.
func (s *AssignmentService) Create(ctx context.Context, viewer models.User, req CreateAssignmentRequest) (*models.Assignment, error) {
	a, err := s.buildAssignment(req)
	if err != nil {
		return nil, err
	}
	a.CreatedBy = viewer.ID
	a.IsArchived = rules.ShouldArchive(*a, s.policy, s.now())

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.scheduleReminder(a)
	return a, nil
}

// Update performs a full-field overwrite after checking edit rights, and
// reschedules the reminder against the (possibly new) due date.
func (s *AssignmentService) Update(ctx context.Context, viewer models.User, id string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	existing, err := s.loadVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if perms := rules.Authorize(viewer, *existing, s.policy, s.now()); !perms.CanEdit {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot edit this assignment")
	}

	updated, err := s.buildAssignment(req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	// Archival is re-derived from the new due date; moving a deadline into
	// the future resurrects nothing because archived rows stay archived.
	updated.IsArchived = existing.IsArchived || rules.ShouldArchive(*updated, s.policy, s.now())

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}

	s.cancelReminder(updated.ID)
	s.scheduleReminder(updated)
	return updated, nil
}

// Delete removes an assignment when the viewer is allowed to, cancelling
// any pending reminder.
func (s *AssignmentService) Delete(ctx context.Context, viewer models.User, id, ip, userAgent string) error {
	a, err := s.loadVisible(ctx, viewer, id)
	if err != nil {
		return err
	}

	now := s.now()
	perms := rules.Authorize(viewer, *a, s.policy, now)
	if !perms.CanDelete {
		if perms.CanEdit {
			// Edit rights without delete rights only happens inside the
			// deletion cool-down window.
			return appErrors.Clone(appErrors.ErrDeletionLocked, "")
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete this assignment")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	s.cancelReminder(id)

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &viewer.ID,
		Action:     models.AuditActionAssignmentDelete,
		Resource:   "assignments",
		ResourceID: &id,
		OldValues:  []byte(fmt.Sprintf(`{"title":%q}`, a.Title)),
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record assignment delete audit log", zap.Error(err))
	}
	return nil
}

// Vote casts a deletion vote for a viewer who cannot delete directly. When
// the vote count reaches the quorum of the assignment's real audience the
// assignment is deleted.
func (s *AssignmentService) Vote(ctx context.Context, viewer models.User, id string) (*VoteResult, error) {
	a, err := s.loadVisible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if perms := rules.Authorize(viewer, *a, s.policy, now); perms.CanDelete || perms.CanEdit {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can delete this assignment directly")
	}

	voted, err := s.votes.HasVoted(ctx, a.ID, viewer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check vote")
	}
	if voted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyVoted, "")
	}

	// The unique constraint still backstops a concurrent duplicate.
	if err := s.votes.Add(ctx, &models.DeletionVote{AssignmentID: a.ID, VoterID: viewer.ID}); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyVoted, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
	}

	votes, err := s.votes.Count(ctx, a.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count votes")
	}
	audience, err := s.repo.CountAudience(ctx, a)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count audience")
	}

	result := &VoteResult{
		Votes:    votes,
		Required: rules.VoteQuorum(audience, s.policy.VoteQuorumRatio),
	}
	if !rules.QuorumReached(votes, audience, s.policy.VoteQuorumRatio) {
		s.metrics.RecordDeletionVote(false)
		return result, nil
	}

	if err := s.repo.Delete(ctx, a.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment after quorum")
	}
	s.cancelReminder(a.ID)
	result.Deleted = true
	s.metrics.RecordDeletionVote(true)

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &viewer.ID,
		Action:     models.AuditActionQuorumDelete,
		Resource:   "assignments",
		ResourceID: &a.ID,
		OldValues:  []byte(fmt.Sprintf(`{"title":%q,"votes":%d,"required":%d}`, a.Title, votes, result.Required)),
	}); err != nil {
		s.logger.Warn("failed to record quorum delete audit log", zap.Error(err))
	}

	s.logger.Info("assignment deleted by vote quorum",
		zap.String("assignment_id", a.ID),
		zap.Int("votes", votes),
		zap.Int("required", result.Required),
	)
	return result, nil
}

// SetCompletion marks or unmarks the assignment as done for the viewer.
func (s *AssignmentService) SetCompletion(ctx context.Context, viewer models.User, id string, completed bool) (*AssignmentView, error) {
	if _, err := s.loadVisible(ctx, viewer, id); err != nil {
		return nil, err
	}
	if err := s.completions.SetCompleted(ctx, viewer.ID, id, completed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update completion")
	}
	return s.Get(ctx, viewer, id)
}

// loadVisible fetches an assignment and hides it from viewers outside its
// audience: invisible and missing are indistinguishable to the caller.
func (s *AssignmentService) loadVisible(ctx context.Context, viewer models.User, id string) (*models.Assignment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !rules.Visible(viewer, *a) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return a, nil
}

// buildAssignment validates the payload, normalises the target fields so
// exactly one of groups/users is populated, and sanitizes the rich-text
// description.
func (s *AssignmentService) buildAssignment(req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	a := &models.Assignment{
		Title:       req.Title,
		Description: s.sanitizer.Sanitize(req.Description),
		Subject:     models.Subject(req.Subject),
		DueDate:     req.DueDate.UTC(),
		TargetType:  models.TargetType(req.TargetType),
		Links:       req.Links,
	}

	switch a.TargetType {
	case models.TargetGlobal:
		// Nothing to target.
	case models.TargetGroup:
		if len(req.TargetGroups) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "target_groups required for group assignments")
		}
		seen := make(map[models.Category]bool, len(req.TargetGroups))
		for _, g := range req.TargetGroups {
			if !models.ValidCategory(g) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown group %q", g))
			}
			if seen[g] {
				continue
			}
			seen[g] = true
			a.TargetGroups = append(a.TargetGroups, string(g))
		}
	case models.TargetPersonal:
		if len(req.TargetUsers) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "target_users required for personal assignments")
		}
		seen := make(map[string]bool, len(req.TargetUsers))
		for _, id := range req.TargetUsers {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			a.TargetUsers = append(a.TargetUsers, id)
		}
	}

	for _, link := range req.Links {
		u, err := url.ParseRequestURI(link.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid link URL %q", link.URL))
		}
	}

	return a, nil
}

func (s *AssignmentService) cancelReminder(id string) {
	if !s.remindersOn || s.reminders == nil {
		return
	}
	s.reminders.Cancel(id)
}

func (s *AssignmentService) scheduleReminder(a *models.Assignment) {
	if !s.remindersOn || s.reminders == nil {
		return
	}
	s.reminders.Schedule(scheduler.Reminder{
		ID:     a.ID,
		Title:  "📚 Rappel de devoir",
		Body:   fmt.Sprintf("«%s» est à rendre le %s", a.Title, a.DueDate.Format("02/01/2006")),
		FireAt: a.DueDate.Add(-s.lead),
	})
}

func authorName(authors map[string]string, id string) string {
	if name, ok := authors[id]; ok {
		return name
	}
	return "Utilisateur inconnu"
}
