package rules

import (
	"time"

	"github.com/gh-Constant/IUT-homework/internal/models"
)

// Policy carries the configurable knobs consulted by the authorization
// rules. The zero value matches the default deployment (no deletion
// cool-down, archival exactly at the due date).
type Policy struct {
	// MinDeletionDelay forbids deletion by non-admins within this window
	// after the assignment was created.
	MinDeletionDelay time.Duration
	// ArchiveGrace postpones archival past the due date.
	ArchiveGrace time.Duration
	// VoteQuorumRatio is the audience fraction required to delete by vote.
	VoteQuorumRatio float64
}

// Permissions is the outcome of the edit/delete authorization predicate.
type Permissions struct {
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// Authorize decides whether the viewer may edit or delete the assignment.
//
// Admins and creators may always do both. The recipient of a personal
// assignment may also manage it. Everybody else gets neither. A non-admin
// with delete rights is still locked out during the configured cool-down
// window after creation.
func Authorize(viewer models.User, a models.Assignment, p Policy, now time.Time) Permissions {
	if viewer.Role == models.RoleAdmin {
		return Permissions{CanEdit: true, CanDelete: true}
	}

	manages := a.CreatedBy == viewer.ID
	if !manages && a.TargetType == models.TargetPersonal {
		for _, id := range a.TargetUsers {
			if id == viewer.ID {
				manages = true
				break
			}
		}
	}
	if !manages {
		return Permissions{}
	}

	perms := Permissions{CanEdit: true, CanDelete: true}
	if p.MinDeletionDelay > 0 && now.Sub(a.CreatedAt) < p.MinDeletionDelay {
		perms.CanDelete = false
	}
	return perms
}

// ShouldArchive reports whether the assignment's due date has passed the
// archival threshold. Archival is one-way; callers must not unarchive.
func ShouldArchive(a models.Assignment, p Policy, now time.Time) bool {
	return a.DueDate.Add(p.ArchiveGrace).Before(now)
}
