// Package rules holds the pure assignment business rules: who sees an
// assignment, who may manage it, when a deletion vote reaches quorum and
// how a due date is classified for display. Nothing here touches the
// database or the clock implicitly; callers pass everything in.
package rules

import "github.com/gh-Constant/IUT-homework/internal/models"

// Visible reports whether the assignment belongs to the viewer's feed.
// Admins see everything regardless of targeting.
func Visible(viewer models.User, a models.Assignment) bool {
	if viewer.Role == models.RoleAdmin {
		return true
	}

	switch a.TargetType {
	case models.TargetGlobal:
		return true
	case models.TargetGroup:
		for _, g := range a.TargetGroups {
			if models.Category(g) == viewer.Category {
				return true
			}
		}
		return false
	case models.TargetPersonal:
		for _, id := range a.TargetUsers {
			if id == viewer.ID {
				return true
			}
		}
		return false
	default:
		return false
	}
}
