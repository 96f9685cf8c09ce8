package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gh-Constant/IUT-homework/internal/models"
)

func TestVisible(t *testing.T) {
	student := models.User{ID: "u-1", Category: models.CategoryB1, Role: models.RoleUser}
	admin := models.User{ID: "adm-1", Category: models.CategoryA1, Role: models.RoleAdmin}

	cases := []struct {
		name       string
		viewer     models.User
		assignment models.Assignment
		want       bool
	}{
		{
			name:       "global visible to everyone",
			viewer:     student,
			assignment: models.Assignment{TargetType: models.TargetGlobal},
			want:       true,
		},
		{
			name:       "group visible to member",
			viewer:     student,
			assignment: models.Assignment{TargetType: models.TargetGroup, TargetGroups: []string{"A1", "B1"}},
			want:       true,
		},
		{
			name:       "group hidden from other groups",
			viewer:     student,
			assignment: models.Assignment{TargetType: models.TargetGroup, TargetGroups: []string{"C2"}},
			want:       false,
		},
		{
			name:       "personal visible to recipient",
			viewer:     student,
			assignment: models.Assignment{TargetType: models.TargetPersonal, TargetUsers: []string{"u-9", "u-1"}},
			want:       true,
		},
		{
			name:       "personal hidden from others even same group",
			viewer:     student,
			assignment: models.Assignment{TargetType: models.TargetPersonal, TargetUsers: []string{"u-9"}},
			want:       false,
		},
		{
			name:       "admin sees personal for someone else",
			viewer:     admin,
			assignment: models.Assignment{TargetType: models.TargetPersonal, TargetUsers: []string{"u-9"}},
			want:       true,
		},
		{
			name:       "admin sees foreign group",
			viewer:     admin,
			assignment: models.Assignment{TargetType: models.TargetGroup, TargetGroups: []string{"C2"}},
			want:       true,
		},
		{
			name:       "unknown target type hidden",
			viewer:     student,
			assignment: models.Assignment{TargetType: "broadcast"},
			want:       false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Visible(tc.viewer, tc.assignment))
		})
	}
}
