package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// TargetType defines who an assignment is addressed to.
type TargetType string

const (
	TargetGlobal   TargetType = "global"
	TargetGroup    TargetType = "group"
	TargetPersonal TargetType = "personal"
)

// Subject enumerates the cohort's course subjects.
type Subject string

const (
	SubjectCommunication Subject = "Communication"
	SubjectSAE           Subject = "SAE"
	SubjectAnglais       Subject = "Anglais"
	SubjectInformatique  Subject = "Informatique"
	SubjectManagement    Subject = "Management"
	SubjectMarketing     Subject = "Marketing"
)

// ValidSubject reports whether the value is a known subject.
func ValidSubject(s Subject) bool {
	switch s {
	case SubjectCommunication, SubjectSAE, SubjectAnglais, SubjectInformatique, SubjectManagement, SubjectMarketing:
		return true
	default:
		return false
	}
}

// Link is an external resource attached to an assignment.
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Links is stored as a JSONB column.
type Links []Link

// Value implements driver.Valuer.
func (l Links) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *Links) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported links column type %T", src)
	}
	return json.Unmarshal(data, l)
}

// Assignment represents a persisted assignment row.
type Assignment struct {
	ID           string         `db:"id" json:"id"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description" json:"description"`
	Subject      Subject        `db:"subject" json:"subject"`
	DueDate      time.Time      `db:"due_date" json:"due_date"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	TargetType   TargetType     `db:"target_type" json:"target_type"`
	TargetGroups pq.StringArray `db:"target_groups" json:"target_groups"`
	TargetUsers  pq.StringArray `db:"target_users" json:"target_users"`
	IsArchived   bool           `db:"is_archived" json:"is_archived"`
	Links        Links          `db:"links" json:"links,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Completion is the per-user completion join row.
type Completion struct {
	UserID       string    `db:"user_id" json:"user_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
}

// DeletionVote records a single user's vote to delete an assignment.
type DeletionVote struct {
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	VoterID      string    `db:"voter_id" json:"voter_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AssignmentFilter selects assignments for listing.
type AssignmentFilter struct {
	// Viewer restricts rows to those visible to the given user. Nil lists
	// everything (admin listing).
	ViewerID       *string
	ViewerCategory *Category
	Archived       bool
	Subject        *Subject
}
