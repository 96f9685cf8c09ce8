package models

import "time"

// UserRole represents the available roles.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// Category is one of the six cohort groups.
type Category string

const (
	CategoryA1 Category = "A1"
	CategoryA2 Category = "A2"
	CategoryB1 Category = "B1"
	CategoryB2 Category = "B2"
	CategoryC1 Category = "C1"
	CategoryC2 Category = "C2"
)

// Categories lists every valid cohort group.
func Categories() []Category {
	return []Category{CategoryA1, CategoryA2, CategoryB1, CategoryB2, CategoryC1, CategoryC2}
}

// ValidCategory reports whether the value is a known cohort group.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryA1, CategoryA2, CategoryB1, CategoryB2, CategoryC1, CategoryC2:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table.
type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	PINHash   string    `db:"pin_hash" json:"-"`
	Category  Category  `db:"category" json:"category"`
	Role      UserRole  `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Category  *Category
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
