package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeam    UserRole = "team"
	RoleManager UserRole = "manager"
	RoleAdmin   UserRole = "admin"
)

// StaffRoles are the roles allowed to manage service requests.
var StaffRoles = []UserRole{RoleTeam, RoleManager, RoleAdmin}

// IsStaff reports whether the role may manage requests on behalf of the institution.
func (r UserRole) IsStaff() bool {
	return r == RoleTeam || r == RoleManager || r == RoleAdmin
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Identity is the authenticated caller context attached by the JWT middleware.
type Identity struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Name   string   `json:"name"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
