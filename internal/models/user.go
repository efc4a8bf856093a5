package models

import "time"

// Role constants
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// User represents an account within a company. ManagerID is a weak reference
// by id only; it may be nil or point at a deleted user, and nothing beyond a
// single submitter-to-manager hop ever follows it.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"` // admin, manager, employee
	PasswordHash string    `json:"-"`
	ManagerID    *int64    `json:"manager_id,omitempty"`
	CompanyID    int64     `json:"company_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
