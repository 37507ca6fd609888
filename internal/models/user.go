package models

import "time"

// Role of a user in the task-management application.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// User represents an account of the task-management application.
type User struct {
	ID        string    `json:"id"`        // Unique identifier for the user
	Username  string    `json:"username"`  // Login name, shown in dashboards
	Email     string    `json:"email"`     // Email address of the user
	Role      Role      `json:"role"`      // Role of the user
	IsActive  bool      `json:"isActive"`  // Inactive users are hidden from analytics
	CreatedAt time.Time `json:"createdAt"` // Timestamp of when the user record was created
}

// IsAdmin reports whether the user sees team-wide analytics.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
