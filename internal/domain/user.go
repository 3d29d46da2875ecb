package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User represents an account within the platform. Donors and organization
// owners are both plain users; an organization links back to its user.
type User struct {
	ID        string
	Email     string
	Name      string
	Locale    string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Contact snapshots the user's contact details.
func (u User) Contact() Contact {
	return Contact{Name: u.Name, Email: u.Email}
}
