package models

// Role is a named set of permissions.
type Role struct {
	ID          string
	Name        string
	Description string
}

// Permission is a named capability, grouped by category.
type Permission struct {
	ID          string
	Name        string
	Description string
	Category    string
}

// UserRole binds a user to a role.
type UserRole struct {
	UserID string
	RoleID string
}
