package user

import (
	"database/sql"
	"time"
)

// Role is the access level of a platform user.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleCaretaker Role = "CARETAKER"
	RoleTenant    Role = "TENANT"
)

// User represents a landlord-side or tenant account.
type User struct {
	ID        string
	Name      string
	Phone     string // normalised, e.g. +254712345678
	Email     sql.NullString
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
