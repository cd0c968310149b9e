package defects

import "strings"

// UserRole is the user's role
type UserRole string

const (
	// RoleObserver can read everything but defects are read only (i.e. view, statistics)
	RoleObserver UserRole = "observer"
	// RoleEngineer works on defects they reported or were assigned
	RoleEngineer UserRole = "engineer"
	// RoleManager can create and edit everything
	RoleManager UserRole = "manager"
	// RoleAdmin is reserved, it has read access only
	RoleAdmin UserRole = "admin"
)

// DefaultRole is assigned on registration
const DefaultRole = RoleObserver

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleObserver, RoleEngineer, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r UserRole) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleObserver,
		RoleEngineer,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}
