package auth

import "strings"

// Role represents a user's role within an organization.
type Role string

const (
	RoleStudent    Role = "student"
	RoleCoach      Role = "coach"
	RoleSuperAdmin Role = "super_admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	switch role {
	case RoleStudent, RoleCoach, RoleSuperAdmin:
		return role, true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleStudent:
		return 1
	case RoleCoach:
		return 2
	case RoleSuperAdmin:
		return 3
	default:
		return 0
	}
}
