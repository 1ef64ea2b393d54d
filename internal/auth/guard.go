package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MembershipStore resolves a user's role inside an organization. ok is false
// when the user is not a member.
type MembershipStore interface {
	RoleOf(ctx context.Context, organizationID, userID string) (role Role, ok bool, err error)
}

// Guard authorizes users against organizations. Super admins pass every check.
type Guard struct {
	members     MembershipStore
	superAdmins map[string]struct{}
}

// NewGuard constructs a guard.
func NewGuard(members MembershipStore, superAdmins []string) (*Guard, error) {
	if members == nil {
		return nil, errors.New("auth guard: nil membership store")
	}
	set := make(map[string]struct{}, len(superAdmins))
	for _, id := range superAdmins {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return &Guard{members: members, superAdmins: set}, nil
}

// IsSuperAdmin reports whether the user bypasses organization checks. A token
// carrying the super_admin role for the same subject also counts.
func (g *Guard) IsSuperAdmin(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	if _, ok := g.superAdmins[userID]; ok {
		return true
	}
	return SubjectFromContext(ctx) == userID && RoleFromContext(ctx) == RoleSuperAdmin
}

// RequireRole passes when the user holds at least role in the organization.
func (g *Guard) RequireRole(ctx context.Context, userID, organizationID string, role Role) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if g.IsSuperAdmin(ctx, userID) {
		return nil
	}
	if organizationID == "" {
		return fmt.Errorf("%w: empty organization", ErrForbidden)
	}
	held, ok, err := g.members.RoleOf(ctx, organizationID, userID)
	if err != nil {
		return fmt.Errorf("auth guard: membership lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s is not a member of organization %s", ErrForbidden, userID, organizationID)
	}
	if !RoleAtLeast(held, role) {
		return fmt.Errorf("%w: role %s required", ErrForbidden, role)
	}
	return nil
}

// RequireSelfOrRole passes when the user acts on their own data as a member,
// or holds at least role.
func (g *Guard) RequireSelfOrRole(ctx context.Context, userID, organizationID, subjectID string, role Role) error {
	if userID != "" && userID == subjectID {
		return g.RequireRole(ctx, userID, organizationID, RoleStudent)
	}
	return g.RequireRole(ctx, userID, organizationID, role)
}
