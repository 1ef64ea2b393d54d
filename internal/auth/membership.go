package auth

import (
	"context"
	"errors"

	masterdata "academy-cloud/internal/masterdata/domain"
)

// MemberDirectory resolves roles from masterdata memberships.
type MemberDirectory struct {
	repo masterdata.MemberRepository
}

// NewMemberDirectory constructs a MemberDirectory.
func NewMemberDirectory(repo masterdata.MemberRepository) (*MemberDirectory, error) {
	if repo == nil {
		return nil, errors.New("member directory: nil repository")
	}
	return &MemberDirectory{repo: repo}, nil
}

// RoleOf returns the member's role. Unknown stored roles deny access.
func (d *MemberDirectory) RoleOf(ctx context.Context, organizationID, userID string) (Role, bool, error) {
	member, err := d.repo.Get(ctx, organizationID, userID)
	if err != nil {
		return "", false, err
	}
	if member == nil {
		return "", false, nil
	}
	role, ok := NormalizeRole(string(member.Role))
	if !ok || role == RoleSuperAdmin {
		return "", false, nil
	}
	return role, true, nil
}
