package masterdata

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MemberRole is a user's role inside an organization as stored.
type MemberRole string

const (
	MemberStudent MemberRole = "STUDENT"
	MemberCoach   MemberRole = "COACH"
)

// Member links a user to an organization.
type Member struct {
	OrganizationID string
	UserID         string
	Name           string
	Email          string
	Role           MemberRole
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks member invariants.
func (m Member) Validate() error {
	if m.OrganizationID == "" {
		return errors.New("member: empty organization id")
	}
	if m.UserID == "" {
		return errors.New("member: empty user id")
	}
	switch MemberRole(strings.ToUpper(string(m.Role))) {
	case MemberStudent, MemberCoach:
	default:
		return errors.New("member: invalid role")
	}
	return nil
}

// MemberRepository manages organization membership.
type MemberRepository interface {
	Get(ctx context.Context, organizationID, userID string) (*Member, error)
	Save(ctx context.Context, member *Member) error
}
