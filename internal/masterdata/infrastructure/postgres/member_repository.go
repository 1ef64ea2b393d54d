package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	masterdata "academy-cloud/internal/masterdata/domain"
)

const defaultMembersTable = "organization_members"

// MemberRepository is a Postgres implementation for organization members.
type MemberRepository struct {
	db    DBTX
	table string
}

// NewMemberRepository constructs a repository.
func NewMemberRepository(db DBTX, opts ...MemberOption) *MemberRepository {
	repo := &MemberRepository{db: db, table: defaultMembersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MemberOption configures the repository.
type MemberOption func(*MemberRepository)

// WithMemberTable overrides the default table name.
func WithMemberTable(table string) MemberOption {
	return func(repo *MemberRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads one membership. It returns nil, nil when the user is not a member.
func (r *MemberRepository) Get(ctx context.Context, organizationID, userID string) (*masterdata.Member, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("member repo: nil db")
	}
	if organizationID == "" || userID == "" {
		return nil, errors.New("member repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT organization_id, user_id, name, email, role, created_at, updated_at
FROM %s
WHERE organization_id = $1 AND user_id = $2
LIMIT 1`, r.table)

	var member masterdata.Member
	var name, email sql.NullString
	var role string
	if err := r.db.QueryRowContext(ctx, query, organizationID, userID).Scan(
		&member.OrganizationID,
		&member.UserID,
		&name,
		&email,
		&role,
		&member.CreatedAt,
		&member.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	member.Name = name.String
	member.Email = email.String
	member.Role = masterdata.MemberRole(strings.ToUpper(role))
	member.CreatedAt = member.CreatedAt.UTC()
	member.UpdatedAt = member.UpdatedAt.UTC()
	return &member, nil
}

// Save upserts a membership.
func (r *MemberRepository) Save(ctx context.Context, member *masterdata.Member) error {
	if r == nil || r.db == nil {
		return errors.New("member repo: nil db")
	}
	if member == nil {
		return errors.New("member repo: nil member")
	}
	if err := member.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	organization_id,
	user_id,
	name,
	email,
	role
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (organization_id, user_id)
DO UPDATE SET
	name = EXCLUDED.name,
	email = EXCLUDED.email,
	role = EXCLUDED.role,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		member.OrganizationID,
		member.UserID,
		nullString(member.Name),
		nullString(member.Email),
		strings.ToUpper(string(member.Role)),
	)
	return err
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
