package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	masterdata "academy-cloud/internal/masterdata/domain"
)

// MemberRepository keeps memberships in memory.
type MemberRepository struct {
	mu      sync.RWMutex
	members map[string]masterdata.Member
}

// NewMemberRepository constructs an empty member repository.
func NewMemberRepository() *MemberRepository {
	return &MemberRepository{members: make(map[string]masterdata.Member)}
}

// Get returns nil, nil when the user is not a member.
func (r *MemberRepository) Get(ctx context.Context, organizationID, userID string) (*masterdata.Member, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	member, ok := r.members[organizationID+"|"+userID]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

// Save upserts a membership.
func (r *MemberRepository) Save(ctx context.Context, member *masterdata.Member) error {
	_ = ctx
	if member == nil {
		return errors.New("member repo: nil member")
	}
	if err := member.Validate(); err != nil {
		return err
	}
	stored := *member
	stored.Role = masterdata.MemberRole(strings.ToUpper(string(member.Role)))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[member.OrganizationID+"|"+member.UserID] = stored
	return nil
}

// BatchRepository keeps batches in memory.
type BatchRepository struct {
	mu      sync.RWMutex
	batches map[string]masterdata.Batch
}

// NewBatchRepository constructs an empty batch repository.
func NewBatchRepository() *BatchRepository {
	return &BatchRepository{batches: make(map[string]masterdata.Batch)}
}

// Get returns nil, nil when the batch is absent.
func (r *BatchRepository) Get(ctx context.Context, id string) (*masterdata.Batch, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.batches[id]
	if !ok {
		return nil, nil
	}
	return &batch, nil
}

// Save upserts a batch.
func (r *BatchRepository) Save(ctx context.Context, batch *masterdata.Batch) error {
	_ = ctx
	if batch == nil {
		return errors.New("batch repo: nil batch")
	}
	if err := batch.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = *batch
	return nil
}
