package repository

import (
	"context"

	"orgsession/internal/membership/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
	// ListMembershipsByOrg returns memberships in insertion order.
	ListMembershipsByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error)
	// CreateMembership returns apperr Conflict when the user already belongs to the org
	// and apperr NotFound when the org or user does not exist.
	CreateMembership(ctx context.Context, m *domain.Membership) error
	// RemoveMembership deletes the (user, org) membership unless it is the org's last owner.
	// The owner count and the delete are evaluated atomically. Returns apperr NotFound when
	// there is no such membership and apperr InvariantViolation for the last owner.
	RemoveMembership(ctx context.Context, userID, orgID string) (*domain.Membership, error)
}
