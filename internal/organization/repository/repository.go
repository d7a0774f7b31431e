package repository

import (
	"context"

	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	// GetOrganizationBySlug matches case-insensitively.
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Org, error)
	// CreateWithOwner stores the organization and the owner membership atomically.
	// Returns apperr Conflict when the slug is taken (case-insensitive).
	CreateWithOwner(ctx context.Context, o *domain.Org, owner *memberdomain.Membership) error
	// ListForUser returns the user's organizations ordered by membership insertion sequence.
	ListForUser(ctx context.Context, userID string) ([]domain.UserOrganization, error)
	// DeleteOrganization removes the organization; memberships cascade.
	DeleteOrganization(ctx context.Context, id string) error
}
