package repository

import (
	"context"

	"orgsession/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create returns apperr Conflict if the email is already registered.
	Create(ctx context.Context, u *domain.User) error
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	Delete(ctx context.Context, id string) error
}
