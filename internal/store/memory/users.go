package memory

import (
	"context"
	"time"

	"orgsession/internal/platform/apperr"
	userdomain "orgsession/internal/user/domain"
)

// UserRepository implements user/repository.Repository.
type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	email = userdomain.NormalizeEmail(email)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if userdomain.NormalizeEmail(u.Email) == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) Create(_ context.Context, u *userdomain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email := userdomain.NormalizeEmail(u.Email)
	for _, existing := range r.s.users {
		if userdomain.NormalizeEmail(existing.Email) == email {
			return apperr.Conflict("email %q is already registered", u.Email)
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepository) SetEmailVerified(_ context.Context, id string, verified bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		u.EmailVerified = verified
		u.UpdatedAt = time.Now().UTC()
		r.s.users[id] = u
	}
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteUserLocked(id)
	return nil
}
