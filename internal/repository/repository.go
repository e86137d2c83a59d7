package repository

import (
	"context"

	"alcyxob/nutrition-onboarding/internal/domain"
)

// Error constants for repository layer
var (
	ErrNotFound      = RepositoryError("not found")
	ErrAlreadyExists = RepositoryError("already exists")
	ErrUpdateFailed  = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository is the backend user-profile service used at onboarding completion.
// Records are keyed by the auth provider's stable user identifier (uid).
type UserRepository interface {
	// GetByUID returns ErrNotFound when no record exists.
	GetByUID(ctx context.Context, uid string) (*domain.UserRecord, error)
	// Create inserts a record with the minimal fields; ErrAlreadyExists on a duplicate uid.
	Create(ctx context.Context, fields domain.NewUserFields) (*domain.UserRecord, error)
	// UpdateProfile replaces the stored profile and derived metrics. Applying the same
	// update twice leaves the record unchanged apart from UpdatedAt.
	UpdateProfile(ctx context.Context, uid string, update domain.ProfileUpdate) (*domain.UserRecord, error)
}
