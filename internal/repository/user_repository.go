package repository

import (
	"context"

	"notely-server/internal/domain"
)

// UserRepository persists users. Create fails with domain.ErrAlreadyExists
// when the external id is taken; Delete removes the user's notes as well.
type UserRepository interface {
	Create(ctx context.Context, user *domain.NewUser) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}
