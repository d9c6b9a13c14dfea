package service

import (
	"context"
	"errors"
	"fmt"

	"notely-server/internal/domain"
	"notely-server/internal/repository"
)

// UserService maps external identities to local user records.
type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// GetOrCreate returns the user bound to profile.ExternalID, creating it on
// first sight. Profile fields of an existing user are left as they are.
func (s *UserService) GetOrCreate(ctx context.Context, profile domain.NewUser) (*domain.User, error) {
	user, err := s.userRepo.FindByExternalID(ctx, profile.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find user by external id: %w", err)
	}

	user, err = s.Create(ctx, profile)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// A concurrent request created it first.
		return s.userRepo.FindByExternalID(ctx, profile.ExternalID)
	}
	return user, err
}

func (s *UserService) Create(ctx context.Context, profile domain.NewUser) (*domain.User, error) {
	if err := requireText("externalId", profile.ExternalID); err != nil {
		return nil, err
	}
	if err := requireText("email", profile.Email); err != nil {
		return nil, err
	}

	return s.userRepo.Create(ctx, &profile)
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

func (s *UserService) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return s.userRepo.FindByExternalID(ctx, externalID)
}

func (s *UserService) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	if err := requireOptionalText("email", patch.Email); err != nil {
		return nil, err
	}

	return s.userRepo.Update(ctx, id, patch)
}

// Delete removes the user together with every note they own.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.userRepo.Delete(ctx, id)
}
