package service

import (
	"context"
	"errors"

	"app/internal/model"
	"app/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")

// UserService manages the product-side user profile. Identity itself lives
// with the external auth provider.
type UserService interface {
	// Create provisions (or refreshes) the profile row; callers post it on
	// every sign-in, so repeats are not an error.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) Create(ctx context.Context, u *model.User) (*model.User, error) {
	err := s.userRepo.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
