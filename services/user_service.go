package services

import (
	"context"
	"strings"

	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/repositories"
)

type UserService interface {
	FindOrCreate(ctx context.Context, fbID string, name, profilePic *string) (*models.User, error)
	GetByFbID(ctx context.Context, fbID string) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) FindOrCreate(ctx context.Context, fbID string, name, profilePic *string) (*models.User, error) {
	fbID = strings.TrimSpace(fbID)
	if fbID == "" {
		return nil, ErrValidationFailed
	}
	u, err := s.userRepo.FindOrCreate(ctx, fbID, name, profilePic)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return u, nil
}

func (s *userService) GetByFbID(ctx context.Context, fbID string) (*models.User, error) {
	u, err := s.userRepo.GetByFbID(ctx, fbID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return u, nil
}
