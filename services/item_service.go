package services

import (
	"context"

	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/repositories"
)

type ItemService interface {
	// Create adds an item; an empty name is allowed.
	Create(ctx context.Context, bracketID int, ownerFbID, name string) (*models.Item, error)
	Get(ctx context.Context, id int) (*models.Item, error)
	// Update changes an item of the given bracket. Items of other brackets read as not found.
	Update(ctx context.Context, bracketID, id int, name string, completerFbID *string) (*models.ItemUpdate, error)
}

type itemService struct {
	itemRepo repositories.ItemRepository
	userRepo repositories.UserRepository
}

func NewItemService(itemRepo repositories.ItemRepository, userRepo repositories.UserRepository) ItemService {
	return &itemService{itemRepo: itemRepo, userRepo: userRepo}
}

func (s *itemService) Create(ctx context.Context, bracketID int, ownerFbID, name string) (*models.Item, error) {
	if ownerFbID == "" {
		return nil, ErrValidationFailed
	}
	it := &models.Item{Name: name, BracketID: bracketID, OwnerFbID: ownerFbID}
	if err := s.itemRepo.Create(ctx, it); err != nil {
		return nil, mapRepositoryError(err)
	}
	return it, nil
}

func (s *itemService) Get(ctx context.Context, id int) (*models.Item, error) {
	it, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return it, nil
}

func (s *itemService) Update(ctx context.Context, bracketID, id int, name string, completerFbID *string) (*models.ItemUpdate, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.BracketID != bracketID {
		return nil, ErrItemNotFound
	}
	if completerFbID != nil && *completerFbID == "" {
		completerFbID = nil
	}
	if completerFbID != nil {
		if _, err = s.userRepo.FindOrCreate(ctx, *completerFbID, nil, nil); err != nil {
			return nil, err
		}
	}

	it, err := s.itemRepo.Update(ctx, id, name, completerFbID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return &models.ItemUpdate{ID: it.ID, Name: it.Name, CompleterFbID: it.CompleterFbID}, nil
}
