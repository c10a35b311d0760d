package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/repositories"
	"github.com/Dosada05/shared-brackets/storage"
)

// BracketPageSize is how many brackets one listing page carries.
const BracketPageSize = 4

// BracketFilter selects which of a user's brackets are listed.
type BracketFilter string

const (
	FilterAll    BracketFilter = "all"
	FilterOwned  BracketFilter = "owned"
	FilterShared BracketFilter = "shared"
)

// ParseBracketFilter accepts an empty value as FilterAll.
func ParseBracketFilter(v string) (BracketFilter, error) {
	switch BracketFilter(v) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterOwned, FilterShared:
		return BracketFilter(v), nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", ErrValidationFailed, v)
	}
}

type BracketService interface {
	Create(ctx context.Context, title *string) (*models.Bracket, error)
	Get(ctx context.Context, id int) (*models.Bracket, error)
	GetAll(ctx context.Context) ([]*models.Bracket, error)
	GetAllItems(ctx context.Context, id int) ([]*models.Item, error)
	GetAllUsers(ctx context.Context, id int) ([]*models.User, error)
	GetOwner(ctx context.Context, id int) (*models.User, error)
	GetWithUsers(ctx context.Context, id int) (*models.BracketWithUsers, error)
	GetForUser(ctx context.Context, fbID string, owner *bool) ([]*models.Bracket, error)
	GetOwnedForUser(ctx context.Context, fbID string) ([]*models.Bracket, error)
	GetSharedToUser(ctx context.Context, fbID string) ([]*models.Bracket, error)
	ListForUser(ctx context.Context, fbID string, filter BracketFilter, offset int) (*models.BracketPage, error)
	// AddUser subscribes the user; ownerGranted reports whether they became owner.
	AddUser(ctx context.Context, bracketID int, fbID string) (m *models.Membership, ownerGranted bool, err error)
	SetOwner(ctx context.Context, bracketID int, fbID string) (*models.Membership, error)
	// TransferOwner is SetOwner restricted to the current owner.
	TransferOwner(ctx context.Context, bracketID int, requesterFbID, fbID string) (*models.Membership, error)
	SetTitle(ctx context.Context, bracketID int, title *string) (*models.Bracket, error)
}

type bracketService struct {
	db             *sql.DB
	bracketRepo    repositories.BracketRepository
	itemRepo       repositories.ItemRepository
	userRepo       repositories.UserRepository
	membershipRepo repositories.MembershipRepository
	uploader       storage.FileUploader
	notifier       BracketNotifier
	logger         *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	bracketRepo repositories.BracketRepository,
	itemRepo repositories.ItemRepository,
	userRepo repositories.UserRepository,
	membershipRepo repositories.MembershipRepository,
	uploader storage.FileUploader,
	notifier BracketNotifier,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:             db,
		bracketRepo:    bracketRepo,
		itemRepo:       itemRepo,
		userRepo:       userRepo,
		membershipRepo: membershipRepo,
		uploader:       uploader,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *bracketService) Create(ctx context.Context, title *string) (*models.Bracket, error) {
	b := &models.Bracket{Title: models.DefaultBracketTitle}
	if title != nil {
		b.Title = *title
	}
	if err := s.bracketRepo.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "bracket row created", slog.Int("bracket_id", b.ID))
	return b, nil
}

func (s *bracketService) Get(ctx context.Context, id int) (*models.Bracket, error) {
	b, err := s.bracketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	populateCoverURL(b, s.uploader)
	return b, nil
}

func (s *bracketService) GetAll(ctx context.Context) ([]*models.Bracket, error) {
	list, err := s.bracketRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		populateCoverURL(b, s.uploader)
	}
	return list, nil
}

func (s *bracketService) GetAllItems(ctx context.Context, id int) ([]*models.Item, error) {
	return s.itemRepo.ListByBracket(ctx, id)
}

func (s *bracketService) GetAllUsers(ctx context.Context, id int) ([]*models.User, error) {
	return s.userRepo.ListByBracket(ctx, id)
}

func (s *bracketService) GetOwner(ctx context.Context, id int) (*models.User, error) {
	u, err := s.userRepo.GetOwner(ctx, nil, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return u, nil
}

func (s *bracketService) GetWithUsers(ctx context.Context, id int) (*models.BracketWithUsers, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListByBracket(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &models.BracketWithUsers{Bracket: *b, SubscriberIDs: make([]string, 0, len(users))}
	for _, u := range users {
		out.SubscriberIDs = append(out.SubscriberIDs, u.FbID)
	}
	return out, nil
}

func (s *bracketService) GetForUser(ctx context.Context, fbID string, owner *bool) ([]*models.Bracket, error) {
	list, err := s.bracketRepo.ListForUser(ctx, fbID, owner)
	if err != nil {
		return nil, err
	}
	for _, b := range list {
		populateCoverURL(b, s.uploader)
	}
	return list, nil
}

func (s *bracketService) GetOwnedForUser(ctx context.Context, fbID string) ([]*models.Bracket, error) {
	owned := true
	return s.GetForUser(ctx, fbID, &owned)
}

func (s *bracketService) GetSharedToUser(ctx context.Context, fbID string) ([]*models.Bracket, error) {
	owned := false
	return s.GetForUser(ctx, fbID, &owned)
}

func (s *bracketService) ListForUser(ctx context.Context, fbID string, filter BracketFilter, offset int) (*models.BracketPage, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrValidationFailed)
	}

	var (
		list []*models.Bracket
		err  error
	)
	switch filter {
	case FilterOwned:
		list, err = s.GetOwnedForUser(ctx, fbID)
	case FilterShared:
		list, err = s.GetSharedToUser(ctx, fbID)
	case FilterAll, "":
		list, err = s.GetForUser(ctx, fbID, nil)
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", ErrValidationFailed, filter)
	}
	if err != nil {
		return nil, err
	}
	return paginate(list, offset, BracketPageSize), nil
}

func paginate(list []*models.Bracket, offset, size int) *models.BracketPage {
	page := &models.BracketPage{Brackets: []*models.Bracket{}, Total: len(list)}
	if offset >= len(list) {
		return page
	}
	end := offset + size
	if end > len(list) {
		end = len(list)
	}
	page.Brackets = list[offset:end]
	if end < len(list) {
		next := end
		page.NextOffset = &next
	}
	return page
}

func (s *bracketService) AddUser(ctx context.Context, bracketID int, fbID string) (*models.Membership, bool, error) {
	if fbID == "" {
		return nil, false, ErrValidationFailed
	}
	if _, err := s.userRepo.FindOrCreate(ctx, fbID, nil, nil); err != nil {
		return nil, false, err
	}

	var (
		membership *models.Membership
		granted    bool
	)
	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if err := s.bracketRepo.Lock(ctx, tx, bracketID); err != nil {
			return err
		}
		hasOwner, err := s.hasOwner(ctx, tx, bracketID)
		if err != nil {
			return err
		}

		m, err := s.membershipRepo.Get(ctx, tx, bracketID, fbID)
		switch {
		case errors.Is(err, repositories.ErrMembershipNotFound):
			membership = &models.Membership{BracketID: bracketID, UserFbID: fbID, Owner: !hasOwner}
			if err = s.membershipRepo.Create(ctx, tx, membership); err != nil {
				return err
			}
			granted = !hasOwner
		case err != nil:
			return err
		case !hasOwner:
			if membership, err = s.membershipRepo.SetOwner(ctx, tx, bracketID, fbID, true); err != nil {
				return err
			}
			granted = true
		default:
			membership = m
		}
		return nil
	})
	if err != nil {
		return nil, false, mapRepositoryError(err)
	}

	if granted {
		s.notifyCreated(ctx, bracketID, fbID)
	}
	return membership, granted, nil
}

func (s *bracketService) SetOwner(ctx context.Context, bracketID int, fbID string) (*models.Membership, error) {
	return s.setOwner(ctx, bracketID, "", fbID)
}

func (s *bracketService) TransferOwner(ctx context.Context, bracketID int, requesterFbID, fbID string) (*models.Membership, error) {
	if requesterFbID == "" {
		return nil, ErrForbiddenOperation
	}
	return s.setOwner(ctx, bracketID, requesterFbID, fbID)
}

// setOwner demotes the current owner and promotes (or subscribes) fbID in one
// transaction. A non-empty requester must be the current owner.
func (s *bracketService) setOwner(ctx context.Context, bracketID int, requesterFbID, fbID string) (*models.Membership, error) {
	if fbID == "" {
		return nil, ErrValidationFailed
	}
	if _, err := s.userRepo.FindOrCreate(ctx, fbID, nil, nil); err != nil {
		return nil, err
	}

	var membership *models.Membership
	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if err := s.bracketRepo.Lock(ctx, tx, bracketID); err != nil {
			return err
		}
		if requesterFbID != "" {
			owner, err := s.userRepo.GetOwner(ctx, tx, bracketID)
			if err != nil && !errors.Is(err, repositories.ErrNoOwner) {
				return err
			}
			if owner == nil || owner.FbID != requesterFbID {
				return ErrForbiddenOperation
			}
		}

		if err := s.membershipRepo.ClearOwner(ctx, tx, bracketID); err != nil {
			return err
		}
		m, err := s.membershipRepo.SetOwner(ctx, tx, bracketID, fbID, true)
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			m = &models.Membership{BracketID: bracketID, UserFbID: fbID, Owner: true}
			err = s.membershipRepo.Create(ctx, tx, m)
		}
		if err != nil {
			return err
		}
		membership = m
		return nil
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "bracket owner changed", slog.Int("bracket_id", bracketID), slog.String("owner_fb_id", fbID))
	return membership, nil
}

func (s *bracketService) SetTitle(ctx context.Context, bracketID int, title *string) (*models.Bracket, error) {
	t := models.DefaultBracketTitle
	if title != nil {
		t = *title
	}
	b, err := s.bracketRepo.UpdateTitle(ctx, bracketID, t)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	populateCoverURL(b, s.uploader)
	return b, nil
}

func (s *bracketService) hasOwner(ctx context.Context, exec repositories.SQLExecutor, bracketID int) (bool, error) {
	_, err := s.userRepo.GetOwner(ctx, exec, bracketID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repositories.ErrNoOwner):
		return false, nil
	default:
		return false, err
	}
}

func (s *bracketService) notifyCreated(ctx context.Context, bracketID int, fbID string) {
	if s.notifier == nil {
		return
	}
	b, err := s.bracketRepo.GetByID(ctx, bracketID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load bracket for created notice", slog.Int("bracket_id", bracketID), slog.Any("error", err))
		return
	}
	u, err := s.userRepo.GetByFbID(ctx, fbID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load owner for created notice", slog.String("fb_id", fbID), slog.Any("error", err))
		return
	}
	s.notifier.BracketCreated(ctx, b, u)
}
