package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Dosada05/shared-brackets/brackets"
	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/repositories"
	"golang.org/x/sync/errgroup"
)

// VoteResult is the pairing a vote landed in together with the whole refreshed
// tree, since a changed winner propagates to later rounds.
type VoteResult struct {
	Pairing  models.PairingView   `json:"pairing"`
	Pairings []models.PairingView `json:"pairings"`
}

type TournamentService interface {
	// Start turns the bracket's items into a single-elimination tree. Owner only.
	Start(ctx context.Context, bracketID int, requesterFbID string) ([]models.PairingView, error)
	Tree(ctx context.Context, bracketID int) ([]models.PairingView, error)
	CastVote(ctx context.Context, bracketID, pairingID int, fbID string, itemID int) (*VoteResult, error)
}

type tournamentService struct {
	db          *sql.DB
	bracketRepo repositories.BracketRepository
	itemRepo    repositories.ItemRepository
	userRepo    repositories.UserRepository
	pairingRepo repositories.PairingRepository
	voteRepo    repositories.VoteRepository
	generator   brackets.BracketGenerator
	logger      *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	bracketRepo repositories.BracketRepository,
	itemRepo repositories.ItemRepository,
	userRepo repositories.UserRepository,
	pairingRepo repositories.PairingRepository,
	voteRepo repositories.VoteRepository,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:          db,
		bracketRepo: bracketRepo,
		itemRepo:    itemRepo,
		userRepo:    userRepo,
		pairingRepo: pairingRepo,
		voteRepo:    voteRepo,
		generator:   brackets.NewSingleEliminationGenerator(),
		logger:      logger,
	}
}

func (s *tournamentService) Start(ctx context.Context, bracketID int, requesterFbID string) ([]models.PairingView, error) {
	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if err := s.bracketRepo.Lock(ctx, tx, bracketID); err != nil {
			return err
		}
		owner, err := s.userRepo.GetOwner(ctx, tx, bracketID)
		if err != nil && !errors.Is(err, repositories.ErrNoOwner) {
			return err
		}
		if owner == nil || owner.FbID != requesterFbID {
			return ErrForbiddenOperation
		}

		existing, err := s.pairingRepo.CountByBracket(ctx, tx, bracketID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return ErrTournamentStarted
		}

		items, err := s.itemRepo.ListByBracket(ctx, bracketID)
		if err != nil {
			return err
		}
		if len(items) < 2 {
			return ErrNotEnoughItems
		}
		ids := make([]int, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}

		matches, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{ItemIDs: ids})
		if err != nil {
			return fmt.Errorf("failed to generate pairings for bracket %d: %w", bracketID, err)
		}
		return s.savePairings(ctx, tx, bracketID, matches)
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "tournament started", slog.Int("bracket_id", bracketID), slog.String("owner_fb_id", requesterFbID))
	return s.Tree(ctx, bracketID)
}

// savePairings persists played matches from the final down, so each parent
// row exists before its children reference it. Byes are not stored: the item
// is already seeded into its next-round match.
func (s *tournamentService) savePairings(ctx context.Context, tx *sql.Tx, bracketID int, matches []*brackets.BracketMatch) error {
	parentUID := make(map[string]string, len(matches))
	played := make([]*brackets.BracketMatch, 0, len(matches))
	for _, bm := range matches {
		if bm.IsBye {
			continue
		}
		played = append(played, bm)
		for _, src := range []*string{bm.SourceMatch1UID, bm.SourceMatch2UID} {
			if src != nil {
				parentUID[*src] = bm.UID
			}
		}
	}
	sort.SliceStable(played, func(i, j int) bool {
		if played[i].Round != played[j].Round {
			return played[i].Round > played[j].Round
		}
		return played[i].OrderInRound < played[j].OrderInRound
	})

	dbIDs := make(map[string]int, len(played))
	for _, bm := range played {
		p := &models.Pairing{BracketID: bracketID, Round: bm.Round, Position: bm.OrderInRound}
		if parent, ok := parentUID[bm.UID]; ok {
			parentID, known := dbIDs[parent]
			if !known {
				return fmt.Errorf("parent %s of pairing %s was not saved", parent, bm.UID)
			}
			p.ParentPairingID = &parentID
		}
		if err := s.pairingRepo.Create(ctx, tx, p); err != nil {
			return err
		}
		dbIDs[bm.UID] = p.ID

		for _, itemID := range []*int{bm.Participant1ID, bm.Participant2ID} {
			if itemID == nil {
				continue
			}
			if err := s.itemRepo.AssignPairing(ctx, tx, *itemID, p.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *tournamentService) Tree(ctx context.Context, bracketID int) ([]models.PairingView, error) {
	var (
		pairings []*models.Pairing
		items    []*models.Item
		votes    []*models.Vote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		pairings, err = s.pairingRepo.ListByBracket(gctx, bracketID)
		return err
	})
	g.Go(func() (err error) {
		items, err = s.itemRepo.ListByBracket(gctx, bracketID)
		return err
	})
	g.Go(func() (err error) {
		votes, err = s.voteRepo.ListByBracket(gctx, bracketID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buildTree(pairings, items, votes), nil
}

func (s *tournamentService) CastVote(ctx context.Context, bracketID, pairingID int, fbID string, itemID int) (*VoteResult, error) {
	if fbID == "" {
		return nil, ErrValidationFailed
	}
	tree, err := s.Tree(ctx, bracketID)
	if err != nil {
		return nil, err
	}
	view, ok := findPairing(tree, pairingID)
	if !ok {
		return nil, ErrPairingNotFound
	}
	if !hasEntrant(view, itemID) {
		return nil, ErrNotEntrant
	}

	if _, err = s.userRepo.FindOrCreate(ctx, fbID, nil, nil); err != nil {
		return nil, err
	}
	if err = s.voteRepo.Upsert(ctx, &models.Vote{PairingID: pairingID, UserFbID: fbID, ItemID: itemID}); err != nil {
		return nil, mapRepositoryError(err)
	}

	tree, err = s.Tree(ctx, bracketID)
	if err != nil {
		return nil, err
	}
	view, _ = findPairing(tree, pairingID)
	return &VoteResult{Pairing: view, Pairings: tree}, nil
}

// buildTree resolves entrants and winners round by round. Entrants of a
// pairing are the items seeded into it plus the winners of its child pairings.
// A winner needs both entrants known and strictly more votes than the other.
func buildTree(pairings []*models.Pairing, items []*models.Item, votes []*models.Vote) []models.PairingView {
	ordered := make([]*models.Pairing, len(pairings))
	copy(ordered, pairings)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Round != ordered[j].Round {
			return ordered[i].Round < ordered[j].Round
		}
		return ordered[i].Position < ordered[j].Position
	})

	names := make(map[int]string, len(items))
	seeded := make(map[int][]int)
	for _, it := range items {
		names[it.ID] = it.Name
		if it.PairingID != nil {
			seeded[*it.PairingID] = append(seeded[*it.PairingID], it.ID)
		}
	}
	tally := make(map[int]map[int]int)
	for _, v := range votes {
		if tally[v.PairingID] == nil {
			tally[v.PairingID] = make(map[int]int)
		}
		tally[v.PairingID][v.ItemID]++
	}
	children := make(map[int][]int)
	for _, p := range ordered {
		if p.ParentPairingID != nil {
			children[*p.ParentPairingID] = append(children[*p.ParentPairingID], p.ID)
		}
	}

	winners := make(map[int]*int, len(ordered))
	views := make([]models.PairingView, 0, len(ordered))
	for _, p := range ordered {
		entrantIDs := append([]int(nil), seeded[p.ID]...)
		sort.Ints(entrantIDs)
		slots := len(entrantIDs) + len(children[p.ID])
		for _, child := range children[p.ID] {
			if w := winners[child]; w != nil {
				entrantIDs = append(entrantIDs, *w)
			}
		}

		view := models.PairingView{Pairing: *p, Entrants: make([]models.Entrant, 0, len(entrantIDs))}
		for _, id := range entrantIDs {
			view.Entrants = append(view.Entrants, models.Entrant{ItemID: id, Name: names[id], Votes: tally[p.ID][id]})
		}
		if slots == 2 && len(view.Entrants) == 2 {
			a, b := view.Entrants[0], view.Entrants[1]
			switch {
			case a.Votes > b.Votes:
				view.WinnerItemID = &a.ItemID
			case b.Votes > a.Votes:
				view.WinnerItemID = &b.ItemID
			}
		}
		winners[p.ID] = view.WinnerItemID
		views = append(views, view)
	}
	return views
}

func findPairing(tree []models.PairingView, pairingID int) (models.PairingView, bool) {
	for _, v := range tree {
		if v.ID == pairingID {
			return v, true
		}
	}
	return models.PairingView{}, false
}

func hasEntrant(view models.PairingView, itemID int) bool {
	for _, e := range view.Entrants {
		if e.ItemID == itemID {
			return true
		}
	}
	return false
}
