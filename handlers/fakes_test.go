package handlers

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/services"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore backs the bracket, user and tournament sides of the gateway.
type fakeStore struct {
	mu       sync.Mutex
	brackets map[int]*models.Bracket
	items    map[int][]*models.Item
	users    map[string]*models.User
	members  map[int][]string
	owners   map[int]string
	trees    map[int][]models.PairingView
	votes    map[int]map[string]int

	nextItem    int
	nextPairing int
}

func newFakeStore(ids ...int) *fakeStore {
	s := &fakeStore{
		brackets: map[int]*models.Bracket{},
		items:    map[int][]*models.Item{},
		users:    map[string]*models.User{},
		members:  map[int][]string{},
		owners:   map[int]string{},
		trees:    map[int][]models.PairingView{},
		votes:    map[int]map[string]int{},
	}
	for _, id := range ids {
		s.brackets[id] = &models.Bracket{ID: id, Title: models.DefaultBracketTitle}
	}
	return s
}

func (s *fakeStore) Create(_ context.Context, title *string) (*models.Bracket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &models.Bracket{ID: len(s.brackets) + 1, Title: models.DefaultBracketTitle}
	if title != nil {
		b.Title = *title
	}
	s.brackets[b.ID] = b
	return b, nil
}

func (s *fakeStore) Get(_ context.Context, id int) (*models.Bracket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brackets[id]
	if !ok {
		return nil, services.ErrBracketNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) GetWithUsers(ctx context.Context, id int) (*models.BracketWithUsers, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.BracketWithUsers{Bracket: *b, SubscriberIDs: append([]string{}, s.members[id]...)}, nil
}

func (s *fakeStore) ListForUser(_ context.Context, fbID string, filter services.BracketFilter, offset int) (*models.BracketPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for id, members := range s.members {
		for _, m := range members {
			if m != fbID {
				continue
			}
			owned := s.owners[id] == fbID
			if filter == services.FilterAll || (filter == services.FilterOwned) == owned {
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	page := &models.BracketPage{Brackets: []*models.Bracket{}, Total: len(ids)}
	for i := offset; i < len(ids) && i < offset+services.BracketPageSize; i++ {
		page.Brackets = append(page.Brackets, s.brackets[ids[i]])
	}
	if next := offset + services.BracketPageSize; next < len(ids) {
		page.NextOffset = &next
	}
	return page, nil
}

func (s *fakeStore) GetAllItems(_ context.Context, id int) ([]*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Item{}, s.items[id]...), nil
}

func (s *fakeStore) GetAllUsers(_ context.Context, id int) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := []*models.User{}
	for _, fbID := range s.members[id] {
		users = append(users, s.users[fbID])
	}
	return users, nil
}

func (s *fakeStore) GetOwner(_ context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fbID, ok := s.owners[id]
	if !ok {
		return nil, services.ErrNoOwner
	}
	return s.users[fbID], nil
}

func (s *fakeStore) AddUser(_ context.Context, bracketID int, fbID string) (*models.Membership, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brackets[bracketID]; !ok {
		return nil, false, services.ErrBracketNotFound
	}
	member := false
	for _, m := range s.members[bracketID] {
		member = member || m == fbID
	}
	if !member {
		s.members[bracketID] = append(s.members[bracketID], fbID)
	}
	granted := false
	if _, ok := s.owners[bracketID]; !ok {
		s.owners[bracketID] = fbID
		granted = true
	}
	return &models.Membership{BracketID: bracketID, UserFbID: fbID, Owner: s.owners[bracketID] == fbID}, granted, nil
}

func (s *fakeStore) TransferOwner(_ context.Context, bracketID int, requesterFbID, fbID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[bracketID] != requesterFbID {
		return nil, services.ErrForbiddenOperation
	}
	s.owners[bracketID] = fbID
	return &models.Membership{BracketID: bracketID, UserFbID: fbID, Owner: true}, nil
}

func (s *fakeStore) SetTitle(_ context.Context, bracketID int, title *string) (*models.Bracket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brackets[bracketID]
	if !ok {
		return nil, services.ErrBracketNotFound
	}
	b.Title = models.DefaultBracketTitle
	if title != nil {
		b.Title = *title
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) FindOrCreate(_ context.Context, fbID string, name, profilePic *string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[fbID]
	if !ok {
		u = &models.User{ID: len(s.users) + 1, FbID: fbID}
		s.users[fbID] = u
	}
	if name != nil {
		u.Name = name
	}
	if profilePic != nil {
		u.ProfilePic = profilePic
	}
	return u, nil
}

func (s *fakeStore) Start(_ context.Context, bracketID int, requesterFbID string) ([]models.PairingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[bracketID] != requesterFbID {
		return nil, services.ErrForbiddenOperation
	}
	if len(s.trees[bracketID]) > 0 {
		return nil, services.ErrTournamentStarted
	}
	items := s.items[bracketID]
	if len(items) < 2 {
		return nil, services.ErrNotEnoughItems
	}
	// Один раунд: соседние items попадают в одну пару
	tree := []models.PairingView{}
	for i := 0; i+1 < len(items); i += 2 {
		s.nextPairing++
		tree = append(tree, models.PairingView{
			Pairing: models.Pairing{ID: s.nextPairing, BracketID: bracketID, Round: 1, Position: i/2 + 1},
			Entrants: []models.Entrant{
				{ItemID: items[i].ID, Name: items[i].Name},
				{ItemID: items[i+1].ID, Name: items[i+1].Name},
			},
		})
	}
	s.trees[bracketID] = tree
	return cloneTree(tree), nil
}

func (s *fakeStore) Tree(_ context.Context, bracketID int) ([]models.PairingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTree(s.trees[bracketID]), nil
}

func (s *fakeStore) CastVote(_ context.Context, bracketID, pairingID int, fbID string, itemID int) (*services.VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree := s.trees[bracketID]
	for i := range tree {
		if tree[i].ID != pairingID {
			continue
		}
		view := &tree[i]
		entrant := -1
		for j, e := range view.Entrants {
			if e.ItemID == itemID {
				entrant = j
			}
		}
		if entrant < 0 {
			return nil, services.ErrNotEntrant
		}
		if s.votes[pairingID] == nil {
			s.votes[pairingID] = map[string]int{}
		}
		s.votes[pairingID][fbID] = itemID

		for j := range view.Entrants {
			view.Entrants[j].Votes = 0
			for _, picked := range s.votes[pairingID] {
				if picked == view.Entrants[j].ItemID {
					view.Entrants[j].Votes++
				}
			}
		}
		view.WinnerItemID = nil
		a, b := view.Entrants[0], view.Entrants[1]
		switch {
		case a.Votes > b.Votes:
			view.WinnerItemID = &view.Entrants[0].ItemID
		case b.Votes > a.Votes:
			view.WinnerItemID = &view.Entrants[1].ItemID
		}
		pairings := cloneTree(tree)
		return &services.VoteResult{Pairing: pairings[i], Pairings: pairings}, nil
	}
	return nil, services.ErrPairingNotFound
}

func cloneTree(tree []models.PairingView) []models.PairingView {
	out := make([]models.PairingView, len(tree))
	for i, v := range tree {
		v.Entrants = append([]models.Entrant{}, v.Entrants...)
		if v.WinnerItemID != nil {
			w := *v.WinnerItemID
			v.WinnerItemID = &w
		}
		out[i] = v
	}
	return out
}

// fakeItems shares the store but has its own Create.
type fakeItems struct {
	s *fakeStore
}

func (f fakeItems) Create(_ context.Context, bracketID int, ownerFbID, name string) (*models.Item, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.nextItem++
	item := &models.Item{ID: f.s.nextItem, Name: name, BracketID: bracketID, OwnerFbID: ownerFbID}
	f.s.items[bracketID] = append(f.s.items[bracketID], item)
	return item, nil
}

func (f fakeItems) Update(_ context.Context, bracketID, id int, name string, completerFbID *string) (*models.ItemUpdate, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, item := range f.s.items[bracketID] {
		if item.ID == id {
			item.Name = name
			item.CompleterFbID = completerFbID
			return &models.ItemUpdate{ID: id, Name: name, CompleterFbID: completerFbID}, nil
		}
	}
	return nil, services.ErrItemNotFound
}
