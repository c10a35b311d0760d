package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/repositories"
	"github.com/Dosada05/shared-brackets/storage"
)

type fakeBracketRepo struct {
	mu       sync.Mutex
	brackets map[int]*models.Bracket
	coverErr error
}

func newFakeBracketRepo(bs ...*models.Bracket) *fakeBracketRepo {
	r := &fakeBracketRepo{brackets: map[int]*models.Bracket{}}
	for _, b := range bs {
		r.brackets[b.ID] = b
	}
	return r
}

func (r *fakeBracketRepo) Create(_ context.Context, b *models.Bracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = len(r.brackets) + 1
	r.brackets[b.ID] = b
	return nil
}

func (r *fakeBracketRepo) GetByID(_ context.Context, id int) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brackets[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBracketRepo) List(context.Context) ([]*models.Bracket, error) { return nil, nil }

func (r *fakeBracketRepo) ListForUser(context.Context, string, *bool) ([]*models.Bracket, error) {
	return nil, nil
}

func (r *fakeBracketRepo) UpdateTitle(_ context.Context, id int, title string) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brackets[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	b.Title = title
	return b, nil
}

func (r *fakeBracketRepo) UpdateCoverKey(_ context.Context, id int, key *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coverErr != nil {
		return r.coverErr
	}
	b, ok := r.brackets[id]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.CoverKey = key
	return nil
}

func (r *fakeBracketRepo) Lock(context.Context, repositories.SQLExecutor, int) error { return nil }

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string][]byte{}}
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, r io.Reader) (*storage.UploadResult, error) {
	if u.failPut {
		return nil, errors.New("put failed")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = buf.Bytes()
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type fakeItemRepo struct {
	items map[int]*models.Item
}

func (r *fakeItemRepo) Create(_ context.Context, it *models.Item) error {
	it.ID = len(r.items) + 1
	r.items[it.ID] = it
	return nil
}

func (r *fakeItemRepo) GetByID(_ context.Context, id int) (*models.Item, error) {
	it, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *fakeItemRepo) ListByBracket(_ context.Context, bracketID int) ([]*models.Item, error) {
	var out []*models.Item
	for _, it := range r.items {
		if it.BracketID == bracketID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) Update(_ context.Context, id int, name string, completer *string) (*models.Item, error) {
	it, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrItemNotFound
	}
	it.Name = name
	it.CompleterFbID = completer
	return it, nil
}

func (r *fakeItemRepo) AssignPairing(context.Context, repositories.SQLExecutor, int, int) error {
	return nil
}

type fakeUserRepo struct {
	users map[string]*models.User
}

func (r *fakeUserRepo) FindOrCreate(_ context.Context, fbID string, name, pic *string) (*models.User, error) {
	u, ok := r.users[fbID]
	if !ok {
		u = &models.User{ID: len(r.users) + 1, FbID: fbID}
		r.users[fbID] = u
	}
	if name != nil {
		u.Name = name
	}
	if pic != nil {
		u.ProfilePic = pic
	}
	return u, nil
}

func (r *fakeUserRepo) GetByFbID(_ context.Context, fbID string) (*models.User, error) {
	u, ok := r.users[fbID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) ListByBracket(context.Context, int) ([]*models.User, error) { return nil, nil }

func (r *fakeUserRepo) GetOwner(context.Context, repositories.SQLExecutor, int) (*models.User, error) {
	return nil, repositories.ErrNoOwner
}
