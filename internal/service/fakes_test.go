package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.Store. Writes made inside WithTx are
// staged and only become visible when the callback returns nil, so tests
// can check that a failed submission leaves nothing behind.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	statuses []model.Status
	follows  map[[2]string]bool
	mentions []model.Mention
	nextID   int

	// Set to simulate failures.
	createUserErr error
	mentionErr    error
	followErr     error
	readErr       error

	// Called before each CreateUser; lets tests race a nickname.
	beforeCreateUser func(*model.User)
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*model.User),
		follows: make(map[[2]string]bool),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%04d", prefix, f.nextID)
}

// addUser inserts a user directly and returns it.
func (f *fakeStore) addUser(nickname string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &model.User{
		ID:         f.id("user"),
		Nickname:   nickname,
		Identifier: "github:" + nickname,
		Provider:   "github",
		CreatedAt:  time.Now(),
	}
	f.users[u.ID] = u
	return u
}

// addStatus inserts a status directly with an explicit timestamp.
func (f *fakeStore) addStatus(owner *model.User, text string, at time.Time) model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := model.Status{ID: f.id("status"), OwnerID: owner.ID, Text: text, CreatedAt: at, Owner: owner}
	f.statuses = append(f.statuses, s)
	return s
}

func (f *fakeStore) addFollow(follower, followed *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows[[2]string{follower.ID, followed.ID}] = true
}

func (f *fakeStore) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statuses)
}

func (f *fakeStore) followCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.follows)
}

func (f *fakeStore) mentionsOf(statusID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, m := range f.mentions {
		if m.StatusID == statusID {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// ---- UserRepository ----

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	if f.beforeCreateUser != nil {
		f.beforeCreateUser(user)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, u := range f.users {
		if u.Nickname == user.Nickname {
			return apperror.Conflict("nickname", user.Nickname)
		}
		if u.Identifier == user.Identifier {
			return apperror.Conflict("user identifier", user.Identifier)
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) findUser(match func(*model.User) bool, key string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var found *model.User
	for _, u := range f.users {
		if match(u) && (found == nil || u.CreatedAt.Before(found.CreatedAt)) {
			found = u
		}
	}
	if found == nil {
		return nil, apperror.NotFound("user", key)
	}
	copied := *found
	return &copied, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeStore) GetUserByNickname(_ context.Context, nickname string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Nickname == nickname }, nickname)
}

func (f *fakeStore) GetUserByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Identifier == identifier }, identifier)
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Email == email }, email)
}

func (f *fakeStore) UpdateProfile(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	u.Email = user.Email
	u.FormattedName = user.FormattedName
	u.PhotoURL = user.PhotoURL
	u.Location = user.Location
	u.Description = user.Description
	return nil
}

func (f *fakeStore) SetAPIPassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.APIPassword = hash
	return nil
}

// ---- StatusRepository ----

func (f *fakeStore) selectStatuses(match func(model.Status) bool, limit int) ([]model.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []model.Status
	for _, s := range f.statuses {
		if match(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) GetStatus(_ context.Context, id string) (*model.Status, error) {
	list, _ := f.selectStatuses(func(s model.Status) bool { return s.ID == id }, 1)
	if len(list) == 0 {
		return nil, apperror.NotFound("status", id)
	}
	return &list[0], nil
}

func (f *fakeStore) ListOwnStatuses(_ context.Context, userID string, opts repository.ListStatusOptions) ([]model.Status, error) {
	return f.selectStatuses(func(s model.Status) bool {
		return s.OwnerID == userID && !(opts.ExcludeDirect && s.IsDirect())
	}, opts.Limit)
}

func (f *fakeStore) ListPublic(_ context.Context, limit int) ([]model.Status, error) {
	return f.selectStatuses(func(s model.Status) bool { return !s.IsDirect() }, limit)
}

func (f *fakeStore) ListMentioning(_ context.Context, userID string, limit int) ([]model.Status, error) {
	mentioned := map[string]bool{}
	f.mu.Lock()
	for _, m := range f.mentions {
		if m.UserID == userID {
			mentioned[m.StatusID] = true
		}
	}
	f.mu.Unlock()
	return f.selectStatuses(func(s model.Status) bool { return mentioned[s.ID] }, limit)
}

func (f *fakeStore) ListDirect(_ context.Context, userID string, dir repository.Direction, limit int) ([]model.Status, error) {
	return f.selectStatuses(func(s model.Status) bool {
		if dir == repository.Sent {
			return s.IsDirect() && s.OwnerID == userID
		}
		return s.RecipientID == userID
	}, limit)
}

func (f *fakeStore) CountDirect(_ context.Context, userID string) (int, error) {
	list, err := f.selectStatuses(func(s model.Status) bool {
		return s.IsDirect() && (s.OwnerID == userID || s.RecipientID == userID)
	}, 0)
	return len(list), err
}

func (f *fakeStore) ListMentions(_ context.Context, statusID string) ([]model.User, error) {
	var users []model.User
	for _, id := range f.mentionsOf(statusID) {
		u, err := f.GetUserByID(context.Background(), id)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

// ---- FollowRepository ----

func (f *fakeStore) listEdges(userID string, outgoing bool) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []model.User
	for edge := range f.follows {
		switch {
		case outgoing && edge[0] == userID:
			out = append(out, *f.users[edge[1]])
		case !outgoing && edge[1] == userID:
			out = append(out, *f.users[edge[0]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out, nil
}

func (f *fakeStore) ListFollowed(_ context.Context, userID string) ([]model.User, error) {
	return f.listEdges(userID, true)
}

func (f *fakeStore) ListFollowers(_ context.Context, userID string) ([]model.User, error) {
	return f.listEdges(userID, false)
}

func (f *fakeStore) IsFollowing(_ context.Context, followerID, followedID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follows[[2]string{followerID, followedID}], nil
}

func (f *fakeStore) DeleteFollow(_ context.Context, followerID, followedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.follows, [2]string{followerID, followedID})
	return nil
}

// ---- transactions ----

type fakeTx struct {
	store    *fakeStore
	statuses []model.Status
	mentions []model.Mention
	follows  [][2]string
}

func (f *fakeStore) WithTx(_ context.Context, fn func(tx repository.Tx) error) error {
	tx := &fakeTx{store: f}
	if err := fn(tx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, tx.statuses...)
	f.mentions = append(f.mentions, tx.mentions...)
	for _, e := range tx.follows {
		f.follows[e] = true
	}
	return nil
}

func (t *fakeTx) CreateStatus(_ context.Context, status *model.Status) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	status.ID = t.store.id("status")
	t.statuses = append(t.statuses, *status)
	return nil
}

func (t *fakeTx) CreateMention(_ context.Context, userID, statusID string) error {
	if t.store.mentionErr != nil {
		return t.store.mentionErr
	}
	t.mentions = append(t.mentions, model.Mention{UserID: userID, StatusID: statusID})
	return nil
}

func (t *fakeTx) CreateFollow(_ context.Context, followerID, followedID string) error {
	if t.store.followErr != nil {
		return t.store.followErr
	}
	t.follows = append(t.follows, [2]string{followerID, followedID})
	return nil
}

// =========================================================================
// OTHER FAKES
// =========================================================================

type fakeShortener struct{ calls int }

func (f *fakeShortener) Shorten(_ context.Context, longURL string) (string, error) {
	f.calls++
	return "https://tinyurl.com/s" + fmt.Sprint(f.calls), nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
