package session_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itter-sh/itter/internal/common"
	"github.com/itter-sh/itter/internal/server/models"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User // by lowercased username
}

func (f *fakeUserRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, ok := f.users[key]; ok {
		return nil, common.ErrUsernameTaken
	}
	u.ID = "id-" + key
	f.users[key] = u
	return u, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(username)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[strings.ToLower(username)]
	return ok, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, userID string, displayName, email *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			if displayName != nil {
				u.DisplayName = *displayName
			}
			if email != nil {
				u.Email = *email
			}
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeUserRepo) Stats(_ context.Context, username string) (*models.ProfileStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(username)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.ProfileStats{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		JoinedAt:    u.CreatedAt,
	}, nil
}

type fakeEetRepo struct {
	mu      sync.Mutex
	eets    []models.Eet
	nextSeq int64

	// optional seams fired while a page is read, used to interleave writes
	// with an in-flight list
	beforeSnapshot func()
	afterSnapshot  func()
}

func (f *fakeEetRepo) Create(_ context.Context, eet *models.Eet) (*models.Eet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	stored := *eet
	stored.Seq = f.nextSeq
	stored.CreatedAt = time.Now()
	f.eets = append(f.eets, stored)
	return &stored, nil
}

func (f *fakeEetRepo) page(beforeSeq int64, limit int, match func(*models.Eet) bool) []models.Eet {
	if f.beforeSnapshot != nil {
		f.beforeSnapshot()
	}
	f.mu.Lock()
	sorted := make([]models.Eet, len(f.eets))
	copy(sorted, f.eets)
	f.mu.Unlock()
	if f.afterSnapshot != nil {
		f.afterSnapshot()
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq > sorted[j].Seq })

	var out []models.Eet
	for i := range sorted {
		e := &sorted[i]
		if beforeSeq != 0 && e.Seq >= beforeSeq {
			continue
		}
		if !match(e) {
			continue
		}
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (f *fakeEetRepo) ListAll(_ context.Context, beforeSeq int64, limit int) ([]models.Eet, error) {
	return f.page(beforeSeq, limit, func(*models.Eet) bool { return true }), nil
}

func (f *fakeEetRepo) ListByAuthor(_ context.Context, username string, beforeSeq int64, limit int) ([]models.Eet, error) {
	return f.page(beforeSeq, limit, func(e *models.Eet) bool {
		return strings.EqualFold(e.Author, username)
	}), nil
}

func (f *fakeEetRepo) ListByChannel(_ context.Context, tag string, beforeSeq int64, limit int) ([]models.Eet, error) {
	return f.page(beforeSeq, limit, func(e *models.Eet) bool { return e.HasTag(tag) }), nil
}

func (f *fakeEetRepo) ListMine(_ context.Context, viewerID string, beforeSeq int64, limit int) ([]models.Eet, error) {
	return f.page(beforeSeq, limit, func(e *models.Eet) bool { return e.AuthorID == viewerID }), nil
}

type fakeFollowRepo struct {
	mu        sync.Mutex
	userEdges map[string]map[string]struct{}
	channels  map[string]map[string]struct{}
}

func newFakeFollowRepo() *fakeFollowRepo {
	return &fakeFollowRepo{
		userEdges: map[string]map[string]struct{}{},
		channels:  map[string]map[string]struct{}{},
	}
}

func (f *fakeFollowRepo) FollowUser(_ context.Context, followerID, followeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if followerID == followeeID {
		return common.ErrSelfFollow
	}
	if f.userEdges[followerID] == nil {
		f.userEdges[followerID] = map[string]struct{}{}
	}
	if _, ok := f.userEdges[followerID][followeeID]; ok {
		return common.ErrorAlreadyExists
	}
	f.userEdges[followerID][followeeID] = struct{}{}
	return nil
}

func (f *fakeFollowRepo) UnfollowUser(_ context.Context, followerID, followeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.userEdges[followerID][followeeID]; !ok {
		return common.ErrNotFollowing
	}
	delete(f.userEdges[followerID], followeeID)
	return nil
}

func (f *fakeFollowRepo) FollowChannel(_ context.Context, userID, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channels[userID] == nil {
		f.channels[userID] = map[string]struct{}{}
	}
	if _, ok := f.channels[userID][tag]; ok {
		return common.ErrorAlreadyExists
	}
	f.channels[userID][tag] = struct{}{}
	return nil
}

func (f *fakeFollowRepo) UnfollowChannel(_ context.Context, userID, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[userID][tag]; !ok {
		return common.ErrNotFollowing
	}
	delete(f.channels[userID], tag)
	return nil
}

func (f *fakeFollowRepo) Following(_ context.Context, userID string) ([]models.FollowedUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FollowedUser
	for id := range f.userEdges[userID] {
		out = append(out, models.FollowedUser{Username: strings.TrimPrefix(id, "id-"), Since: time.Now()})
	}
	return out, nil
}

func (f *fakeFollowRepo) Followers(_ context.Context, userID string) ([]models.FollowedUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FollowedUser
	for follower, followees := range f.userEdges {
		if _, ok := followees[userID]; ok {
			out = append(out, models.FollowedUser{Username: strings.TrimPrefix(follower, "id-")})
		}
	}
	return out, nil
}

func (f *fakeFollowRepo) FollowingChannels(_ context.Context, userID string) ([]models.FollowedChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FollowedChannel
	for tag := range f.channels[userID] {
		out = append(out, models.FollowedChannel{Tag: tag, Since: time.Now()})
	}
	return out, nil
}

func (f *fakeFollowRepo) FollowSet(_ context.Context, userID string) (*models.FollowSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := &models.FollowSet{UserIDs: map[string]struct{}{}, Channels: map[string]struct{}{}}
	for id := range f.userEdges[userID] {
		set.UserIDs[id] = struct{}{}
	}
	for tag := range f.channels[userID] {
		set.Channels[tag] = struct{}{}
	}
	return set, nil
}
