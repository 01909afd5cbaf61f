package feed

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itter-sh/itter/internal/common"
	"github.com/itter-sh/itter/internal/logging"
	"github.com/itter-sh/itter/internal/server/event"
	"github.com/itter-sh/itter/internal/server/models"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeEetRepo keeps eets in memory and pages them the way the Postgres
// repository does: descending seq, strictly below beforeSeq.
type fakeEetRepo struct {
	eets    []models.Eet
	nextSeq int64
}

func (f *fakeEetRepo) Create(_ context.Context, eet *models.Eet) (*models.Eet, error) {
	f.nextSeq++
	stored := *eet
	stored.Seq = f.nextSeq
	f.eets = append(f.eets, stored)
	return &stored, nil
}

func (f *fakeEetRepo) page(beforeSeq int64, limit int, match func(*models.Eet) bool) []models.Eet {
	sorted := make([]models.Eet, len(f.eets))
	copy(sorted, f.eets)
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

type fakeUserRepo struct {
	users map[string]*models.User // by lowercased username
}

func (f *fakeUserRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.users[strings.ToLower(u.Username)] = u
	return u, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := f.users[strings.ToLower(username)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	_, ok := f.users[strings.ToLower(username)]
	return ok, nil
}

func (f *fakeUserRepo) UpdateProfile(context.Context, string, *string, *string) error {
	return nil
}

func (f *fakeUserRepo) Stats(context.Context, string) (*models.ProfileStats, error) {
	return nil, common.ErrorNotFound
}

func newTestService() (*Service, *fakeEetRepo, *fakeUserRepo) {
	eetRepo := &fakeEetRepo{}
	userRepo := &fakeUserRepo{users: map[string]*models.User{
		"alice": {ID: "user-a", Username: "alice"},
		"bob":   {ID: "user-b", Username: "bob"},
	}}
	svc := NewService(eetRepo, userRepo, event.NewMemoryBus(), "pepper", testLogger())
	return svc, eetRepo, userRepo
}

func TestPost_StoresTagsAndKnownMentions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	author := &models.User{ID: "user-a", Username: "alice"}

	eet, err := svc.Post(ctx, author, "hey @bob and @nobody, see #General", "203.0.113.7")
	require.NoError(t, err)

	assert.Equal(t, int64(1), eet.Seq)
	assert.Equal(t, "alice", eet.Author)
	assert.Equal(t, []string{"general"}, eet.Tags)
	assert.Equal(t, []string{"bob"}, eet.Mentions, "unknown users are dropped from mentions")
	assert.NotEmpty(t, eet.HashedIP)
	assert.NotContains(t, eet.HashedIP, "203.0.113.7")
}

func TestPost_RejectsOversizedBody(t *testing.T) {
	svc, repo, _ := newTestService()
	author := &models.User{ID: "user-a", Username: "alice"}

	_, err := svc.Post(context.Background(), author, strings.Repeat("a", common.EetMaxLength+1), "")
	require.ErrorIs(t, err, common.ErrEetTooLong)
	assert.Empty(t, repo.eets, "rejected eet must never be stored")

	// Exactly at the limit is fine, and runes count, not bytes.
	_, err = svc.Post(context.Background(), author, strings.Repeat("ü", common.EetMaxLength), "")
	require.NoError(t, err)
}

func TestPost_RejectsEmptyBody(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Post(context.Background(), &models.User{ID: "user-a", Username: "alice"}, "   ", "")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestPost_PublishesToBus(t *testing.T) {
	bus := event.NewMemoryBus()
	eetRepo := &fakeEetRepo{}
	userRepo := &fakeUserRepo{users: map[string]*models.User{}}
	svc := NewService(eetRepo, userRepo, bus, "", testLogger())

	ctx := context.Background()
	events, err := bus.Subscribe(ctx, event.TopicEets)
	require.NoError(t, err)

	_, err = svc.Post(ctx, &models.User{ID: "user-a", Username: "alice"}, "hello", "")
	require.NoError(t, err)

	got := <-events
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, int64(1), got.Seq)
}

func TestPage_GaplessNonDuplicating(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	author := &models.User{ID: "user-a", Username: "alice"}

	const total = 23
	for i := 0; i < total; i++ {
		_, err := svc.Post(ctx, author, "post", "")
		require.NoError(t, err)
	}

	var collected []int64
	cursor := ""
	for {
		page, err := svc.Page(ctx, author, Target{Kind: TargetAll}, cursor, 5)
		require.NoError(t, err)
		for _, e := range page.Eets {
			collected = append(collected, e.Seq)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, collected, total, "pages must reconstruct the set exactly once")
	for i := 1; i < len(collected); i++ {
		assert.Equal(t, collected[i-1]-1, collected[i], "descending without gaps")
	}
}

func TestPage_UnknownUserTarget(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Page(context.Background(), &models.User{ID: "user-a"}, Target{Kind: TargetUser, Value: "ghost"}, "", 10)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPage_BadCursor(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Page(context.Background(), &models.User{ID: "user-a"}, Target{Kind: TargetAll}, "not-a-cursor!", 10)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestPage_ChannelFilter(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	alice := &models.User{ID: "user-a", Username: "alice"}
	bob := &models.User{ID: "user-b", Username: "bob"}

	_, err := svc.Post(ctx, bob, "hello #general", "")
	require.NoError(t, err)
	_, err = svc.Post(ctx, alice, "off topic", "")
	require.NoError(t, err)

	page, err := svc.Page(ctx, alice, Target{Kind: TargetChannel, Value: "general"}, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Eets, 1)
	assert.Equal(t, "bob", page.Eets[0].Author)
	assert.Empty(t, page.NextCursor)
}
