package follows

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/itter-sh/itter/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestFollowUser_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT\s+INTO\s+follows\s*\(follower_id,\s*followee_id\)\s*VALUES\s*\(\$1,\s*\$2\)$`).
		WithArgs("u-a", "u-b").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.FollowUser(context.Background(), "u-a", "u-b"); err != nil {
		t.Fatalf("FollowUser error: %v", err)
	}
}

func TestFollowUser_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+follows`).
		WithArgs("u-a", "u-b").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.FollowUser(context.Background(), "u-a", "u-b"); !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestFollowUser_SelfFollowConstraint(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+follows`).
		WithArgs("u-a", "u-a").
		WillReturnError(&pgconn.PgError{Code: "23514"})

	if err := repo.FollowUser(context.Background(), "u-a", "u-a"); !errors.Is(err, common.ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
}

func TestUnfollowUser_NotFollowing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+follows`).
		WithArgs("u-a", "u-b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UnfollowUser(context.Background(), "u-a", "u-b"); !errors.Is(err, common.ErrNotFollowing) {
		t.Fatalf("expected ErrNotFollowing, got %v", err)
	}
}

func TestFollowChannel_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+channel_follows`).
		WithArgs("u-a", "general").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.FollowChannel(context.Background(), "u-a", "general"); !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestUnfollowChannel_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+channel_follows`).
		WithArgs("u-a", "general").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UnfollowChannel(context.Background(), "u-a", "general"); err != nil {
		t.Fatalf("UnfollowChannel error: %v", err)
	}
}

func TestFollowing_ListsUsers(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	since := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"username", "display_name", "created_at"}).
		AddRow("bob", "Bob", since).
		AddRow("carol", "", since.Add(-time.Hour))
	mock.ExpectQuery(`(?s)SELECT\s+u\.username,\s*u\.display_name,\s*f\.created_at.*WHERE\s+f\.follower_id\s*=\s*\$1`).
		WithArgs("u-a").
		WillReturnRows(rows)

	got, err := repo.Following(context.Background(), "u-a")
	if err != nil {
		t.Fatalf("Following error: %v", err)
	}
	if len(got) != 2 || got[0].Username != "bob" || !got[0].Since.Equal(since) {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestFollowSet_CombinesUsersAndChannels(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+followee_id\s+FROM\s+follows`).
		WithArgs("u-a").
		WillReturnRows(sqlmock.NewRows([]string{"followee_id"}).AddRow("u-b").AddRow("u-c"))
	mock.ExpectQuery(`SELECT\s+channel_tag\s+FROM\s+channel_follows`).
		WithArgs("u-a").
		WillReturnRows(sqlmock.NewRows([]string{"channel_tag"}).AddRow("general"))

	set, err := repo.FollowSet(context.Background(), "u-a")
	if err != nil {
		t.Fatalf("FollowSet error: %v", err)
	}
	if len(set.UserIDs) != 2 || len(set.Channels) != 1 {
		t.Fatalf("unexpected set: %+v", set)
	}
	if _, ok := set.UserIDs["u-b"]; !ok {
		t.Fatalf("missing followee in set: %+v", set)
	}
	if _, ok := set.Channels["general"]; !ok {
		t.Fatalf("missing channel in set: %+v", set)
	}
}
