package follows

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/itter-sh/itter/internal/common"
	"github.com/itter-sh/itter/internal/dbx"
	"github.com/itter-sh/itter/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (r *PostgresRepository) FollowUser(ctx context.Context, followerID, followeeID string) error {
	query := `INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		switch pgErrCode(err) {
		case "23505": // unique_violation
			return common.ErrorAlreadyExists
		case "23514": // check_violation, the no-self-follow constraint
			return common.ErrSelfFollow
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UnfollowUser(ctx context.Context, followerID, followeeID string) error {
	query := `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`

	res, err := r.db.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return common.ErrNotFollowing
	}
	return nil
}

func (r *PostgresRepository) FollowChannel(ctx context.Context, userID, tag string) error {
	query := `INSERT INTO channel_follows (user_id, channel_tag) VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, userID, tag)
	if err != nil {
		if pgErrCode(err) == "23505" {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UnfollowChannel(ctx context.Context, userID, tag string) error {
	query := `DELETE FROM channel_follows WHERE user_id = $1 AND channel_tag = $2`

	res, err := r.db.ExecContext(ctx, query, userID, tag)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return common.ErrNotFollowing
	}
	return nil
}

func (r *PostgresRepository) Following(ctx context.Context, userID string) ([]models.FollowedUser, error) {
	query :=
		`SELECT u.username, u.display_name, f.created_at
		 FROM follows f
		 JOIN users u ON u.id = f.followee_id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at DESC
		 `
	return r.listUsers(ctx, query, userID)
}

func (r *PostgresRepository) Followers(ctx context.Context, userID string) ([]models.FollowedUser, error) {
	query :=
		`SELECT u.username, u.display_name, f.created_at
		 FROM follows f
		 JOIN users u ON u.id = f.follower_id
		 WHERE f.followee_id = $1
		 ORDER BY f.created_at DESC
		 `
	return r.listUsers(ctx, query, userID)
}

func (r *PostgresRepository) listUsers(ctx context.Context, query, userID string) ([]models.FollowedUser, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.FollowedUser
	for rows.Next() {
		var fu models.FollowedUser
		if err := rows.Scan(&fu.Username, &fu.DisplayName, &fu.Since); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, fu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) FollowingChannels(ctx context.Context, userID string) ([]models.FollowedChannel, error) {
	query :=
		`SELECT channel_tag, created_at FROM channel_follows
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.FollowedChannel
	for rows.Next() {
		var fc models.FollowedChannel
		if err := rows.Scan(&fc.Tag, &fc.Since); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) FollowSet(ctx context.Context, userID string) (*models.FollowSet, error) {
	set := &models.FollowSet{
		UserIDs:  make(map[string]struct{}),
		Channels: make(map[string]struct{}),
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT followee_id FROM follows WHERE follower_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		set.UserIDs[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	chRows, err := r.db.QueryContext(ctx,
		`SELECT channel_tag FROM channel_follows WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer chRows.Close()
	for chRows.Next() {
		var tag string
		if err := chRows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		set.Channels[tag] = struct{}{}
	}
	if err := chRows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return set, nil
}
