package follows

import (
	"context"

	"github.com/itter-sh/itter/internal/server/models"
)

type Repository interface {
	FollowUser(ctx context.Context, followerID, followeeID string) error
	UnfollowUser(ctx context.Context, followerID, followeeID string) error
	FollowChannel(ctx context.Context, userID, tag string) error
	UnfollowChannel(ctx context.Context, userID, tag string) error
	Following(ctx context.Context, userID string) ([]models.FollowedUser, error)
	Followers(ctx context.Context, userID string) ([]models.FollowedUser, error)
	FollowingChannels(ctx context.Context, userID string) ([]models.FollowedChannel, error)
	// FollowSet resolves the ids and channel tags feeding the user's "mine"
	// timeline, for both store queries and live subscription matching.
	FollowSet(ctx context.Context, userID string) (*models.FollowSet, error)
}
