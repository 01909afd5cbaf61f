// Package social covers the account-shaped operations: registration,
// profiles, and the follow graph for users and channels.
package social

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/itter-sh/itter/internal/common"
	"github.com/itter-sh/itter/internal/logging"
	"github.com/itter-sh/itter/internal/server/models"
	"github.com/itter-sh/itter/internal/server/repositories/follows"
	"github.com/itter-sh/itter/internal/server/repositories/users"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	channelRe  = regexp.MustCompile(`^[0-9A-Za-z_][0-9A-Za-z_-]*$`)
)

// ValidUsername reports whether name is a well-formed username:
// 3 to 20 characters, letters, digits and underscore only.
func ValidUsername(name string) bool {
	return usernameRe.MatchString(name)
}

// ValidChannel reports whether tag is a well-formed channel tag.
func ValidChannel(tag string) bool {
	return channelRe.MatchString(tag)
}

type Service struct {
	userRepo   users.Repository
	followRepo follows.Repository
	logger     logging.Logger
}

func NewService(userRepo users.Repository, followRepo follows.Repository, logger logging.Logger) *Service {
	return &Service{
		userRepo:   userRepo,
		followRepo: followRepo,
		logger:     logger.With("module", "social"),
	}
}

// Register creates an account bound to the presented public key. The
// username must be well formed and free; uniqueness is case-insensitive.
func (s *Service) Register(ctx context.Context, username, publicKey, fingerprint string) (*models.User, error) {
	if !ValidUsername(username) {
		return nil, fmt.Errorf("%w: username must be 3-20 characters (letters, digits, underscore)", common.ErrValidation)
	}
	taken, err := s.userRepo.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, common.ErrUsernameTaken
	}
	// racing registrations still hit the unique index in Create
	user, err := s.userRepo.Create(ctx, &models.User{
		Username:    username,
		PublicKey:   publicKey,
		Fingerprint: fingerprint,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user registered", "username", user.Username)
	return user, nil
}

// Profile returns the public profile card of a user.
func (s *Service) Profile(ctx context.Context, username string) (*models.ProfileStats, error) {
	return s.userRepo.Stats(ctx, username)
}

// EditProfile updates the caller's display name and/or email. Nil fields
// are left untouched; empty strings clear.
func (s *Service) EditProfile(ctx context.Context, userID string, displayName, email *string) error {
	if displayName == nil && email == nil {
		return fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}
	if displayName != nil && len(*displayName) > 50 {
		return fmt.Errorf("%w: display name too long (max 50)", common.ErrValidation)
	}
	if email != nil && *email != "" && !strings.Contains(*email, "@") {
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return s.userRepo.UpdateProfile(ctx, userID, displayName, email)
}

// FollowUser adds target to the viewer's follow list.
func (s *Service) FollowUser(ctx context.Context, viewer *models.User, target string) error {
	if strings.EqualFold(target, viewer.Username) {
		return common.ErrSelfFollow
	}
	followee, err := s.userRepo.GetByUsername(ctx, target)
	if err != nil {
		return err
	}
	return s.followRepo.FollowUser(ctx, viewer.ID, followee.ID)
}

// UnfollowUser removes target from the viewer's follow list.
func (s *Service) UnfollowUser(ctx context.Context, viewer *models.User, target string) error {
	followee, err := s.userRepo.GetByUsername(ctx, target)
	if err != nil {
		return err
	}
	return s.followRepo.UnfollowUser(ctx, viewer.ID, followee.ID)
}

// FollowChannel subscribes the viewer to a channel tag. Tags are stored
// lowercased so #Go and #go are the same channel.
func (s *Service) FollowChannel(ctx context.Context, viewer *models.User, tag string) error {
	tag = strings.ToLower(tag)
	if !ValidChannel(tag) {
		return fmt.Errorf("%w: invalid channel tag", common.ErrValidation)
	}
	return s.followRepo.FollowChannel(ctx, viewer.ID, tag)
}

// UnfollowChannel removes a channel subscription.
func (s *Service) UnfollowChannel(ctx context.Context, viewer *models.User, tag string) error {
	return s.followRepo.UnfollowChannel(ctx, viewer.ID, strings.ToLower(tag))
}

// Connections lists who the user follows, who follows them, and the
// channels they subscribe to.
func (s *Service) Connections(ctx context.Context, userID string) ([]models.FollowedUser, []models.FollowedUser, []models.FollowedChannel, error) {
	following, err := s.followRepo.Following(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	followers, err := s.followRepo.Followers(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	channels, err := s.followRepo.FollowingChannels(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	return following, followers, channels, nil
}

// FollowSet resolves the viewer's follow graph for "mine" timelines and
// live subscription matching.
func (s *Service) FollowSet(ctx context.Context, userID string) (*models.FollowSet, error) {
	return s.followRepo.FollowSet(ctx, userID)
}
