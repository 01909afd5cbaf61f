// Package feed assembles timeline pages and accepts new eets. It owns the
// pagination cursor format and the hashtag/mention extraction applied
// before a post is stored.
package feed

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/itter-sh/itter/internal/common"
	"github.com/itter-sh/itter/internal/cryptox"
	"github.com/itter-sh/itter/internal/logging"
	"github.com/itter-sh/itter/internal/server/event"
	"github.com/itter-sh/itter/internal/server/models"
	"github.com/itter-sh/itter/internal/server/repositories/eets"
	"github.com/itter-sh/itter/internal/server/repositories/users"
)

// TargetKind selects which timeline a request addresses.
type TargetKind int

const (
	// TargetMine is the caller's personalized feed.
	TargetMine TargetKind = iota
	// TargetAll is the global firehose.
	TargetAll
	// TargetUser is a single author's eets.
	TargetUser
	// TargetChannel is eets tagged with one channel.
	TargetChannel
)

// Target is a parsed timeline target: #mine, #all, @user or #channel.
type Target struct {
	Kind  TargetKind
	Value string
}

func (t Target) String() string {
	switch t.Kind {
	case TargetUser:
		return "@" + t.Value
	case TargetChannel:
		return "#" + t.Value
	case TargetMine:
		return "#mine"
	default:
		return "#all"
	}
}

type Service struct {
	eetRepo  eets.Repository
	userRepo users.Repository
	bus      event.Bus
	ipSalt   string
	logger   logging.Logger
}

func NewService(eetRepo eets.Repository, userRepo users.Repository, bus event.Bus, ipSalt string, logger logging.Logger) *Service {
	return &Service{
		eetRepo:  eetRepo,
		userRepo: userRepo,
		bus:      bus,
		ipSalt:   ipSalt,
		logger:   logger.With("module", "feed"),
	}
}

// Post validates and stores a new eet, then announces it on the bus.
// Oversized bodies are rejected, never truncated. Mentions of unknown
// users are dropped silently, matching the original behavior.
func (s *Service) Post(ctx context.Context, author *models.User, body string, clientIP string) (*models.Eet, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty eet", common.ErrValidation)
	}
	if utf8.RuneCountInString(body) > common.EetMaxLength {
		return nil, common.ErrEetTooLong
	}

	var mentions []string
	for _, m := range ExtractMentions(body) {
		if _, err := s.userRepo.GetByUsername(ctx, m); err == nil {
			mentions = append(mentions, m)
		}
	}

	eet := &models.Eet{
		AuthorID: author.ID,
		Author:   author.Username,
		Body:     body,
		Tags:     ExtractTags(body),
		Mentions: mentions,
		HashedIP: cryptox.HashIP(s.ipSalt, clientIP),
	}

	eet, err := s.eetRepo.Create(ctx, eet)
	if err != nil {
		return nil, err
	}

	if err := s.bus.Publish(ctx, event.TopicEets, eet); err != nil {
		// The eet is durable; only liveness suffered. Watchers recover on
		// their next refresh.
		s.logger.Warn(ctx, "publish failed after insert", "seq", eet.Seq, "error", err)
	}

	return eet, nil
}

// Page resolves one timeline page. The cursor is either "" (start at the
// newest eet) or a token from a previous page. The returned page's
// NextCursor is "" once the timeline is exhausted.
func (s *Service) Page(ctx context.Context, viewer *models.User, target Target, cursorToken string, size int) (*models.TimelinePage, error) {
	beforeSeq, err := decodeCursor(cursorToken)
	if err != nil {
		return nil, err
	}
	if size < common.MinTimelinePageSize || size > common.MaxTimelinePageSize {
		size = common.DefaultTimelinePageSize
	}

	var items []models.Eet
	switch target.Kind {
	case TargetAll:
		items, err = s.eetRepo.ListAll(ctx, beforeSeq, size)
	case TargetMine:
		items, err = s.eetRepo.ListMine(ctx, viewer.ID, beforeSeq, size)
	case TargetUser:
		if _, err := s.userRepo.GetByUsername(ctx, target.Value); err != nil {
			return nil, err
		}
		items, err = s.eetRepo.ListByAuthor(ctx, target.Value, beforeSeq, size)
	case TargetChannel:
		items, err = s.eetRepo.ListByChannel(ctx, target.Value, beforeSeq, size)
	default:
		return nil, fmt.Errorf("%w: unknown timeline target", common.ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	page := &models.TimelinePage{Eets: items}
	if len(items) == size {
		page.NextCursor = encodeCursor(items[len(items)-1].Seq)
	}
	return page, nil
}
