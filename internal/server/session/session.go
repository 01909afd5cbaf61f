// Package session owns the per-connection command loop. Each authenticated
// channel gets one session that lives until the peer disconnects or exits;
// teardown always releases the live subscription, if any, exactly once.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itter-sh/itter/internal/common"
	"github.com/itter-sh/itter/internal/logging"
	"github.com/itter-sh/itter/internal/server/command"
	"github.com/itter-sh/itter/internal/server/feed"
	"github.com/itter-sh/itter/internal/server/hub"
	"github.com/itter-sh/itter/internal/server/models"
	"github.com/itter-sh/itter/internal/server/render"
	"github.com/itter-sh/itter/internal/server/social"
)

// Conn is the established bidirectional channel the transport hands over.
// Lines carries complete input lines and is closed when the transport
// closes; Interrupts carries Ctrl+C presses.
type Conn interface {
	Lines() <-chan string
	Interrupts() <-chan struct{}
	Write(s string) error
	RemoteIP() string
	Close() error
}

// teardownTimeout bounds how long a closing session may spend
// unregistering from the hub.
const teardownTimeout = 2 * time.Second

type Manager struct {
	feed     *feed.Service
	social   *social.Service
	hub      *hub.Hub
	renderer *render.Renderer
	logger   logging.Logger
}

func NewManager(feedSvc *feed.Service, socialSvc *social.Service, h *hub.Hub, renderer *render.Renderer, logger logging.Logger) *Manager {
	return &Manager{
		feed:     feedSvc,
		social:   socialSvc,
		hub:      h,
		renderer: renderer,
		logger:   logger.With("module", "session"),
	}
}

type session struct {
	m    *Manager
	id   string
	user *models.User
	conn Conn

	pageSize int
	sub      *hub.Subscription

	closeOnce sync.Once
	logger    logging.Logger
}

// Open runs the session loop until the connection closes, the user exits,
// or ctx is cancelled. It always returns with the connection closed and
// any subscription released.
func (m *Manager) Open(ctx context.Context, conn Conn, user *models.User) {
	s := &session{
		m:        m,
		id:       uuid.NewString(),
		user:     user,
		conn:     conn,
		pageSize: common.DefaultTimelinePageSize,
	}
	s.logger = m.logger.With("session", s.id, "user", user.Username)
	defer s.teardown(ctx)

	s.logger.Info(ctx, "session opened", "remote_ip", conn.RemoteIP())
	s.write(m.renderer.Banner(user.Username))
	s.write(m.renderer.Prompt(user.Username))

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Interrupts():
			s.write("\n" + m.renderer.Prompt(user.Username))
		case line, ok := <-conn.Lines():
			if !ok {
				s.logger.Info(ctx, "transport closed")
				return
			}
			if strings.TrimSpace(line) == "" {
				s.write(m.renderer.Prompt(user.Username))
				continue
			}
			if quit := s.dispatch(ctx, line); quit {
				return
			}
			s.write(m.renderer.Prompt(user.Username))
		}
	}
}

// teardown is idempotent: a cancelled context racing a clean exit must not
// unregister or close twice.
func (s *session) teardown(ctx context.Context) {
	s.closeOnce.Do(func() {
		tctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		s.unsubscribe(tctx)
		_ = s.conn.Close()
		s.logger.Info(ctx, "session closed")
	})
}

func (s *session) unsubscribe(ctx context.Context) {
	if s.sub == nil {
		return
	}
	s.m.hub.Unsubscribe(ctx, s.sub)
	s.sub = nil
}

func (s *session) write(frame string) {
	if err := s.conn.Write(frame); err != nil {
		s.logger.Warn(context.Background(), "write failed", "error", err)
	}
}

// dispatch executes one parsed command. The returned bool is true when the
// session should end.
func (s *session) dispatch(ctx context.Context, line string) bool {
	cmd, err := command.Parse(line)
	if err != nil {
		s.write(s.m.renderer.Error(userMessage(err)))
		return false
	}
	s.logger.Debug(ctx, "command accepted", "kind", int(cmd.Kind))

	switch cmd.Kind {
	case command.KindExit:
		s.write(s.m.renderer.Notice("bye"))
		return true
	case command.KindClear:
		s.write(s.m.renderer.Clear())
		return false
	case command.KindHelp:
		s.write(s.m.renderer.Help())
		return false
	case command.KindWatch:
		if err := s.watch(ctx, cmd.Target); err != nil {
			if errors.Is(err, common.ErrTransportClosed) {
				return true
			}
			s.write(s.m.renderer.Error(userMessage(err)))
		}
		return false
	}

	if err := s.execute(ctx, cmd); err != nil {
		s.write(s.m.renderer.Error(userMessage(err)))
	}
	return false
}

func (s *session) execute(ctx context.Context, cmd *command.Command) error {
	r := s.m.renderer
	switch cmd.Kind {
	case command.KindEet:
		eet, err := s.m.feed.Post(ctx, s.user, cmd.Body, s.conn.RemoteIP())
		if err != nil {
			return err
		}
		s.write(r.Notice("eeted!"))
		s.write(r.Eet(eet))

	case command.KindTimeline:
		page, err := s.m.feed.Page(ctx, s.user, cmd.Target, cmd.Cursor, s.pageSize)
		if err != nil {
			return err
		}
		s.write(r.TimelinePage(cmd.Target, page))

	case command.KindFollow:
		if cmd.Channel != "" {
			if err := s.m.social.FollowChannel(ctx, s.user, cmd.Channel); err != nil {
				return err
			}
			s.write(r.Notice("following #" + cmd.Channel))
		} else {
			if err := s.m.social.FollowUser(ctx, s.user, cmd.User); err != nil {
				return err
			}
			s.write(r.Notice("following @" + cmd.User))
		}

	case command.KindUnfollow:
		if cmd.Channel != "" {
			if err := s.m.social.UnfollowChannel(ctx, s.user, cmd.Channel); err != nil {
				return err
			}
			s.write(r.Notice("unfollowed #" + cmd.Channel))
		} else {
			if err := s.m.social.UnfollowUser(ctx, s.user, cmd.User); err != nil {
				return err
			}
			s.write(r.Notice("unfollowed @" + cmd.User))
		}

	case command.KindFollowList:
		following, followers, channels, err := s.m.social.Connections(ctx, s.user.ID)
		if err != nil {
			return err
		}
		s.write(r.Connections(following, followers, channels))

	case command.KindProfile:
		name := cmd.User
		if name == "" {
			name = s.user.Username
		}
		p, err := s.m.social.Profile(ctx, name)
		if err != nil {
			return err
		}
		s.write(r.Profile(p))

	case command.KindProfileEdit:
		if err := s.m.social.EditProfile(ctx, s.user.ID, cmd.Name, cmd.Email); err != nil {
			return err
		}
		s.write(r.Notice("profile updated"))

	case command.KindSettings:
		s.pageSize = cmd.Size
		s.write(r.Notice("page size set"))

	case command.KindWhoami:
		s.write(r.Whoami(s.user))

	case command.KindStats:
		p, err := s.m.social.Profile(ctx, s.user.Username)
		if err != nil {
			return err
		}
		s.write(r.Profile(p))
	}
	return nil
}

// watch subscribes, renders the current static page, then blocks draining
// live deliveries until the user interrupts, types exit, or disconnects.
// Subscribing before the page fetch means a post created while the page is
// being read still fans out here; deliveries the page already covers are
// dropped against its newest sequence id, so nothing at the boundary is
// duplicated or skipped.
func (s *session) watch(ctx context.Context, target feed.Target) error {
	r := s.m.renderer

	var follows *models.FollowSet
	if target.Kind == feed.TargetMine {
		var err error
		follows, err = s.m.social.FollowSet(ctx, s.user.ID)
		if err != nil {
			return err
		}
	}

	sub, err := s.m.hub.Subscribe(ctx, topicFor(target), s.user.ID, follows)
	if err != nil {
		return err
	}
	s.sub = sub
	defer func() {
		uctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		s.unsubscribe(uctx)
	}()

	page, err := s.m.feed.Page(ctx, s.user, target, "", s.pageSize)
	if err != nil {
		return err
	}
	s.write(r.TimelinePage(target, page))
	boundary := page.NewestSeq()

	s.write(r.WatchHeader(target))
	dropped := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.conn.Interrupts():
			s.write(r.WatchExit())
			return nil
		case line, ok := <-s.conn.Lines():
			if !ok {
				return common.ErrTransportClosed
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "", "exit", "x", "quit", "q":
				s.write(r.WatchExit())
				return nil
			default:
				s.write(r.Notice("watching, press Ctrl+C or Enter to stop"))
			}
		case d, ok := <-sub.Deliveries():
			if !ok {
				// hub shut down
				s.write(r.WatchExit())
				return nil
			}
			if d.Eet.Seq <= boundary {
				// already on the static page; keep any gap it carried
				dropped += d.Missed
				continue
			}
			d.Missed += dropped
			dropped = 0
			s.write(r.Delivery(d))
		}
	}
}

func topicFor(t feed.Target) hub.Topic {
	switch t.Kind {
	case feed.TargetAll:
		return hub.Topic{Kind: hub.TopicAll}
	case feed.TargetUser:
		return hub.Topic{Kind: hub.TopicUser, Value: t.Value}
	case feed.TargetChannel:
		return hub.Topic{Kind: hub.TopicChannel, Value: t.Value}
	default:
		return hub.Topic{Kind: hub.TopicMine}
	}
}

// userMessage maps an error to the line shown in the terminal. Unknown
// errors read as a transient store problem; the session stays open either
// way.
func userMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrEetTooLong):
		return "eet too long (max 180 characters)"
	case errors.Is(err, common.ErrSelfFollow):
		return "you cannot follow yourself"
	case errors.Is(err, common.ErrNotFollowing):
		return "you are not following that"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "already following"
	case errors.Is(err, common.ErrUsernameTaken):
		return "that username is taken"
	case errors.Is(err, common.ErrorNotFound):
		return "no such user or channel"
	case errors.Is(err, common.ErrValidation):
		return strings.TrimPrefix(err.Error(), common.ErrValidation.Error()+": ")
	default:
		return "temporary problem talking to the store, try again"
	}
}
