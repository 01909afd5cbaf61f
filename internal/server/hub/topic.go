package hub

import (
	"strings"

	"github.com/itter-sh/itter/internal/server/models"
)

// TopicKind selects the matching rule for a subscription.
type TopicKind int

const (
	// TopicAll receives every eet.
	TopicAll TopicKind = iota
	// TopicUser receives eets authored by one user.
	TopicUser
	// TopicChannel receives eets tagged with one channel.
	TopicChannel
	// TopicMine receives the subscriber's personalized feed: own eets plus
	// those of followed users and channels.
	TopicMine
)

// Topic is the fan-out key derived from a timeline target.
type Topic struct {
	Kind  TopicKind
	Value string // username for TopicUser, tag for TopicChannel
}

func (t Topic) String() string {
	switch t.Kind {
	case TopicUser:
		return "@" + t.Value
	case TopicChannel:
		return "#" + t.Value
	case TopicMine:
		return "mine"
	default:
		return "all"
	}
}

// matches reports whether an eet belongs to a subscription. ownerID and
// follows are the subscriber's identity and resolved follow set, used only
// by TopicMine.
func (t Topic) matches(e *models.Eet, ownerID string, follows *models.FollowSet) bool {
	switch t.Kind {
	case TopicAll:
		return true
	case TopicUser:
		return strings.EqualFold(e.Author, t.Value)
	case TopicChannel:
		return e.HasTag(t.Value)
	case TopicMine:
		if follows == nil {
			return e.AuthorID == ownerID
		}
		return follows.MatchesEet(ownerID, e)
	default:
		return false
	}
}
