package models

import "time"

// FollowedUser is one row of the "follow --list" output.
type FollowedUser struct {
	Username    string
	DisplayName string
	Since       time.Time
}

// FollowedChannel is a channel the user follows; its eets join the user's
// "mine" timeline.
type FollowedChannel struct {
	Tag   string
	Since time.Time
}

// FollowSet is the resolved following state for one user, used both by the
// "mine" timeline query and by live subscription matching.
type FollowSet struct {
	UserIDs  map[string]struct{}
	Channels map[string]struct{}
}

// MatchesEet reports whether an eet belongs in the "mine" feed of the set's
// owner: authored by the owner themselves, by a followed user, or tagged
// with a followed channel.
func (f *FollowSet) MatchesEet(ownerID string, e *Eet) bool {
	if e.AuthorID == ownerID {
		return true
	}
	if _, ok := f.UserIDs[e.AuthorID]; ok {
		return true
	}
	for _, tag := range e.Tags {
		if _, ok := f.Channels[tag]; ok {
			return true
		}
	}
	return false
}
