// Package command parses one line of terminal input into a typed command.
// Parsing never executes anything; a malformed line yields an error naming
// the expected shape and no partial effect.
package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/itter-sh/itter/internal/common"
	"github.com/itter-sh/itter/internal/server/feed"
	"github.com/itter-sh/itter/internal/server/social"
)

type Kind int

const (
	KindEet Kind = iota
	KindTimeline
	KindWatch
	KindFollow
	KindUnfollow
	KindFollowList
	KindProfile
	KindProfileEdit
	KindSettings
	KindWhoami
	KindStats
	KindHelp
	KindClear
	KindExit
)

// Command is one parsed input line. Only the fields relevant to Kind are
// populated.
type Command struct {
	Kind    Kind
	Body    string      // KindEet
	Target  feed.Target // KindTimeline, KindWatch
	Cursor  string      // KindTimeline, optional page token
	User    string      // follow/unfollow/profile by user
	Channel string      // follow/unfollow by channel
	Name    *string     // KindProfileEdit
	Email   *string     // KindProfileEdit
	Size    int         // KindSettings
}

func parseErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, fmt.Sprintf(format, args...))
}

// Parse turns a raw input line into a Command. An empty line is a
// validation error so the session loop can simply reprompt.
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, parseErr("empty command")
	}

	verb, rest, _ := strings.Cut(line, " ")
	verb = strings.ToLower(verb)
	rest = strings.TrimSpace(rest)

	switch verb {
	case "eet", "e":
		if rest == "" {
			return nil, parseErr("usage: eet <message>")
		}
		if utf8.RuneCountInString(rest) > common.EetMaxLength {
			return nil, common.ErrEetTooLong
		}
		return &Command{Kind: KindEet, Body: rest}, nil

	case "timeline", "tl", "t":
		return parseTimeline(KindTimeline, rest)

	case "watch", "w":
		cmd, err := parseTimeline(KindWatch, rest)
		if err != nil {
			return nil, err
		}
		if cmd.Cursor != "" {
			return nil, parseErr("watch takes no page cursor")
		}
		return cmd, nil

	case "follow", "f":
		return parseFollow(KindFollow, rest)

	case "unfollow", "uf":
		if rest == "--list" {
			return nil, parseErr("usage: unfollow <@user | #channel>")
		}
		return parseFollow(KindUnfollow, rest)

	case "profile", "p":
		return parseProfile(rest)

	case "settings":
		return parseSettings(rest)

	case "whoami":
		if rest != "" {
			return nil, parseErr("whoami takes no arguments")
		}
		return &Command{Kind: KindWhoami}, nil

	case "stats":
		if rest != "" {
			return nil, parseErr("stats takes no arguments")
		}
		return &Command{Kind: KindStats}, nil

	case "help", "h":
		return &Command{Kind: KindHelp}, nil

	case "clear", "c":
		return &Command{Kind: KindClear}, nil

	case "exit", "x", "quit", "q":
		return &Command{Kind: KindExit}, nil
	}

	return nil, parseErr("unknown command %q, try 'help'", verb)
}

// parseTarget resolves a timeline target token. An empty token means the
// caller's personalized feed.
func parseTarget(tok string) (feed.Target, error) {
	switch strings.ToLower(tok) {
	case "", "#mine", "mine":
		return feed.Target{Kind: feed.TargetMine}, nil
	case "#all", "all":
		return feed.Target{Kind: feed.TargetAll}, nil
	}

	if name, ok := strings.CutPrefix(tok, "@"); ok {
		if !social.ValidUsername(name) {
			return feed.Target{}, parseErr("invalid username %q", name)
		}
		return feed.Target{Kind: feed.TargetUser, Value: name}, nil
	}
	if tag, ok := strings.CutPrefix(tok, "#"); ok {
		tag = strings.ToLower(tag)
		if !social.ValidChannel(tag) {
			return feed.Target{}, parseErr("invalid channel %q", tag)
		}
		return feed.Target{Kind: feed.TargetChannel, Value: tag}, nil
	}
	return feed.Target{}, parseErr("invalid target %q, expected #mine, #all, @user or #channel", tok)
}

func parseTimeline(kind Kind, rest string) (*Command, error) {
	fields := strings.Fields(rest)
	if len(fields) > 2 {
		return nil, parseErr("usage: timeline [#mine | #all | @user | #channel] [cursor]")
	}

	var targetTok, cursor string
	if len(fields) > 0 {
		targetTok = fields[0]
	}
	if len(fields) == 2 {
		cursor = fields[1]
	}

	target, err := parseTarget(targetTok)
	if err != nil {
		return nil, err
	}
	return &Command{Kind: kind, Target: target, Cursor: cursor}, nil
}

func parseFollow(kind Kind, rest string) (*Command, error) {
	if kind == KindFollow && rest == "--list" {
		return &Command{Kind: KindFollowList}, nil
	}
	if rest == "" || len(strings.Fields(rest)) != 1 {
		return nil, parseErr("usage: %s <@user | #channel>", verbFor(kind))
	}

	if tag, ok := strings.CutPrefix(rest, "#"); ok {
		tag = strings.ToLower(tag)
		if !social.ValidChannel(tag) {
			return nil, parseErr("invalid channel %q", tag)
		}
		return &Command{Kind: kind, Channel: tag}, nil
	}

	name := strings.TrimPrefix(rest, "@")
	if !social.ValidUsername(name) {
		return nil, parseErr("invalid username %q", name)
	}
	return &Command{Kind: kind, User: name}, nil
}

func verbFor(kind Kind) string {
	if kind == KindUnfollow {
		return "unfollow"
	}
	return "follow"
}

func parseProfile(rest string) (*Command, error) {
	if rest == "" {
		return &Command{Kind: KindProfile}, nil
	}

	field, value, _ := strings.Cut(rest, " ")
	value = strings.TrimSpace(value)

	switch strings.ToLower(field) {
	case "name", "-name":
		if len(value) > 50 {
			return nil, parseErr("display name too long (max 50)")
		}
		return &Command{Kind: KindProfileEdit, Name: &value}, nil
	case "email", "-email":
		if value != "" && !strings.Contains(value, "@") {
			return nil, parseErr("invalid email %q", value)
		}
		return &Command{Kind: KindProfileEdit, Email: &value}, nil
	}

	if value != "" {
		return nil, parseErr("usage: profile [@user | name <value> | email <value>]")
	}
	name := strings.TrimPrefix(field, "@")
	if !social.ValidUsername(name) {
		return nil, parseErr("invalid username %q", name)
	}
	return &Command{Kind: KindProfile, User: name}, nil
}

func parseSettings(rest string) (*Command, error) {
	field, value, _ := strings.Cut(rest, " ")
	if strings.ToLower(field) != "pagesize" {
		return nil, parseErr("usage: settings pagesize <1-%d>", common.MaxTimelinePageSize)
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < common.MinTimelinePageSize || n > common.MaxTimelinePageSize {
		return nil, parseErr("page size must be %d-%d", common.MinTimelinePageSize, common.MaxTimelinePageSize)
	}
	return &Command{Kind: KindSettings, Size: n}, nil
}
