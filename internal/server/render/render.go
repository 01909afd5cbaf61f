// Package render turns domain entities into terminal text frames. Static
// views render a whole page; watch mode gets one incremental frame per
// delivered eet, never a full repaint.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/itter-sh/itter/internal/server/feed"
	"github.com/itter-sh/itter/internal/server/hub"
	"github.com/itter-sh/itter/internal/server/models"
	"github.com/itter-sh/itter/internal/timex"
)

var (
	tagRe     = regexp.MustCompile(`#[0-9A-Za-z_][0-9A-Za-z_-]*`)
	mentionRe = regexp.MustCompile(`@[0-9A-Za-z_]{3,20}`)
)

type Renderer struct {
	author   lipgloss.Style
	display  lipgloss.Style
	faint    lipgloss.Style
	tag      lipgloss.Style
	mention  lipgloss.Style
	notice   lipgloss.Style
	errStyle lipgloss.Style
	header   lipgloss.Style
	prompt   lipgloss.Style

	now func() time.Time
}

func New() *Renderer {
	return &Renderer{
		author:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		display:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		faint:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		tag:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		mention:  lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
		notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		errStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Underline(true),
		prompt:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		now:      time.Now,
	}
}

// Prompt is the interactive input prompt.
func (r *Renderer) Prompt(username string) string {
	return r.prompt.Render(fmt.Sprintf("(%s)itter> ", username))
}

// Banner is printed once after login.
func (r *Renderer) Banner(username string) string {
	var b strings.Builder
	b.WriteString(r.header.Render("itter.sh") + " " + r.faint.Render("~ micro-blogging for your terminal") + "\n")
	b.WriteString(fmt.Sprintf("Welcome back, %s. Type %s to get started.\n",
		r.author.Render("@"+username), r.notice.Render("help")))
	return b.String()
}

// RegisterSuccess is printed once after a register:<name> enrollment.
func (r *Renderer) RegisterSuccess(username, fingerprint string) string {
	return fmt.Sprintf("Account %s created for key %s.\nReconnect as %s to start eeting: ssh %s@<host>\n",
		r.author.Render("@"+username), r.faint.Render(fingerprint), username, username)
}

// Eet renders one post as a two-line block.
func (r *Renderer) Eet(e *models.Eet) string {
	head := r.author.Render("@" + e.Author)
	head += " " + r.faint.Render("· "+timex.TimeAgo(e.CreatedAt, r.now()))

	// Style.Render is variadic, ReplaceAllStringFunc wants func(string) string.
	body := tagRe.ReplaceAllStringFunc(e.Body, func(s string) string { return r.tag.Render(s) })
	body = mentionRe.ReplaceAllStringFunc(body, func(s string) string { return r.mention.Render(s) })
	return head + "\n  " + body + "\n"
}

// TimelinePage renders a static page plus the next-page hint when more
// data exists.
func (r *Renderer) TimelinePage(target feed.Target, page *models.TimelinePage) string {
	var b strings.Builder
	b.WriteString(r.header.Render("timeline "+target.String()) + "\n")
	if len(page.Eets) == 0 {
		b.WriteString(r.faint.Render("nothing here yet") + "\n")
		return b.String()
	}
	for i := range page.Eets {
		b.WriteString(r.Eet(&page.Eets[i]))
	}
	if page.NextCursor != "" {
		b.WriteString(r.faint.Render(fmt.Sprintf("more: timeline %s %s", target.String(), page.NextCursor)) + "\n")
	} else {
		b.WriteString(r.faint.Render("end of timeline") + "\n")
	}
	return b.String()
}

// WatchHeader announces entry into watch mode.
func (r *Renderer) WatchHeader(target feed.Target) string {
	return r.notice.Render(fmt.Sprintf("watching %s, Ctrl+C to stop", target.String())) + "\n"
}

// WatchExit restores the non-live context after watch mode ends.
func (r *Renderer) WatchExit() string {
	return r.faint.Render("left watch mode") + "\n"
}

// Delivery renders one live update. A non-zero gap prepends the missed
// notice so the reader knows the stream skipped.
func (r *Renderer) Delivery(d hub.Delivery) string {
	var b strings.Builder
	if d.Missed > 0 {
		b.WriteString(r.notice.Render(fmt.Sprintf("missed %d updates, refresh timeline", d.Missed)) + "\n")
	}
	b.WriteString(r.Eet(d.Eet))
	return b.String()
}

// Profile renders a user's profile card.
func (r *Renderer) Profile(p *models.ProfileStats) string {
	var b strings.Builder
	b.WriteString(r.header.Render("@"+p.Username) + "\n")
	if p.DisplayName != "" {
		b.WriteString("  name:      " + r.display.Render(p.DisplayName) + "\n")
	}
	if p.Email != "" {
		b.WriteString("  email:     " + r.display.Render(p.Email) + "\n")
	}
	b.WriteString("  joined:    " + r.faint.Render(timex.TimeAgo(p.JoinedAt, r.now())) + "\n")
	b.WriteString(fmt.Sprintf("  eets:      %d\n", p.EetCount))
	b.WriteString(fmt.Sprintf("  following: %d\n", p.FollowingCount))
	b.WriteString(fmt.Sprintf("  followers: %d\n", p.FollowerCount))
	return b.String()
}

// Whoami renders the session's own identity line.
func (r *Renderer) Whoami(u *models.User) string {
	return fmt.Sprintf("%s key %s\n", r.author.Render("@"+u.Username), r.faint.Render(u.Fingerprint))
}

// Connections renders the follow --list view.
func (r *Renderer) Connections(following, followers []models.FollowedUser, channels []models.FollowedChannel) string {
	var b strings.Builder
	now := r.now()

	b.WriteString(r.header.Render(fmt.Sprintf("following (%d)", len(following))) + "\n")
	for _, f := range following {
		b.WriteString("  " + r.author.Render("@"+f.Username) + " " + r.faint.Render("· since "+timex.TimeAgo(f.Since, now)) + "\n")
	}
	b.WriteString(r.header.Render(fmt.Sprintf("channels (%d)", len(channels))) + "\n")
	for _, c := range channels {
		b.WriteString("  " + r.tag.Render("#"+c.Tag) + " " + r.faint.Render("· since "+timex.TimeAgo(c.Since, now)) + "\n")
	}
	b.WriteString(r.header.Render(fmt.Sprintf("followers (%d)", len(followers))) + "\n")
	for _, f := range followers {
		b.WriteString("  " + r.author.Render("@"+f.Username) + "\n")
	}
	return b.String()
}

// Notice renders an informational one-liner.
func (r *Renderer) Notice(msg string) string {
	return r.notice.Render(msg) + "\n"
}

// Error renders a user-facing error line.
func (r *Renderer) Error(msg string) string {
	return r.errStyle.Render("! "+msg) + "\n"
}

// Clear wipes the screen and homes the cursor.
func (r *Renderer) Clear() string {
	return "\x1b[2J\x1b[H"
}

// Help lists the command surface.
func (r *Renderer) Help() string {
	rows := [][2]string{
		{"eet <message>", "post (max 180 chars), #tags and @mentions work"},
		{"timeline [target] [cursor]", "read a page; target: #mine #all @user #channel"},
		{"watch [target]", "live timeline, Ctrl+C to stop"},
		{"follow <@user | #channel>", "add to your #mine feed"},
		{"unfollow <@user | #channel>", "remove again"},
		{"follow --list", "who you follow, your channels, your followers"},
		{"profile [@user]", "view a profile"},
		{"profile name|email <value>", "edit your profile"},
		{"settings pagesize <n>", "eets per page (1-30)"},
		{"whoami / stats", "your identity / your numbers"},
		{"help, clear, exit", "this text / wipe screen / disconnect"},
	}
	var b strings.Builder
	b.WriteString(r.header.Render("commands") + "\n")
	for _, row := range rows {
		// pad before styling, the escape codes would break %-28s
		b.WriteString("  " + r.notice.Render(fmt.Sprintf("%-28s", row[0])) + " " + r.faint.Render(row[1]) + "\n")
	}
	return b.String()
}
