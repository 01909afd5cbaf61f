package timex

import (
	"fmt"
	"time"
)

// TimeAgo formats t relative to now in the compact style timelines use:
// "just now", "42s ago", "5m ago", "3h ago", "2d ago", "1w ago",
// "4mo ago", "2y ago".
func TimeAgo(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "some time ago"
	}
	diff := now.Sub(t)
	seconds := int(diff.Seconds())
	switch {
	case seconds < 10:
		return "just now"
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}
	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd ago", days)
	}
	if weeks := days / 7; weeks < 5 {
		return fmt.Sprintf("%dw ago", weeks)
	}
	if months := days / 30; months < 12 {
		return fmt.Sprintf("%dmo ago", months)
	}
	return fmt.Sprintf("%dy ago", days/365)
}
