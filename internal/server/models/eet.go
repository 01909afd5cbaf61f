package models

import "time"

// Eet is a single posted message. Immutable once created. Seq is the
// server-assigned sequence id; it increases strictly in creation order and
// is the only ordering key for both pagination and live delivery.
type Eet struct {
	ID        string
	Seq       int64
	AuthorID  string
	Author    string // username, joined in for display
	Body      string
	Tags      []string
	Mentions  []string
	HashedIP  string
	CreatedAt time.Time
}

// HasTag reports whether the eet carries the given channel tag.
func (e *Eet) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
