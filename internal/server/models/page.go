package models

// TimelinePage is one page of a timeline, newest first. NextCursor is the
// opaque token for the following page; empty means end of data.
type TimelinePage struct {
	Eets       []Eet
	NextCursor string
}

// NewestSeq returns the highest sequence id on the page, or 0 for an empty
// page. Watch mode uses it to anchor live delivery at the page boundary.
func (p *TimelinePage) NewestSeq() int64 {
	if len(p.Eets) == 0 {
		return 0
	}
	return p.Eets[0].Seq
}
