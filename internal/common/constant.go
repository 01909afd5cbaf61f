package common

const (
	// EetMaxLength is the hard cap on eet bodies, in characters. Longer
	// input is rejected, never truncated.
	EetMaxLength = 180

	// Timeline page size bounds for the per-session "settings pagesize" knob.
	MinTimelinePageSize     = 1
	MaxTimelinePageSize     = 30
	DefaultTimelinePageSize = 10
)
