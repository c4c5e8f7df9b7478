package model

import "time"

// DailyBriefing is the once-per-calendar-date briefing document built from
// the day's top clusters. It is created at most once per date and never
// mutated afterward.
type DailyBriefing struct {
	ID        int64
	Date      time.Time // normalized to midnight UTC
	Content   string
	CreatedAt time.Time

	ClusterIDs []int64
}

// BriefingResult reports the outcome of a briefing-compiler invocation.
type BriefingResult struct {
	BriefingID   int64
	ClusterCount int
	Created      bool
}

// BriefingDate normalizes t to midnight UTC, the key used for briefing
// uniqueness.
func BriefingDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
