package engine

import (
	"math"
	"time"
)

// dateFormat is the canonical local-date key used in persisted state
// and backend submissions.
const dateFormat = "2006-01-02"

// DayKey formats t as its local calendar date.
func DayKey(t time.Time) string {
	return t.Format(dateFormat)
}

// startOfDay returns local midnight of t's calendar day.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayWindow returns the reconciliation window [start, end) for the
// given day. For today the window ends "now" (the day is still
// accruing); for historical days it ends at the last second of the
// day, so a re-finalized yesterday covers the full day.
func dayWindow(day, now time.Time) (start, end time.Time) {
	start = startOfDay(day)

	if sameLocalDay(day, now) {
		return start, now
	}

	// End at the next local midnight, not start+24h: a DST-transition
	// day is 23 or 25 hours long, and a fixed span would spill into
	// (or stop short of) the neighboring day.
	return start, startOfDay(start.AddDate(0, 0, 1)).Add(-time.Second)
}

// sameLocalDay reports whether a and b fall on the same calendar day
// in a's location.
func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()

	return ay == by && am == bm && ad == bd
}

// localDaysBetween returns the number of whole calendar days between
// from and to, measured on local midnight boundaries rather than
// 24-hour spans. A sync at 23:50 followed by one at 00:10 counts as
// one elapsed day even though only 20 minutes passed.
func localDaysBetween(from, to time.Time) int {
	a := startOfDay(from)
	b := startOfDay(to.In(from.Location()))

	// Round rather than truncate: a DST transition makes one of the
	// spanned days 23 or 25 hours long.
	return int(math.Round(b.Sub(a).Hours() / 24))
}
