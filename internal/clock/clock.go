package clock

import "time"

// Stamp is a point in time captured once at the top of a tick. Both log
// formatting and prompt building use the same stamp so the two views of a
// tick never disagree.
type Stamp struct {
	t time.Time
}

// Now captures the current wall-clock time.
func Now() Stamp { return Stamp{t: time.Now()} }

// At wraps an explicit time, mainly for tests.
func At(t time.Time) Stamp { return Stamp{t: t} }

// Sortable returns a machine-sortable timestamp for log lines,
// e.g. "2025-03-04 23:30:00".
func (s Stamp) Sortable() string { return s.t.Format("2006-01-02 15:04:05") }

// Human returns a verbose phrase for prompts,
// e.g. "Tuesday, March 4, 2025 at 11:30 PM". The hour is not zero-padded.
func (s Stamp) Human() string { return s.t.Format("Monday, January 2, 2006 at 3:04 PM") }

// Time returns the underlying time value.
func (s Stamp) Time() time.Time { return s.t }
