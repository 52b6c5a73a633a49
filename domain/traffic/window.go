// Package traffic provides the value types of the traffic telemetry engine
// (windows, summaries, host usage, daily records) and the pure functions
// that decode and combine them. All functions are pure - no side effects.
package traffic

import "time"

// DateLayout is the yyyy-MM-dd layout used by the remote API and by
// synthetic daily records.
const DateLayout = "2006-01-02"

// Label names one reporting window.
type Label int

const (
	Today Label = iota
	ThisMonth
	Last31Days
	Last7Days

	labelCount
)

// Labels lists every window label in display order.
func Labels() []Label {
	return []Label{Today, ThisMonth, Last31Days, Last7Days}
}

// String returns the machine name of the label.
func (l Label) String() string {
	switch l {
	case Today:
		return "today"
	case ThisMonth:
		return "this_month"
	case Last31Days:
		return "last_31_days"
	case Last7Days:
		return "last_7_days"
	default:
		return "unknown"
	}
}

// Title returns the human name of the label.
func (l Label) Title() string {
	switch l {
	case Today:
		return "Today"
	case ThisMonth:
		return "This month"
	case Last31Days:
		return "Last 31 days"
	case Last7Days:
		return "Last 7 days"
	default:
		return "Unknown"
	}
}

func (l Label) valid() bool {
	return l >= 0 && l < labelCount
}

// Window is one reporting period (immutable value type).
type Window struct {
	Label Label
	Start time.Time
	End   time.Time
}

// StartDate returns the window start as yyyy-MM-dd.
func (w Window) StartDate() string {
	return w.Start.Format(DateLayout)
}

// EndDate returns the window end as yyyy-MM-dd.
func (w Window) EndDate() string {
	return w.End.Format(DateLayout)
}

// Contains reports whether t falls inside [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Windows returns the four reporting windows ending at now.
// This is a PURE function.
func Windows(now time.Time) []Window {
	labels := Labels()
	windows := make([]Window, len(labels))
	for i, l := range labels {
		windows[i] = WindowFor(l, now)
	}
	return windows
}

// WindowFor returns the window for a single label ending at now.
// This is a PURE function.
func WindowFor(l Label, now time.Time) Window {
	w := Window{Label: l, End: now}
	switch l {
	case Today:
		w.Start = StartOfDay(now)
	case ThisMonth:
		w.Start = StartOfMonth(now)
	case Last31Days:
		w.Start = now.AddDate(0, 0, -31)
	case Last7Days:
		w.Start = now.AddDate(0, 0, -7)
	default:
		w.Start = now
	}
	return w
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns midnight of the first day of t's month in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
