// Package window computes the time range shown by a view and selects the
// events that fall into it.
package window

import (
	"time"

	"calgrid/internal/model"
)

// Range is the half-open interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days returns the calendar dates covered by the range.
func (r Range) Days() []model.Date {
	var out []model.Date
	first := model.DateOf(r.Start)
	for d := first; d.Midnight(r.Start.Location()).Before(r.End); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// WeekStart returns the Monday of the week containing d. A Sunday belongs
// to the week that started six days earlier.
func WeekStart(d model.Date) model.Date {
	return d.AddDays(1 - d.ISOWeekday())
}

// For returns the display range for the reference date and view mode, with
// midnights taken in loc. Unknown modes fall back to the day range.
func For(ref model.Date, mode model.ViewMode, loc *time.Location) Range {
	switch mode {
	case model.ViewWeek:
		monday := WeekStart(ref)
		return Range{Start: monday.Midnight(loc), End: monday.AddDays(7).Midnight(loc)}
	case model.ViewMonth:
		first := model.NewDate(ref.Year, ref.Month, 1)
		return Range{Start: first.Midnight(loc), End: first.AddMonths(1).Midnight(loc)}
	default:
		return Range{Start: ref.Midnight(loc), End: ref.AddDays(1).Midnight(loc)}
	}
}

// Filter keeps valid events whose start lies in r, preserving order. Events
// that start before r are dropped even when they end inside it.
func Filter(events []model.Event, r Range) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		if r.Contains(ev.Start) {
			out = append(out, ev)
		}
	}
	return out
}

// SplitDays buckets events by the calendar date of their start, in the
// location of r. Every day of r gets an entry, possibly empty.
func SplitDays(events []model.Event, r Range) map[model.Date][]model.Event {
	loc := r.Start.Location()
	out := make(map[model.Date][]model.Event)
	for _, d := range r.Days() {
		out[d] = nil
	}
	for _, ev := range Filter(events, r) {
		d := model.DateOf(ev.Start.In(loc))
		out[d] = append(out[d], ev)
	}
	return out
}
