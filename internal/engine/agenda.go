package engine

import (
	"sort"

	"calgrid/internal/model"
)

// FilterActiveLayers keeps the records whose layer is in active. Layer
// visibility is caller state; Compute never filters by layer itself.
func FilterActiveLayers(events []model.RawEvent, active map[string]bool) []model.RawEvent {
	out := make([]model.RawEvent, 0, len(events))
	for _, ev := range events {
		if active[ev.LayerID] {
			out = append(out, ev)
		}
	}
	return out
}

// AllLayersActive returns an active set containing every layer in m.
func AllLayersActive(m model.LayerMap) map[string]bool {
	out := make(map[string]bool, len(m))
	for id := range m {
		out[id] = true
	}
	return out
}

// AgendaDay is one day of the list view.
type AgendaDay struct {
	Date   model.Date    `json:"date"`
	Events []model.Event `json:"events"`
}

// Agenda groups valid events by the calendar date of their start. Days are
// ascending and events within a day are ordered by start, ties keeping
// input order.
func Agenda(events []model.Event) []AgendaDay {
	byDay := make(map[model.Date][]model.Event)
	var days []model.Date
	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		d := model.DateOf(ev.Start)
		if _, ok := byDay[d]; !ok {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], ev)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]AgendaDay, 0, len(days))
	for _, d := range days {
		evs := byDay[d]
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].Start.Before(evs[j].Start) })
		out = append(out, AgendaDay{Date: d, Events: evs})
	}
	return out
}
