// Package month builds the coarse month grid: one cell per day with a
// bounded number of event dots and an overflow count.
package month

import (
	"time"

	"calgrid/internal/model"
)

// DefaultMaxDots is the number of dots shown per day before overflowing.
const DefaultMaxDots = 4

// EventRef is the minimal reference a month cell keeps per event.
type EventRef struct {
	ID      model.EventID `json:"id"`
	LayerID string        `json:"layerId"`
	Kind    string        `json:"kind,omitempty"`
	Title   string        `json:"title,omitempty"`
	// Color is filled in by callers that know the layer map.
	Color string `json:"color,omitempty"`
}

// DayCell summarizes one calendar day.
type DayCell struct {
	Date model.Date `json:"date"`
	// LeadingEmpty is the number of blank cells before this one in the
	// first row. It is only non-zero for day 1.
	LeadingEmpty int        `json:"leadingEmpty"`
	Dots         []EventRef `json:"dots"`
	Overflow     int        `json:"overflow"`
}

// Grid is the month layout.
type Grid struct {
	Year        int        `json:"year"`
	Month       time.Month `json:"month"`
	DaysInMonth int        `json:"daysInMonth"`
	// LeadingEmpty is the ISO weekday offset of day 1 (0 for Monday).
	LeadingEmpty int       `json:"leadingEmpty"`
	Cells        []DayCell `json:"cells"`
}

// Rows returns the number of week rows needed to draw the grid.
func (g Grid) Rows() int {
	return (g.LeadingEmpty + g.DaysInMonth + 6) / 7
}

// Layout buckets events by the calendar day of their start and keeps at
// most maxDots per day in arrival order. Events outside the month and
// invalid events are ignored. maxDots <= 0 means DefaultMaxDots.
func Layout(events []model.Event, year int, month time.Month, maxDots int) Grid {
	if maxDots <= 0 {
		maxDots = DefaultMaxDots
	}

	first := model.NewDate(year, month, 1)
	g := Grid{
		Year:         first.Year,
		Month:        first.Month,
		DaysInMonth:  model.DaysIn(first.Year, first.Month),
		LeadingEmpty: first.ISOWeekday() - 1,
	}

	byDay := make([][]model.Event, g.DaysInMonth+1)
	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		d := model.DateOf(ev.Start)
		if d.Year != g.Year || d.Month != g.Month {
			continue
		}
		byDay[d.Day] = append(byDay[d.Day], ev)
	}

	g.Cells = make([]DayCell, 0, g.DaysInMonth)
	for day := 1; day <= g.DaysInMonth; day++ {
		cell := DayCell{Date: model.NewDate(g.Year, g.Month, day), Dots: []EventRef{}}
		if day == 1 {
			cell.LeadingEmpty = g.LeadingEmpty
		}
		for i, ev := range byDay[day] {
			if i == maxDots {
				cell.Overflow = len(byDay[day]) - maxDots
				break
			}
			cell.Dots = append(cell.Dots, EventRef{ID: ev.ID, LayerID: ev.LayerID, Kind: ev.Kind, Title: ev.Title})
		}
		g.Cells = append(g.Cells, cell)
	}
	return g
}
