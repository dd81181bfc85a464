// Package engine wires the layout stages together: raw records and a view
// state in, renderer-ready layout descriptors out.
package engine

import (
	"time"

	"calgrid/internal/layout"
	"calgrid/internal/model"
	"calgrid/internal/month"
	"calgrid/internal/normalize"
	"calgrid/internal/window"
)

// DefaultFallbackColor is used for events whose layer is unknown.
const DefaultFallbackColor = "#555"

// Options tune the pipeline. Zero values take the package defaults.
type Options struct {
	Location        *time.Location
	DefaultDuration time.Duration
	Grid            layout.Grid
	Policy          layout.Policy
	MaxDots         int
	FallbackColor   string
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = normalize.DefaultDuration
	}
	if o.Grid == (layout.Grid{}) {
		o.Grid = layout.DefaultGrid()
	}
	if o.Policy == "" {
		o.Policy = layout.PolicyEqual
	}
	if o.MaxDots <= 0 {
		o.MaxDots = month.DefaultMaxDots
	}
	if o.FallbackColor == "" {
		o.FallbackColor = DefaultFallbackColor
	}
	return o
}

// Input is everything one layout computation needs.
type Input struct {
	Events []model.RawEvent
	Layers model.LayerMap
	State  model.ViewState
}

// Placement is a positioned event with its display attributes.
type Placement struct {
	model.VisualSlot
	LayerID      string          `json:"layerId"`
	Color        string          `json:"color"`
	UnknownLayer bool            `json:"unknownLayer,omitempty"`
	Kind         string          `json:"kind,omitempty"`
	Treatment    model.Treatment `json:"treatment"`
	Title        string          `json:"title,omitempty"`
	Location     string          `json:"location,omitempty"`
	Link         string          `json:"link,omitempty"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
}

// Badge is an all-day event shown above a day column.
type Badge struct {
	ID      model.EventID `json:"id"`
	LayerID string        `json:"layerId"`
	Color   string        `json:"color"`
	Title   string        `json:"title,omitempty"`
}

// DayLayout is the time-grid layout of one calendar day.
type DayLayout struct {
	Date   model.Date  `json:"date"`
	AllDay []Badge     `json:"allDay"`
	Events []Placement `json:"events"`
}

// InvalidEvent is a record that could not be placed.
type InvalidEvent struct {
	ID        model.EventID   `json:"id"`
	LayerID   string          `json:"layerId"`
	Title     string          `json:"title,omitempty"`
	Reason    string          `json:"reason"`
	Treatment model.Treatment `json:"treatment"`
}

// Result is the layout of one view.
type Result struct {
	State   model.ViewState `json:"view"`
	Range   window.Range    `json:"range"`
	Grid    *layout.Grid    `json:"grid,omitempty"`
	Days    []DayLayout     `json:"days,omitempty"`
	Month   *month.Grid     `json:"month,omitempty"`
	Invalid []InvalidEvent  `json:"invalid"`
}

// Compute runs the whole pipeline. It has no side effects and never fails:
// malformed records end up in Result.Invalid, unknown layers get the
// fallback color, and an empty input yields empty days.
func Compute(in Input, opts Options) Result {
	opts = opts.withDefaults()

	events := normalize.NormalizeAll(in.Events, normalize.Options{
		Location:        opts.Location,
		DefaultDuration: opts.DefaultDuration,
	})
	valid, invalid := normalize.Partition(events)

	rng := window.For(in.State.Date, in.State.Mode, opts.Location)
	res := Result{
		State:   in.State,
		Range:   rng,
		Invalid: make([]InvalidEvent, 0, len(invalid)),
	}
	for _, ev := range invalid {
		res.Invalid = append(res.Invalid, InvalidEvent{
			ID:        ev.ID,
			LayerID:   ev.LayerID,
			Title:     ev.Title,
			Reason:    ev.Err.Error(),
			Treatment: model.TreatmentInvalid,
		})
	}

	inWindow := window.Filter(valid, rng)

	if in.State.Mode == model.ViewMonth {
		g := month.Layout(inWindow, in.State.Date.Year, in.State.Date.Month, opts.MaxDots)
		for ci := range g.Cells {
			for di := range g.Cells[ci].Dots {
				dot := &g.Cells[ci].Dots[di]
				dot.Color, _ = in.Layers.ColorFor(dot.LayerID, opts.FallbackColor)
			}
		}
		res.Month = &g
		return res
	}

	grid := opts.Grid
	res.Grid = &grid
	byDay := window.SplitDays(inWindow, rng)
	for _, d := range rng.Days() {
		res.Days = append(res.Days, layoutDay(d, byDay[d], in.Layers, opts))
	}
	return res
}

func layoutDay(d model.Date, events []model.Event, layers model.LayerMap, opts Options) DayLayout {
	day := DayLayout{Date: d, AllDay: []Badge{}, Events: []Placement{}}

	timed := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.AllDay {
			color, _ := layers.ColorFor(ev.LayerID, opts.FallbackColor)
			day.AllDay = append(day.AllDay, Badge{ID: ev.ID, LayerID: ev.LayerID, Color: color, Title: ev.Title})
			continue
		}
		timed = append(timed, ev)
	}

	for _, p := range layout.PlaceEvents(timed, opts.Grid, opts.Policy) {
		ev := p.Event
		color, known := layers.ColorFor(ev.LayerID, opts.FallbackColor)
		day.Events = append(day.Events, Placement{
			VisualSlot:   p.Slot,
			LayerID:      ev.LayerID,
			Color:        color,
			UnknownLayer: !known,
			Kind:         ev.Kind,
			Treatment:    model.TreatmentFor(ev.Kind),
			Title:        ev.Title,
			Location:     ev.Location,
			Link:         ev.Link,
			Start:        ev.Start,
			End:          ev.End,
		})
	}
	return day
}
