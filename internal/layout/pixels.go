package layout

import (
	"math"
	"time"

	"calgrid/internal/model"
)

// Grid describes the vertical geometry of a day column.
type Grid struct {
	DayStartHour   int     `json:"dayStartHour"`
	DayEndHour     int     `json:"dayEndHour"`
	PxPerHour      float64 `json:"pxPerHour"`
	HeaderHeightPx float64 `json:"headerHeightPx"`
	// MinHeightPx keeps very short events visible and clickable.
	MinHeightPx float64 `json:"minHeightPx"`
}

// DefaultGrid returns the stock 07:00–21:00 grid.
func DefaultGrid() Grid {
	return Grid{
		DayStartHour:   7,
		DayEndHour:     21,
		PxPerHour:      60,
		HeaderHeightPx: 40,
		MinHeightPx:    25,
	}
}

// BodyHeight is the pixel height of the visible hours, without the header.
func (g Grid) BodyHeight() float64 {
	return float64(g.DayEndHour-g.DayStartHour) * g.PxPerHour
}

// ToPixels maps an event and its horizontal slot onto the grid. Events
// outside the visible hours still get coordinates (negative or past the
// bottom); clipping is up to the renderer.
func ToPixels(ev model.Event, slot model.VisualSlot, g Grid) model.VisualSlot {
	startMin := minuteOfDay(ev.Start)
	end := ev.End.In(ev.Start.Location())
	endMin := minuteOfDay(end) + 24*60*daysBetween(ev.Start, end)

	offset := startMin - float64(g.DayStartHour*60)
	slot.Top = g.HeaderHeightPx + offset/60*g.PxPerHour
	slot.Height = math.Max((endMin-startMin)/60*g.PxPerHour, g.MinHeightPx)
	return slot
}

// Placed pairs an event with its computed slot.
type Placed struct {
	Event model.Event
	Slot  model.VisualSlot
}

// PlaceEvents runs the clustering for one day and maps every slot to
// pixels. The result is in sweep order and is fully determined by the
// input; pairing is positional, so duplicate ids are harmless.
func PlaceEvents(events []model.Event, g Grid, policy Policy) []Placed {
	slots := DayWithPolicy(events, policy)
	out := make([]Placed, 0, len(slots))
	i := 0
	for _, c := range Clusters(events) {
		for _, ev := range c {
			out = append(out, Placed{Event: ev, Slot: ToPixels(ev, slots[i], g)})
			i++
		}
	}
	return out
}

// Place is PlaceEvents without the events.
func Place(events []model.Event, g Grid, policy Policy) []model.VisualSlot {
	placed := PlaceEvents(events, g, policy)
	out := make([]model.VisualSlot, len(placed))
	for i, p := range placed {
		out[i] = p.Slot
	}
	return out
}

func minuteOfDay(t time.Time) float64 {
	return float64(t.Hour()*60 + t.Minute())
}

// daysBetween counts calendar-day boundaries from a to b.
func daysBetween(a, b time.Time) float64 {
	da := model.DateOf(a)
	db := model.DateOf(b)
	ta := time.Date(da.Year, da.Month, da.Day, 0, 0, 0, 0, time.UTC)
	tb := time.Date(db.Year, db.Month, db.Day, 0, 0, 0, 0, time.UTC)
	return math.Round(tb.Sub(ta).Hours() / 24)
}
