package layout

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"calgrid/internal/model"
)

func hm(h, m int) time.Time {
	return time.Date(2025, 11, 20, h, m, 0, 0, time.UTC)
}

func ev(id string, sh, sm, eh, em int) model.Event {
	return model.Event{ID: model.EventID(id), Start: hm(sh, sm), End: hm(eh, em)}
}

func slotByID(slots []model.VisualSlot) map[model.EventID]model.VisualSlot {
	out := make(map[model.EventID]model.VisualSlot, len(slots))
	for _, s := range slots {
		out[s.EventID] = s
	}
	return out
}

func TestDay_ReferenceScenario(t *testing.T) {
	events := []model.Event{
		ev("1", 9, 0, 10, 0),
		ev("2", 9, 30, 10, 30),
		ev("3", 11, 0, 12, 0),
	}
	got := slotByID(Day(events))

	check := func(id model.EventID, left, width float64, cluster int) {
		t.Helper()
		s := got[id]
		if s.Left != left || s.Width != width || s.Cluster != cluster {
			t.Errorf("slot %s = left %v width %v cluster %d, want %v/%v/%d", id, s.Left, s.Width, s.Cluster, left, width, cluster)
		}
	}
	check("1", 0, 50, 0)
	check("2", 50, 50, 0)
	check("3", 0, 100, 1)
}

func TestDay_Empty(t *testing.T) {
	if got := Day(nil); len(got) != 0 {
		t.Errorf("expected no slots, got %v", got)
	}
	if got := Place([]model.Event{}, DefaultGrid(), PolicyEqual); len(got) != 0 {
		t.Errorf("expected no placements, got %v", got)
	}
}

func TestDay_TieBreakLongerFirst(t *testing.T) {
	events := []model.Event{
		ev("short", 9, 0, 9, 30),
		ev("long", 9, 0, 11, 0),
	}
	slots := Day(events)
	if slots[0].EventID != "long" || slots[0].Left != 0 {
		t.Errorf("first slot = %+v, want long at left 0", slots[0])
	}
}

func TestDay_TouchingEventsAreSeparateClusters(t *testing.T) {
	events := []model.Event{
		ev("a", 9, 0, 10, 0),
		ev("b", 10, 0, 11, 0),
	}
	for _, s := range Day(events) {
		if s.Width != 100 || s.Left != 0 {
			t.Errorf("slot %s = %+v, want full width", s.EventID, s)
		}
	}
}

func TestDay_ChainUsesEqualDivision(t *testing.T) {
	// a overlaps b, b overlaps c, a and c do not overlap.
	events := []model.Event{
		ev("a", 9, 0, 10, 0),
		ev("b", 9, 30, 11, 0),
		ev("c", 10, 30, 12, 0),
	}
	got := slotByID(Day(events))
	for _, id := range []model.EventID{"a", "b", "c"} {
		if w := got[id].Width; fmt.Sprintf("%.4f", w) != "33.3333" {
			t.Errorf("width(%s) = %v, want 100/3", id, w)
		}
	}
	if got["c"].Column != 2 {
		t.Errorf("column(c) = %d, want 2", got["c"].Column)
	}
}

func TestDayWithPolicy_GreedyReusesColumns(t *testing.T) {
	events := []model.Event{
		ev("a", 9, 0, 10, 0),
		ev("b", 9, 30, 11, 0),
		ev("c", 10, 30, 12, 0),
	}
	got := slotByID(DayWithPolicy(events, PolicyGreedy))
	if got["a"].Width != 50 || got["b"].Width != 50 || got["c"].Width != 50 {
		t.Errorf("widths = %v/%v/%v, want 50 each", got["a"].Width, got["b"].Width, got["c"].Width)
	}
	if got["a"].Left != 0 || got["b"].Left != 50 || got["c"].Left != 0 {
		t.Errorf("lefts = %v/%v/%v, want 0/50/0", got["a"].Left, got["b"].Left, got["c"].Left)
	}
}

func TestClusters_Partition(t *testing.T) {
	events := randomDay(rand.New(rand.NewSource(7)), 40, true)
	seen := make(map[model.EventID]int)
	for _, c := range Clusters(events) {
		for _, e := range c {
			seen[e.ID]++
		}
	}
	if len(seen) != len(events) {
		t.Fatalf("clustered %d distinct events, want %d", len(seen), len(events))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("event %s appears in %d clusters", id, n)
		}
	}
}

func TestClusters_SkipsInvalid(t *testing.T) {
	events := []model.Event{ev("a", 9, 0, 10, 0), {ID: "bad", Err: fmt.Errorf("bad start")}}
	if got := Clusters(events); len(got) != 1 || len(got[0]) != 1 {
		t.Errorf("clusters = %v", got)
	}
}

func TestPlace_NoVisualOverlapProperty(t *testing.T) {
	for _, policy := range []Policy{PolicyEqual, PolicyGreedy} {
		for seed := int64(1); seed <= 25; seed++ {
			events := randomDay(rand.New(rand.NewSource(seed)), 25, true)
			slots := slotByID(Place(events, DefaultGrid(), policy))
			for i := range events {
				for j := i + 1; j < len(events); j++ {
					a, b := events[i], events[j]
					if !(a.Start.Before(b.End) && b.Start.Before(a.End)) {
						continue
					}
					sa, sb := slots[a.ID], slots[b.ID]
					if sa.Left < sb.Left+sb.Width-1e-9 && sb.Left < sa.Left+sa.Width-1e-9 {
						t.Fatalf("%s seed %d: %s %+v overlaps %s %+v", policy, seed, a.ID, sa, b.ID, sb)
					}
				}
			}
		}
	}
}

func TestPlace_IsolatedEventsFullWidth(t *testing.T) {
	events := randomDay(rand.New(rand.NewSource(3)), 30, false)
	slots := slotByID(Place(events, DefaultGrid(), PolicyEqual))
	for _, a := range events {
		isolated := true
		for _, b := range events {
			if a.ID != b.ID && a.Start.Before(b.End) && b.Start.Before(a.End) {
				isolated = false
				break
			}
		}
		if isolated && (slots[a.ID].Width != 100 || slots[a.ID].Left != 0) {
			t.Errorf("isolated event %s got %+v", a.ID, slots[a.ID])
		}
	}
}

func TestPlace_Idempotent(t *testing.T) {
	events := randomDay(rand.New(rand.NewSource(11)), 30, true)
	first := Place(events, DefaultGrid(), PolicyEqual)
	second := Place(events, DefaultGrid(), PolicyEqual)
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same input differ")
	}
}

func TestToPixels(t *testing.T) {
	g := Grid{DayStartHour: 8, DayEndHour: 20, PxPerHour: 60, HeaderHeightPx: 40, MinHeightPx: 25}
	tests := []struct {
		name       string
		event      model.Event
		top, height float64
	}{
		{"one hour at nine", ev("a", 9, 0, 10, 0), 100, 60},
		{"half hour", ev("b", 8, 15, 8, 45), 55, 30},
		{"zero duration hits floor", ev("c", 12, 0, 12, 0), 280, 25},
		{"ten minutes hits floor", ev("d", 12, 0, 12, 10), 280, 25},
		{"before visible hours", ev("e", 6, 0, 7, 0), -80, 60},
		{"past midnight", model.Event{ID: "f", Start: hm(23, 0), End: hm(23, 0).Add(2 * time.Hour)}, 940, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPixels(tt.event, model.VisualSlot{EventID: tt.event.ID, Left: 50, Width: 50}, g)
			if got.Top != tt.top || got.Height != tt.height {
				t.Errorf("top/height = %v/%v, want %v/%v", got.Top, got.Height, tt.top, tt.height)
			}
			if got.Left != 50 || got.Width != 50 {
				t.Errorf("horizontal slot not carried over: %+v", got)
			}
		})
	}
}

func TestPlace_HeightFloorProperty(t *testing.T) {
	g := DefaultGrid()
	events := randomDay(rand.New(rand.NewSource(5)), 50, true)
	for _, s := range Place(events, g, PolicyEqual) {
		if s.Height < g.MinHeightPx {
			t.Errorf("slot %s height %v below floor", s.EventID, s.Height)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyEqual {
		t.Errorf("empty = %q, %v", p, err)
	}
	if p, err := ParsePolicy("Greedy"); err != nil || p != PolicyGreedy {
		t.Errorf("greedy = %q, %v", p, err)
	}
	if _, err := ParsePolicy("packed"); err == nil {
		t.Error("unknown policy should fail")
	}
}

// randomDay builds n events between 07:00 and 20:00 on a quarter-hour
// raster. Zero-length events are only generated when allowZero is set.
func randomDay(r *rand.Rand, n int, allowZero bool) []model.Event {
	out := make([]model.Event, n)
	for i := range out {
		start := hm(7, 0).Add(time.Duration(r.Intn(13*4)) * 15 * time.Minute)
		quarters := r.Intn(9)
		if !allowZero {
			quarters++
		}
		dur := time.Duration(quarters) * 15 * time.Minute
		out[i] = model.Event{ID: model.EventID(fmt.Sprintf("e%02d", i)), Start: start, End: start.Add(dur)}
	}
	return out
}
