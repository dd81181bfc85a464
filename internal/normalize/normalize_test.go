package normalize

import (
	"errors"
	"testing"
	"time"

	"calgrid/internal/model"
)

func strp(s string) *string { return &s }

func warsaw(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestParseTimestamp_Forms(t *testing.T) {
	loc := warsaw(t)
	want := time.Date(2025, 11, 20, 10, 0, 0, 0, loc)

	tests := []struct {
		name string
		in   string
	}{
		{"iso with offset", "2025-11-20T10:00:00+01:00"},
		{"iso utc", "2025-11-20T09:00:00Z"},
		{"space separated", "2025-11-20 10:00:00"},
		{"iso without offset", "2025-11-20T10:00:00"},
		{"compact offset", "2025-11-20T10:00:00+0100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in, loc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(want) {
				t.Errorf("got %v, want %v", got, want)
			}
			if got.Location() != loc {
				t.Errorf("location = %v, want %v", got.Location(), loc)
			}
		})
	}
}

func TestParseTimestamp_Errors(t *testing.T) {
	if _, err := ParseTimestamp("  ", time.UTC); !errors.Is(err, ErrMissingStart) {
		t.Errorf("empty: err = %v, want ErrMissingStart", err)
	}
	if _, err := ParseTimestamp("tomorrow at noon", time.UTC); !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("garbage: err = %v, want ErrMalformedTimestamp", err)
	}
}

func TestNormalize_DefaultDuration(t *testing.T) {
	raw := model.RawEvent{ID: "a", StartTime: "2025-11-20 10:00:00", LayerID: "usos-class"}
	ev := Normalize(raw, Options{Location: time.UTC})
	if !ev.Valid() {
		t.Fatalf("unexpected error: %v", ev.Err)
	}
	if got := ev.Duration(); got != 90*time.Minute {
		t.Errorf("duration = %v, want 90m", got)
	}
	if !ev.EndDefaulted {
		t.Error("EndDefaulted should be set")
	}
	if raw.EndTime != nil {
		t.Error("raw record must not be mutated")
	}
}

func TestNormalize_EmptyEndAndCustomDefault(t *testing.T) {
	raw := model.RawEvent{ID: "a", StartTime: "2025-11-20 10:00:00", EndTime: strp("")}
	ev := Normalize(raw, Options{Location: time.UTC, DefaultDuration: 30 * time.Minute})
	if got := ev.Duration(); got != 30*time.Minute {
		t.Errorf("duration = %v, want 30m", got)
	}
}

func TestNormalize_InvertedRangeCollapses(t *testing.T) {
	raw := model.RawEvent{ID: "a", StartTime: "2025-11-20 10:00:00", EndTime: strp("2025-11-20 09:00:00")}
	ev := Normalize(raw, Options{Location: time.UTC})
	if !ev.End.Equal(ev.Start) {
		t.Errorf("end = %v, want start %v", ev.End, ev.Start)
	}
	if !ev.Inverted {
		t.Error("Inverted should be set")
	}
}

func TestNormalize_MalformedEndFallsBackToDefault(t *testing.T) {
	raw := model.RawEvent{ID: "a", StartTime: "2025-11-20 10:00:00", EndTime: strp("later")}
	ev := Normalize(raw, Options{Location: time.UTC})
	if !ev.Valid() || !ev.EndDefaulted || ev.Duration() != DefaultDuration {
		t.Errorf("got %+v, want valid event with default duration", ev)
	}
}

func TestNormalizeAll_IsolatesMalformedStart(t *testing.T) {
	raws := []model.RawEvent{
		{ID: "ok1", StartTime: "2025-11-20 09:00:00"},
		{ID: "bad", StartTime: "20/11/2025"},
		{ID: "ok2", StartTime: "2025-11-20T11:00:00Z"},
	}
	events := NormalizeAll(raws, Options{Location: time.UTC})
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	if events[1].Valid() || !errors.Is(events[1].Err, ErrMalformedTimestamp) {
		t.Errorf("bad event err = %v, want ErrMalformedTimestamp", events[1].Err)
	}
	valid, invalid := Partition(events)
	if len(valid) != 2 || len(invalid) != 1 {
		t.Fatalf("partition = %d/%d, want 2/1", len(valid), len(invalid))
	}
	if valid[0].ID != "ok1" || valid[1].ID != "ok2" {
		t.Errorf("valid order = %v, %v", valid[0].ID, valid[1].ID)
	}
}

func TestNormalize_DisplayFieldsAndKind(t *testing.T) {
	raw := model.RawEvent{
		ID:            "x",
		StartTime:     "2025-11-20 10:00:00",
		Type:          "classgroup",
		Name:          model.LangDict{"pl": "Analiza"},
		CourseName:    model.LangDict{"pl": "Analiza matematyczna"},
		ClasstypeName: model.LangDict{"pl": "Wykład"},
		RoomNumber:    "A-1",
		BuildingName:  model.LangDict{"pl": "Budynek V"},
		URL:           "https://example.com/x",
	}
	ev := Normalize(raw, Options{Location: time.UTC})
	if ev.Title != "Analiza matematyczna" {
		t.Errorf("title = %q", ev.Title)
	}
	if ev.Location != "A-1 Budynek V" {
		t.Errorf("location = %q", ev.Location)
	}
	if ev.Kind != model.KindLecture {
		t.Errorf("kind = %q, want %q", ev.Kind, model.KindLecture)
	}
	if ev.Link != raw.URL {
		t.Errorf("link = %q", ev.Link)
	}
}

func TestNormalize_SyntheticIDIsStable(t *testing.T) {
	raw := model.RawEvent{StartTime: "2025-11-20 10:00:00", Title: "Spotkanie"}
	a := Normalize(raw, Options{Location: time.UTC})
	b := Normalize(raw, Options{Location: time.UTC})
	if a.ID == "" || a.ID != b.ID {
		t.Errorf("ids = %q, %q; want equal and non-empty", a.ID, b.ID)
	}
	raw.Title = "Inne"
	if c := Normalize(raw, Options{Location: time.UTC}); c.ID == a.ID {
		t.Error("different content should yield a different id")
	}
}
