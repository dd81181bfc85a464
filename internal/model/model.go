package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EventID is the opaque identifier of an event. Sources send it either as a
// JSON string or a JSON number; both decode into the same textual form.
type EventID string

// UnmarshalJSON accepts both string and numeric ids.
func (id *EventID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("event id must be a string or a number")
	}
	*id = EventID(n.String())
	return nil
}

// LangDict holds per-language display strings, e.g. {"pl": "...", "en": "..."}.
type LangDict map[string]string

// RawEvent is a single event record exactly as delivered by an event source.
// It is never modified by the engine.
type RawEvent struct {
	ID            EventID  `json:"id"`
	StartTime     string   `json:"start_time"`
	EndTime       *string  `json:"end_time,omitempty"`
	LayerID       string   `json:"layerId"`
	Type          string   `json:"type,omitempty"`
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Name          LangDict `json:"name,omitempty"`
	CourseName    LangDict `json:"course_name,omitempty"`
	ClasstypeName LangDict `json:"classtype_name,omitempty"`
	BuildingName  LangDict `json:"building_name,omitempty"`
	RoomNumber    string   `json:"room_number,omitempty"`
	URL           string   `json:"url,omitempty"`

	// AllDay is set by calendar feeds that distinguish date-only entries.
	AllDay bool `json:"all_day,omitempty"`
}

// DisplayTitle picks the first non-empty of title, course name, and the
// Polish then English event name.
func (r RawEvent) DisplayTitle() string {
	for _, s := range []string{r.Title, r.CourseName["pl"], r.Name["pl"], r.Name["en"]} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// DisplayLocation joins room number and building name.
func (r RawEvent) DisplayLocation() string {
	return strings.TrimSpace(r.RoomNumber + " " + r.BuildingName["pl"])
}

// Event is a normalized event. Values are treated as immutable once built by
// the normalizer.
type Event struct {
	ID      EventID `json:"id"`
	LayerID string  `json:"layerId"`
	Kind    string  `json:"kind,omitempty"`

	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`
	Link     string `json:"link,omitempty"`

	AllDay bool `json:"allDay,omitempty"`

	// Start and End are in the display timezone. End is always >= Start.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// EndDefaulted reports that End was synthesized from the default duration.
	EndDefaulted bool `json:"endDefaulted,omitempty"`
	// Inverted reports that the source end preceded the start and was
	// collapsed to a zero-duration event.
	Inverted bool `json:"inverted,omitempty"`

	// Err is non-nil for an event whose start could not be parsed. Such an
	// event has zero Start/End and must not be laid out.
	Err error `json:"-"`
}

// Valid reports whether the event can be placed on a time grid.
func (e Event) Valid() bool { return e.Err == nil }

// Duration returns End - Start.
func (e Event) Duration() time.Duration { return e.End.Sub(e.Start) }

// Layer is a named, colored visual category.
type Layer struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Color    string `json:"color" yaml:"color"`
	IsSystem bool   `json:"isSystem,omitempty" yaml:"system,omitempty"`
}

// LayerMap indexes layers by id.
type LayerMap map[string]Layer

// ColorFor returns the layer color, or fallback when the layer is unknown
// or has no color. The boolean reports whether the layer was found.
func (m LayerMap) ColorFor(layerID, fallback string) (string, bool) {
	l, ok := m[layerID]
	if !ok {
		return fallback, false
	}
	if l.Color == "" {
		return fallback, true
	}
	return l.Color, true
}

// VisualSlot is the computed placement of one event in a day column.
// Left and Width are percentages of the column; Top and Height are pixels.
type VisualSlot struct {
	EventID EventID `json:"id"`
	Top     float64 `json:"top"`
	Height  float64 `json:"height"`
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`

	// Cluster is the zero-based index of the overlap cluster within its day.
	Cluster int `json:"cluster"`
	// Column and Columns describe the slot inside its cluster.
	Column  int `json:"column"`
	Columns int `json:"columns"`
}
