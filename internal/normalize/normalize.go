// Package normalize turns raw source records into layout-ready events.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// DefaultDuration is assumed for events without an end time.
const DefaultDuration = 90 * time.Minute

var (
	// ErrMissingStart is reported for records with an empty start time.
	ErrMissingStart = errors.New("missing start time")
	// ErrMalformedTimestamp is reported for start times that do not parse.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// idNamespace scopes synthesized ids for records that arrive without one.
var idNamespace = uuid.MustParse("6f0b6c1e-3f2a-4a8e-9d4b-2c7a1e5f9b30")

// zoned layouts carry their own offset; local layouts are read in the
// display location.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04-07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

// Options control normalization.
type Options struct {
	// Location is the display timezone. Nil means time.Local.
	Location *time.Location
	// DefaultDuration replaces a missing end time. Zero means DefaultDuration.
	DefaultDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.DefaultDuration <= 0 {
		o.DefaultDuration = DefaultDuration
	}
	return o
}

// ParseTimestamp parses an ISO-8601 instant. The space-separated form
// "YYYY-MM-DD HH:MM:SS" is accepted as if the separator were 'T'. Values
// without an offset are interpreted in loc. The result is expressed in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingStart
	}
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// Normalize converts one raw record. It never fails: an unparseable start
// produces an event with Err set, which callers may drop or badge.
func Normalize(raw model.RawEvent, opts Options) model.Event {
	opts = opts.withDefaults()

	ev := model.Event{
		ID:       raw.ID,
		LayerID:  raw.LayerID,
		Kind:     kindOf(raw),
		Title:    raw.DisplayTitle(),
		Location: raw.DisplayLocation(),
		Link:     raw.URL,
		AllDay:   raw.AllDay,
	}
	if ev.ID == "" {
		ev.ID = syntheticID(raw)
	}

	start, err := ParseTimestamp(raw.StartTime, opts.Location)
	if err != nil {
		ev.Err = fmt.Errorf("event %s: start: %w", ev.ID, err)
		return ev
	}
	ev.Start = start

	switch {
	case raw.EndTime == nil || strings.TrimSpace(*raw.EndTime) == "":
		ev.End = start.Add(opts.DefaultDuration)
		ev.EndDefaulted = true
	default:
		end, err := ParseTimestamp(*raw.EndTime, opts.Location)
		if err != nil {
			appLog.Debug("normalize: unparseable end time, using default duration",
				"id", string(ev.ID), "end_time", *raw.EndTime)
			ev.End = start.Add(opts.DefaultDuration)
			ev.EndDefaulted = true
			break
		}
		ev.End = end
	}

	if ev.End.Before(ev.Start) {
		ev.End = ev.Start
		ev.Inverted = true
	}
	return ev
}

// NormalizeAll normalizes every record, preserving order. Invalid records
// stay in the result with Err set so callers can decide how to show them.
func NormalizeAll(raws []model.RawEvent, opts Options) []model.Event {
	out := make([]model.Event, 0, len(raws))
	invalid := 0
	for _, r := range raws {
		ev := Normalize(r, opts)
		if !ev.Valid() {
			invalid++
			appLog.Debug("normalize: invalid event isolated", "id", string(ev.ID), "reason", ev.Err.Error())
		}
		out = append(out, ev)
	}
	if invalid > 0 {
		appLog.Info("normalize: completed with invalid events", "total", len(raws), "invalid", invalid)
	}
	return out
}

// Partition splits events into valid and invalid, keeping relative order.
func Partition(events []model.Event) (valid, invalid []model.Event) {
	for _, ev := range events {
		if ev.Valid() {
			valid = append(valid, ev)
		} else {
			invalid = append(invalid, ev)
		}
	}
	return valid, invalid
}

func kindOf(raw model.RawEvent) string {
	if raw.Type != "" && raw.ClasstypeName["pl"] == "" {
		return strings.ToLower(raw.Type)
	}
	name := raw.Name["pl"]
	if name == "" {
		name = raw.Title
	}
	return model.ClassifyKind(raw.ClasstypeName["pl"], name, raw.Type)
}

// syntheticID derives a stable id from the record's content so repeated
// normalization of the same record yields the same id.
func syntheticID(raw model.RawEvent) model.EventID {
	end := ""
	if raw.EndTime != nil {
		end = *raw.EndTime
	}
	key := strings.Join([]string{raw.StartTime, end, raw.LayerID, raw.DisplayTitle()}, "\x1f")
	return model.EventID(uuid.NewSHA1(idNamespace, []byte(key)).String())
}
