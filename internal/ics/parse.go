// Package ics turns ICS subscriptions into raw event records.
package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "calgrid/internal/log"
)

// Entry is one VEVENT with its recurrence data still unexpanded.
type Entry struct {
	FeedID string

	UID      string
	Sequence int

	Summary     string
	Description string
	Location    string
	URL         string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on overrides of a single recurring instance.
	RecurrenceID *time.Time
}

// IsOverride reports whether e replaces one instance of a recurring event.
func (e Entry) IsOverride() bool { return e.RecurrenceID != nil }

// ParseICS parses a calendar body. VEVENTs that cannot be read are logged
// and skipped.
func ParseICS(feedID string, body []byte) ([]Entry, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		e, err := parseVEvent(ve)
		if err != nil {
			appLog.Warn("ics vevent skipped", "feed", feedID, "reason", err.Error())
			continue
		}
		e.FeedID = feedID
		entries = append(entries, e)
	}
	appLog.Debug("ics parsed", "feed", feedID, "entries", len(entries))
	return entries, nil
}

func parseVEvent(ve *ical.VEvent) (Entry, error) {
	var e Entry

	e.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if e.UID == "" {
		return e, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(propValue(ve, ical.ComponentPropertySequence)); err == nil {
		e.Sequence = n
	}
	e.Summary = propValue(ve, ical.ComponentPropertySummary)
	e.Description = propValue(ve, ical.ComponentPropertyDescription)
	e.Location = propValue(ve, ical.ComponentPropertyLocation)
	e.URL = propValue(ve, ical.ComponentPropertyUrl)

	start, err := ve.GetStartAt()
	if err != nil {
		return e, err
	}
	e.Start = start

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		e.AllDay = strings.EqualFold(param(p, "VALUE"), "DATE") || !strings.Contains(p.Value, "T")
	}

	// Without DTEND a timed event has zero length and a date event spans
	// one day.
	end, err := ve.GetEndAt()
	switch {
	case err == nil && !end.Before(start):
		e.End = end
	case e.AllDay:
		e.End = start.AddDate(0, 0, 1)
	default:
		e.End = start
	}

	e.RRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := tzFor(p, start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				e.ExDates = append(e.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, tzFor(p, start.Location())); err == nil {
			e.RecurrenceID = &t
		}
	}
	return e, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func param(p *ical.IANAProperty, name string) string {
	if vs := p.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// tzFor resolves the TZID parameter of p, falling back to def.
func tzFor(p *ical.IANAProperty, def *time.Location) *time.Location {
	if tz := param(p, "TZID"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return def
}

// parseICSTime reads the DATE, DATE-TIME and UTC DATE-TIME forms.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
