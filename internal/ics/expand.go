package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calgrid/internal/log"
)

const defaultMaxPerEntry = 5000

// Occurrence is one concrete instance of an Entry.
type Occurrence struct {
	Entry
	// InstanceKey identifies the instance within its UID.
	InstanceKey string
}

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Location is the zone occurrences are converted into. Nil means time.Local.
	Location *time.Location
	From, To time.Time
	// MaxPerEntry caps the instances produced by one recurring entry.
	MaxPerEntry int
}

// ExpandOccurrences expands entries into occurrences overlapping [From, To].
// RRULE, EXDATE and RECURRENCE-ID overrides are honored. The result is
// ordered by start, then UID.
func ExpandOccurrences(entries []Entry, cfg ExpandConfig) ([]Occurrence, error) {
	if cfg.To.Before(cfg.From) {
		return nil, errors.New("expand: To is before From")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxPerEntry <= 0 {
		cfg.MaxPerEntry = defaultMaxPerEntry
	}

	overrides := make(map[string][]Entry)
	var bases []Entry
	for _, e := range entries {
		if e.IsOverride() {
			overrides[e.UID] = append(overrides[e.UID], e)
			continue
		}
		bases = append(bases, e)
	}

	out := make([]Occurrence, 0, len(bases))
	for _, base := range bases {
		if base.RRule == "" {
			if overlaps(base.Start, base.End, cfg.From, cfg.To) {
				out = append(out, occurrence(applyOverride(base, overrides[base.UID], base.Start), cfg.Location))
			}
			continue
		}
		out = append(out, expandRecurring(base, overrides[base.UID], cfg)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}

func expandRecurring(base Entry, overrides []Entry, cfg ExpandConfig) []Occurrence {
	rule, err := rrule.StrToRRule(base.RRule)
	if err != nil {
		appLog.Error("expand: bad RRULE", err, "uid", base.UID, "rrule", base.RRule)
		return nil
	}
	loc := base.Start.Location()
	rule.DTStart(base.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range base.ExDates {
		set.ExDate(ex.In(loc))
	}

	// Widen the lower bound so instances that started before From but are
	// still running are included.
	span := base.End.Sub(base.Start)
	starts := set.Between(cfg.From.Add(-span).In(loc), cfg.To.In(loc), true)
	if len(starts) > cfg.MaxPerEntry {
		appLog.Warn("expand: occurrences truncated", "uid", base.UID, "cap", cfg.MaxPerEntry)
		starts = starts[:cfg.MaxPerEntry]
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		inst := base
		inst.RRule = ""
		inst.ExDates = nil
		inst.Start = s
		inst.End = s.Add(span)
		out = append(out, occurrence(applyOverride(inst, overrides, s), cfg.Location))
	}
	return out
}

// applyOverride returns the override whose RECURRENCE-ID equals start, or
// inst unchanged.
func applyOverride(inst Entry, overrides []Entry, start time.Time) Entry {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return o
		}
	}
	return inst
}

func occurrence(e Entry, loc *time.Location) Occurrence {
	key := e.Start.UTC().Format(time.RFC3339)
	if e.RecurrenceID != nil {
		key = e.RecurrenceID.UTC().Format(time.RFC3339)
	}
	if e.AllDay {
		// Date values carry no zone; pin them to midnight in loc.
		days := int(e.End.Sub(e.Start).Hours()/24 + 0.5)
		if days < 1 {
			days = 1
		}
		e.Start = time.Date(e.Start.Year(), e.Start.Month(), e.Start.Day(), 0, 0, 0, 0, loc)
		e.End = e.Start.AddDate(0, 0, days)
	} else {
		e.Start = e.Start.In(loc)
		e.End = e.End.In(loc)
	}
	return Occurrence{Entry: e, InstanceKey: key}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
