// Package nav implements the view navigation transitions. Every function
// is pure: it takes a state and returns a new one.
package nav

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"calgrid/internal/model"
)

// Direction is a relative navigation step.
type Direction string

const (
	Prev Direction = "prev"
	Next Direction = "next"
)

// ErrUnknownDirection is returned by ParseDirection.
var ErrUnknownDirection = errors.New("unknown direction")

// ParseDirection parses "prev" or "next".
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Prev, Next:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
	}
}

// Today returns a state for the current date in loc.
func Today(now time.Time, loc *time.Location, mode model.ViewMode) model.ViewState {
	if loc == nil {
		loc = time.Local
	}
	return model.ViewState{Date: model.DateOf(now.In(loc)), Mode: mode}
}

// Navigate moves one view length backward or forward. Month steps keep the
// day number and let it overflow into the following month, so Jan 31 + 1
// month is Mar 3 and does not return to Jan 31 on the way back. An unknown
// direction leaves the state unchanged.
func Navigate(s model.ViewState, dir Direction) model.ViewState {
	step := 0
	switch dir {
	case Prev:
		step = -1
	case Next:
		step = 1
	default:
		return s
	}

	switch s.Mode {
	case model.ViewWeek:
		return model.ViewState{Date: s.Date.AddDays(7 * step), Mode: s.Mode}
	case model.ViewMonth:
		return model.ViewState{Date: s.Date.AddMonths(step), Mode: s.Mode}
	default:
		return model.ViewState{Date: s.Date.AddDays(step), Mode: s.Mode}
	}
}

// GoToDate replaces both the date and the view mode.
func GoToDate(date model.Date, mode model.ViewMode) model.ViewState {
	return model.ViewState{Date: date, Mode: mode}
}

// SetViewMode changes the mode and keeps the reference date.
func SetViewMode(s model.ViewState, mode model.ViewMode) model.ViewState {
	return model.ViewState{Date: s.Date, Mode: mode}
}
