package model

import (
	"errors"
	"fmt"
	"strings"
)

// ViewMode selects the granularity of the displayed window.
type ViewMode string

const (
	ViewDay   ViewMode = "day"
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
)

// ErrUnknownViewMode is returned by ParseViewMode for unsupported values.
var ErrUnknownViewMode = errors.New("unknown view mode")

// ParseViewMode parses "day", "week" or "month" (case-insensitive).
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ViewDay, ViewWeek, ViewMonth:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownViewMode, s)
	}
}

// ViewState is the navigation state: a reference date and a view mode.
// It is replaced wholesale on every transition.
type ViewState struct {
	Date Date     `json:"referenceDate"`
	Mode ViewMode `json:"viewMode"`
}
