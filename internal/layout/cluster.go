// Package layout places the events of a single day on a time grid: overlap
// clusters decide the horizontal slot, the time of day decides the vertical
// position.
package layout

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"calgrid/internal/model"
)

// Policy selects how a cluster is divided into columns.
type Policy string

const (
	// PolicyEqual gives each of the N cluster members its own 100/N column
	// in sweep order.
	PolicyEqual Policy = "equal"
	// PolicyGreedy reuses a column as soon as its previous occupant has
	// ended, so a cluster only gets as many columns as its widest overlap.
	PolicyGreedy Policy = "greedy"
)

// ParsePolicy parses a policy name; empty means PolicyEqual.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyEqual, nil
	case PolicyEqual, PolicyGreedy:
		return p, nil
	default:
		return "", fmt.Errorf("unknown layout policy %q", s)
	}
}

// sweepOrder returns the valid events sorted by start ascending, then end
// descending. Equal keys keep their input order.
func sweepOrder(events []model.Event) []model.Event {
	sorted := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Valid() {
			sorted = append(sorted, ev)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.End.After(b.End)
	})
	return sorted
}

// Clusters partitions the events of one day into maximal groups connected
// by time overlap. Each event appears in exactly one cluster; members are
// in sweep order. Invalid events are skipped.
func Clusters(events []model.Event) [][]model.Event {
	var (
		clusters   [][]model.Event
		current    []model.Event
		clusterEnd time.Time
	)
	for _, ev := range sweepOrder(events) {
		// Nothing left in the open cluster can reach this event.
		if len(current) > 0 && !ev.Start.Before(clusterEnd) {
			clusters = append(clusters, current)
			current = nil
		}
		current = append(current, ev)
		if len(current) == 1 || ev.End.After(clusterEnd) {
			clusterEnd = ev.End
		}
	}
	if len(current) > 0 {
		clusters = append(clusters, current)
	}
	return clusters
}

// Day assigns horizontal slots to the events of one calendar day using
// PolicyEqual. Only EventID, Left, Width and the cluster fields are set.
func Day(events []model.Event) []model.VisualSlot {
	return DayWithPolicy(events, PolicyEqual)
}

// DayWithPolicy is Day with an explicit column policy.
func DayWithPolicy(events []model.Event, policy Policy) []model.VisualSlot {
	clusters := Clusters(events)
	out := make([]model.VisualSlot, 0, len(events))
	for ci, cluster := range clusters {
		var columns []int
		var n int
		if policy == PolicyGreedy {
			columns, n = greedyColumns(cluster)
		} else {
			columns, n = equalColumns(cluster)
		}
		width := 100 / float64(n)
		for i, ev := range cluster {
			out = append(out, model.VisualSlot{
				EventID: ev.ID,
				Left:    float64(columns[i]) * width,
				Width:   width,
				Cluster: ci,
				Column:  columns[i],
				Columns: n,
			})
		}
	}
	return out
}

func equalColumns(cluster []model.Event) ([]int, int) {
	cols := make([]int, len(cluster))
	for i := range cluster {
		cols[i] = i
	}
	return cols, len(cluster)
}

// greedyColumns puts each event into the first column whose last event has
// already ended.
func greedyColumns(cluster []model.Event) ([]int, int) {
	cols := make([]int, len(cluster))
	var columnEnds []time.Time
	for i, ev := range cluster {
		placed := false
		for c, end := range columnEnds {
			if !ev.Start.Before(end) {
				cols[i] = c
				columnEnds[c] = ev.End
				placed = true
				break
			}
		}
		if !placed {
			cols[i] = len(columnEnds)
			columnEnds = append(columnEnds, ev.End)
		}
	}
	return cols, len(columnEnds)
}
