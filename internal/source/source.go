// Package source adapts external event providers to the raw records the
// engine consumes.
package source

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Batch is one delivery from a provider.
type Batch struct {
	Events []model.RawEvent `json:"events"`
	Layers model.LayerMap   `json:"layers"`
}

// Provider supplies events and layers.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (Batch, error)
}

// Multi fetches several providers concurrently and merges their batches.
type Multi struct {
	providers []Provider
}

// NewMulti returns a Multi over the given providers. Nil entries are skipped.
func NewMulti(providers ...Provider) *Multi {
	m := &Multi{}
	for _, p := range providers {
		if p != nil {
			m.providers = append(m.providers, p)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of providers.
func (m *Multi) Len() int { return len(m.providers) }

// Fetch runs every provider in parallel. Events are concatenated in
// provider order and layer maps merged with later providers winning. A
// failing provider does not affect the others: the merged batch is always
// returned, and the error joins every individual failure.
func (m *Multi) Fetch(ctx context.Context) (Batch, error) {
	batches := make([]Batch, len(m.providers))
	errs := make([]error, len(m.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range m.providers {
		g.Go(func() error {
			b, err := p.Fetch(gctx)
			if err != nil {
				errs[i] = fmt.Errorf("source %s: %w", p.Name(), err)
				appLog.Error("source fetch failed", err, "source", p.Name())
				return nil
			}
			batches[i] = b
			return nil
		})
	}
	_ = g.Wait()

	merged := Batch{Events: []model.RawEvent{}, Layers: model.LayerMap{}}
	for _, b := range batches {
		merged.Events = append(merged.Events, b.Events...)
		for id, l := range b.Layers {
			merged.Layers[id] = l
		}
	}
	appLog.Info("sources merged", "providers", len(m.providers), "events", len(merged.Events), "layers", len(merged.Layers))
	return merged, errors.Join(errs...)
}

// Static is a fixed batch, mainly for configured layers and tests.
type Static struct {
	Label string
	Batch Batch
}

func (s Static) Name() string { return s.Label }

func (s Static) Fetch(context.Context) (Batch, error) { return s.Batch, nil }
