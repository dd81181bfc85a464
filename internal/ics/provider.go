package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/source"
)

// Subscription binds a feed to the layer its events are shown on.
type Subscription struct {
	Feed    Feed
	LayerID string
}

// Provider is a source.Provider over ICS subscriptions. Parsed bodies are
// memoized by content hash, so unchanged feeds are not parsed again.
type Provider struct {
	fetcher *Fetcher
	subs    []Subscription
	loc     *time.Location
	horizon time.Duration
	parsed  *lru.Cache[string, []Entry]

	// Now is the clock used to center the expansion window.
	Now func() time.Time
}

// NewProvider returns a Provider expanding recurrences from one week
// before now to horizonDays after it.
func NewProvider(f *Fetcher, subs []Subscription, loc *time.Location, horizonDays int) *Provider {
	cache, _ := lru.New[string, []Entry](64)
	if loc == nil {
		loc = time.Local
	}
	return &Provider{
		fetcher: f,
		subs:    subs,
		loc:     loc,
		horizon: time.Duration(horizonDays) * 24 * time.Hour,
		parsed:  cache,
		Now:     time.Now,
	}
}

func (p *Provider) Name() string { return "ics" }

// Fetch downloads, parses and expands every subscription. Feeds that fail
// are reported in the error while the others are still returned.
func (p *Provider) Fetch(ctx context.Context) (source.Batch, error) {
	feeds := make([]Feed, len(p.subs))
	layerOf := make(map[string]string, len(p.subs))
	for i, s := range p.subs {
		feeds[i] = s.Feed
		layerOf[s.Feed.ID] = s.LayerID
	}

	payloads, fetchErr := p.fetcher.FetchAll(ctx, feeds)

	now := p.Now()
	cfg := ExpandConfig{
		Location: p.loc,
		From:     now.Add(-7 * 24 * time.Hour),
		To:       now.Add(p.horizon),
	}

	batch := source.Batch{Events: []model.RawEvent{}, Layers: model.LayerMap{}}
	for _, pl := range payloads {
		entries, err := p.parse(pl)
		if err != nil {
			appLog.Error("ics parse failed", err, "feed", pl.Feed.ID, "url", source.RedactURL(pl.Feed.URL))
			continue
		}
		occs, err := ExpandOccurrences(entries, cfg)
		if err != nil {
			return batch, err
		}
		for _, o := range occs {
			batch.Events = append(batch.Events, toRaw(o, layerOf[pl.Feed.ID]))
		}
	}
	return batch, fetchErr
}

func (p *Provider) parse(pl Payload) ([]Entry, error) {
	sum := sha256.Sum256(pl.Body)
	key := pl.Feed.ID + ":" + hex.EncodeToString(sum[:])
	if entries, ok := p.parsed.Get(key); ok {
		return entries, nil
	}
	entries, err := ParseICS(pl.Feed.ID, pl.Body)
	if err != nil {
		return nil, err
	}
	p.parsed.Add(key, entries)
	return entries, nil
}

func toRaw(o Occurrence, layerID string) model.RawEvent {
	end := o.End.Format(time.RFC3339)
	return model.RawEvent{
		ID:          model.EventID(o.UID + "/" + o.InstanceKey),
		StartTime:   o.Start.Format(time.RFC3339),
		EndTime:     &end,
		LayerID:     layerID,
		Title:       o.Summary,
		Description: o.Description,
		RoomNumber:  o.Location,
		URL:         o.URL,
		AllDay:      o.AllDay,
	}
}
