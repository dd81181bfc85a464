package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "calgrid/internal/log"
	"calgrid/internal/source"
)

// Feed is a single ICS subscription.
type Feed struct {
	ID  string
	URL string
}

// Payload is the body of one feed, either fresh or replayed from disk.
type Payload struct {
	Feed   Feed
	Body   []byte
	Cached bool
}

// Fetcher downloads ICS feeds with conditional requests backed by a disk
// cache. A cached body is served whenever the network or the server fails.
type Fetcher struct {
	client *http.Client
	dir    string
}

// NewFetcher returns a Fetcher storing its cache under dir.
func NewFetcher(dir string) *Fetcher {
	if dir == "" {
		dir = "./var/ics-cache"
	}
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		dir:    dir,
	}
}

// FetchAll fetches feeds concurrently. Payloads keep the order of feeds;
// failed feeds are left out and reported in the joined error.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) ([]Payload, error) {
	payloads := make([]*Payload, len(feeds))
	errs := make([]error, len(feeds))

	var g errgroup.Group
	g.SetLimit(4)
	for i, feed := range feeds {
		g.Go(func() error {
			p, err := f.Fetch(ctx, feed)
			if err != nil {
				appLog.Error("ics fetch failed", err, "id", feed.ID, "url", source.RedactURL(feed.URL))
				errs[i] = fmt.Errorf("ics %s: %w", feed.ID, err)
				return nil
			}
			payloads[i] = &p
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Payload, 0, len(feeds))
	for _, p := range payloads {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, errors.Join(errs...)
}

// Fetch downloads one feed, sending If-None-Match / If-Modified-Since from
// the previous response.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (Payload, error) {
	if feed.URL == "" {
		return Payload{}, errors.New("feed URL is empty")
	}
	c := f.cacheFor(feed.URL)
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return Payload{}, err
	}
	meta, _ := c.meta()
	cached, _ := c.body()

	fallback := func(cause error) (Payload, error) {
		if len(cached) == 0 {
			return Payload{}, cause
		}
		appLog.Warn("ics fetch degraded, serving cached body", "id", feed.ID, "url", source.RedactURL(feed.URL), "cause", cause.Error())
		return Payload{Feed: feed, Body: cached, Cached: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return Payload{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(err)
		}
		next := cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := c.store(next, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", feed.ID)
		}
		appLog.Debug("ics fetched", "id", feed.ID, "bytes", len(body))
		return Payload{Feed: feed, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Payload{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics not modified", "id", feed.ID)
		return Payload{Feed: feed, Body: cached, Cached: true}, nil

	default:
		return fallback(errors.New(resp.Status))
	}
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// diskCache is the per-URL cache directory holding meta.json and body.ics.
type diskCache struct {
	dir string
}

func (f *Fetcher) cacheFor(url string) diskCache {
	sum := sha256.Sum256([]byte(url))
	return diskCache{dir: filepath.Join(f.dir, hex.EncodeToString(sum[:8]))}
}

func (c diskCache) meta() (cacheMeta, error) {
	var m cacheMeta
	data, err := os.ReadFile(filepath.Join(c.dir, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

func (c diskCache) body() ([]byte, error) {
	return os.ReadFile(filepath.Join(c.dir, "body.ics"))
}

// store writes the body before the metadata so meta never points at a
// missing body.
func (c diskCache) store(m cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(c.dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	m.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "meta.json"), data, 0o600)
}
