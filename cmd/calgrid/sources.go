package main

import (
	"calgrid/internal/config"
	"calgrid/internal/ics"
	"calgrid/internal/source"
)

// buildSources assembles every configured provider. Configured layers are
// appended last so their names and colors override those sent by feeds.
func buildSources(cfg *config.Config) *source.Multi {
	var providers []source.Provider

	if cfg.Sources.EventsFile != "" {
		providers = append(providers, source.File{Path: cfg.Sources.EventsFile})
	}
	if cfg.Sources.EventsURL != "" {
		providers = append(providers, source.NewHTTP(cfg.Sources.EventsURL))
	}
	if len(cfg.Sources.ICS) > 0 {
		subs := make([]ics.Subscription, 0, len(cfg.Sources.ICS))
		for _, c := range cfg.Sources.ICS {
			id := c.ID
			if id == "" {
				id = c.Name
			}
			if id == "" {
				id = c.URL
			}
			subs = append(subs, ics.Subscription{Feed: ics.Feed{ID: id, URL: c.URL}, LayerID: c.Layer})
		}
		providers = append(providers, ics.NewProvider(ics.NewFetcher(cfg.CacheDir), subs, cfg.Location(), cfg.Sources.HorizonDays))
	}

	providers = append(providers, source.Static{
		Label: "config-layers",
		Batch: source.Batch{Layers: cfg.Layers},
	})
	return source.NewMulti(providers...)
}
