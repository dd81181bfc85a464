package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"calgrid/internal/engine"
	"calgrid/internal/layout"
	"calgrid/internal/model"
)

// ErrEmptyPath is returned by Load and Save for an empty path.
var ErrEmptyPath = errors.New("config path is empty")

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Layer is the layer id assigned to every event of this feed.
	Layer string `yaml:"layer" json:"layer"`
}

// Validate validates a single ICS source.
func (c ICSConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Layer, validation.Required),
	)
}

// SourcesConfig lists where events come from. Every configured source is
// fetched and the results are merged.
type SourcesConfig struct {
	// EventsFile is a local JSON document {events, layers}.
	EventsFile string `yaml:"events_file" json:"events_file"`
	// EventsURL serves the same JSON document over HTTP.
	EventsURL string `yaml:"events_url" json:"events_url"`
	// ICS is the list of subscribed ICS feeds.
	ICS []ICSConfig `yaml:"ics" json:"ics"`
	// HorizonDays bounds recurrence expansion around today.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
}

// GridConfig is the vertical geometry of day and week columns.
type GridConfig struct {
	DayStartHour   int     `yaml:"day_start_hour" json:"day_start_hour"`
	DayEndHour     int     `yaml:"day_end_hour" json:"day_end_hour"`
	PxPerHour      float64 `yaml:"px_per_hour" json:"px_per_hour"`
	HeaderHeightPx float64 `yaml:"header_height_px" json:"header_height_px"`
	MinHeightPx    float64 `yaml:"min_height_px" json:"min_height_px"`
}

// Validate validates the grid geometry.
func (c GridConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.DayStartHour, validation.Min(0), validation.Max(23)),
		validation.Field(&c.DayEndHour, validation.Min(1), validation.Max(24)),
		validation.Field(&c.PxPerHour, validation.Required, validation.Min(1.0)),
		validation.Field(&c.HeaderHeightPx, validation.Min(0.0)),
		validation.Field(&c.MinHeightPx, validation.Min(0.0)),
	); err != nil {
		return err
	}
	if c.DayEndHour <= c.DayStartHour {
		return fmt.Errorf("grid: day_end_hour (%d) must be after day_start_hour (%d)", c.DayEndHour, c.DayStartHour)
	}
	return nil
}

// Grid converts to the layout package type.
func (c GridConfig) Grid() layout.Grid {
	return layout.Grid{
		DayStartHour:   c.DayStartHour,
		DayEndHour:     c.DayEndHour,
		PxPerHour:      c.PxPerHour,
		HeaderHeightPx: c.HeaderHeightPx,
		MinHeightPx:    c.MinHeightPx,
	}
}

// LayoutConfig holds clustering and normalization knobs.
type LayoutConfig struct {
	// Policy is "equal" (default) or "greedy".
	Policy string `yaml:"policy" json:"policy"`
	// DefaultDurationMinutes replaces a missing end time.
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`
	// MaxDots is the number of event dots per month cell.
	MaxDots int `yaml:"max_dots" json:"max_dots"`
	// FallbackColor is used for events whose layer is unknown.
	FallbackColor string `yaml:"fallback_color" json:"fallback_color"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the layout API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "Europe/Warsaw").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DefaultView is the view mode used on startup.
	DefaultView string `yaml:"default_view" json:"default_view"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic source refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Grid    GridConfig     `yaml:"grid" json:"grid"`
	Layout  LayoutConfig   `yaml:"layout" json:"layout"`
	Sources SourcesConfig  `yaml:"sources" json:"sources"`
	Layers  model.LayerMap `yaml:"layers" json:"layers"`
}

// systemLayers are always defined, matching the timetable feed's classes
// and exams.
func systemLayers() model.LayerMap {
	return model.LayerMap{
		"usos-class": {ID: "usos-class", Name: "Zajęcia Dydaktyczne USOS", Color: "#005846", IsSystem: true},
		"usos-exam":  {ID: "usos-exam", Name: "Egzaminy/Kolokwia USOS", Color: "#D32F2F", IsSystem: true},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	g := layout.DefaultGrid()
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Warsaw",
		LogLevel:    "info",
		DefaultView: string(model.ViewWeek),
		RefreshCron: "*/15 * * * *",
		CacheDir:    "./var/ics-cache",
		Grid: GridConfig{
			DayStartHour:   g.DayStartHour,
			DayEndHour:     g.DayEndHour,
			PxPerHour:      g.PxPerHour,
			HeaderHeightPx: g.HeaderHeightPx,
			MinHeightPx:    g.MinHeightPx,
		},
		Layout: LayoutConfig{
			Policy:                 string(layout.PolicyEqual),
			DefaultDurationMinutes: 90,
			MaxDots:                4,
			FallbackColor:          "#555",
		},
		Sources: SourcesConfig{
			ICS:         []ICSConfig{},
			HorizonDays: 120,
		},
		Layers: systemLayers(),
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.DefaultView == "" {
		c.DefaultView = def.DefaultView
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Grid == (GridConfig{}) {
		c.Grid = def.Grid
	}
	if c.Grid.PxPerHour == 0 {
		c.Grid.PxPerHour = def.Grid.PxPerHour
	}
	if c.Layout.Policy == "" {
		c.Layout.Policy = def.Layout.Policy
	}
	if c.Layout.DefaultDurationMinutes <= 0 {
		c.Layout.DefaultDurationMinutes = def.Layout.DefaultDurationMinutes
	}
	if c.Layout.MaxDots <= 0 {
		c.Layout.MaxDots = def.Layout.MaxDots
	}
	if c.Layout.FallbackColor == "" {
		c.Layout.FallbackColor = def.Layout.FallbackColor
	}
	if c.Sources.ICS == nil {
		c.Sources.ICS = []ICSConfig{}
	}
	if c.Sources.HorizonDays <= 0 {
		c.Sources.HorizonDays = def.Sources.HorizonDays
	}
	if c.Layers == nil {
		c.Layers = model.LayerMap{}
	}
	for id, l := range systemLayers() {
		if _, ok := c.Layers[id]; !ok {
			c.Layers[id] = l
		}
	}
	// Layer ids live in the map key; keep the embedded id in sync.
	for id, l := range c.Layers {
		if l.ID != id {
			l.ID = id
			c.Layers[id] = l
		}
	}
}

// Validate checks a normalized config.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.Timezone, validation.Required, validation.By(validTimezone)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.DefaultView, validation.In(string(model.ViewDay), string(model.ViewWeek), string(model.ViewMonth))),
		validation.Field(&c.RefreshCron, validation.By(validCron)),
		validation.Field(&c.Grid),
	); err != nil {
		return err
	}
	if err := validation.Validate(c.Sources.ICS); err != nil {
		return fmt.Errorf("sources.ics: %w", err)
	}
	if _, err := layout.ParsePolicy(c.Layout.Policy); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	return nil
}

func validTimezone(v any) error {
	name, _ := v.(string)
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown timezone %q", name)
	}
	return nil
}

func validCron(v any) error {
	spec, _ := v.(string)
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// Location resolves the display timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.Local
	}
	return loc
}

// DefaultDuration returns the configured default event duration.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.Layout.DefaultDurationMinutes) * time.Minute
}

// EngineOptions builds the layout pipeline options. The config must be
// normalized and valid.
func (c *Config) EngineOptions() engine.Options {
	policy, _ := layout.ParsePolicy(c.Layout.Policy)
	return engine.Options{
		Location:        c.Location(),
		DefaultDuration: c.DefaultDuration(),
		Grid:            c.Grid.Grid(),
		Policy:          policy,
		MaxDots:         c.Layout.MaxDots,
		FallbackColor:   c.Layout.FallbackColor,
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - expand ${ENV} references, read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
