package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"calgrid/internal/engine"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/nav"
)

func layoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "layout",
		Usage: "Fetch sources once and print the layout of one view as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Reference date (YYYY-MM-DD), default today"},
			&cli.StringFlag{Name: "view", Usage: "day, week or month (default from config)"},
			&cli.StringFlag{Name: "layers", Usage: "Comma-separated active layers (default all)"},
			&cli.BoolFlag{Name: "pretty", Usage: "Indent the JSON output"},
		},
		Action: runLayout,
	}
}

func runLayout(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	view := cfg.DefaultView
	if v := cmd.String("view"); v != "" {
		view = v
	}
	mode, err := model.ParseViewMode(view)
	if err != nil {
		return err
	}
	state := nav.Today(time.Now(), cfg.Location(), mode)
	if d := cmd.String("date"); d != "" {
		date, err := model.ParseDate(d)
		if err != nil {
			return err
		}
		state = nav.GoToDate(date, mode)
	}

	batch, err := buildSources(cfg).Fetch(ctx)
	if err != nil {
		// Partial results are still laid out.
		appLog.Warn("some sources failed", "reason", err.Error())
	}

	events := batch.Events
	if l := cmd.String("layers"); l != "" {
		active := make(map[string]bool)
		for _, id := range strings.Split(l, ",") {
			active[strings.TrimSpace(id)] = true
		}
		events = engine.FilterActiveLayers(events, active)
	}

	res := engine.Compute(engine.Input{Events: events, Layers: batch.Layers, State: state}, cfg.EngineOptions())

	enc := json.NewEncoder(os.Stdout)
	if cmd.Bool("pretty") {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}
