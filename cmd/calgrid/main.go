package main

import (
	"context"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"calgrid/internal/config"
	appLog "calgrid/internal/log"
)

const version = "0.1.0"

func main() {
	cmd := &cli.Command{
		Name:    "calgrid",
		Usage:   "Calendar layout engine: day, week and month layouts from event feeds",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/calgrid.yaml",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			layoutCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		appLog.Error("calgrid failed", err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config and applies its log level.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Debug("config loaded",
		"path", path,
		"timezone", cfg.Timezone,
		"default_view", cfg.DefaultView,
		"policy", cfg.Layout.Policy,
		"ics_count", len(cfg.Sources.ICS),
	)
	return cfg, nil
}
