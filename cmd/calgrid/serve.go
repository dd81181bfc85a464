package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"calgrid/internal/config"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/nav"
	"calgrid/internal/source"
	"calgrid/internal/web"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the navigation and layout API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config)"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if l := cmd.String("listen"); l != "" {
		cfg.Listen = l
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mode, _ := model.ParseViewMode(cfg.DefaultView)
	srv := web.NewServer(buildSources(cfg), web.Options{
		Engine:  cfg.EngineOptions(),
		View:    nav.Today(time.Now(), cfg.Location(), mode),
		Metrics: web.NewMetrics(),
	})
	if err := srv.Refresh(ctx); err != nil {
		appLog.Warn("initial refresh incomplete", "reason", err.Error())
	}

	sched, err := startRefreshSchedule(ctx, cfg, srv)
	if err != nil {
		return err
	}
	defer func() { <-sched.Stop().Done() }()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Sources.EventsFile != "" {
		g.Go(func() error {
			return source.File{Path: cfg.Sources.EventsFile}.Watch(gctx, func() {
				if err := srv.Refresh(gctx); err != nil {
					appLog.Warn("refresh after file change failed", "reason", err.Error())
				}
			})
		})
	}

	g.Go(func() error {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// startRefreshSchedule refreshes the server's sources on the configured
// cron schedule, in the display timezone.
func startRefreshSchedule(ctx context.Context, cfg *config.Config, srv *web.Server) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(cfg.Location()))
	_, err := c.AddFunc(cfg.RefreshCron, func() {
		if err := srv.Refresh(ctx); err != nil {
			appLog.Warn("scheduled refresh failed", "reason", err.Error())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	c.Start()
	appLog.Info("refresh schedule started", "cron", cfg.RefreshCron)
	return c, nil
}
