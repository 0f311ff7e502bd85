package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"hstin/isobar/artifact"
	"hstin/isobar/common"
	"hstin/isobar/config"
	. "hstin/isobar/helper"
	"hstin/isobar/models/base"
	"hstin/isobar/render"
	"hstin/isobar/server"
	"hstin/isobar/service"
)

func main() {

	app := &cli.App{
		Name:      "isobar - Weather Grid Map Renderer",
		UsageText: "isobar --dataset wrf.nc [global options]",
		Flags:     config.Flags(),
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		Log.Fatal().Err(err).Msg("isobar stopped")
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := config.FromContext(cCtx)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStartup, err)
	}
	if err := SetupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStartup, err)
	}

	ds, err := base.Open(cfg.Dataset, common.RequiredVariables())
	if err != nil {
		return err
	}

	style, err := render.LoadStyle(cfg.BasemapStyle)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStartup, err)
	}
	basemap, err := render.LoadBasemap(cfg.BasemapDir, style)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStartup, err)
	}

	metrics := NewMetrics(prometheus.DefaultRegisterer)

	store, err := artifact.New(artifact.Options{
		Dir:        cfg.StaticDir,
		ScratchDir: cfg.ScratchDir,
		Policy:     artifact.Policy{TTL: cfg.TTL, MaxEntries: cfg.MaxEntries},
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStartup, err)
	}

	renderer := render.NewRenderer(render.Options{
		Basemap:       basemap,
		ReferenceDate: cfg.ReferenceDate,
		Watermark:     cfg.Watermark,
		Width:         cfg.Width,
		Height:        cfg.Height,
		Workers:       cfg.Workers,
	})

	svc := service.New(ds, service.Options{
		Renderer:      renderer,
		Store:         store,
		Metrics:       metrics,
		ReferenceDate: cfg.ReferenceDate,
	})

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		store.Run(ctx, cfg.SweepInterval)
		return nil
	})

	if cfg.HTTP {
		lis, err := server.Listen(cfg.HTTPPort, cfg.MaxConns)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrStartup, err)
		}
		app := server.NewHTTPServer(svc, server.HTTPOptions{StaticDir: cfg.StaticDir, CORSOrigins: cfg.CORSOrigins})
		g.Go(func() error {
			return server.ServeHTTP(app, lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			return app.Shutdown()
		})
	}

	if cfg.GRPC {
		lis, err := server.Listen(cfg.GRPCPort, cfg.MaxConns)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrStartup, err)
		}
		s := server.NewGRPCServer(svc)
		g.Go(func() error {
			return server.ServeGRPC(s, lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			s.GracefulStop()
			return nil
		})
	}

	Log.Info().Str("dataset", cfg.Dataset).Int("time_steps", ds.NumTimes()).Strs("variables", ds.Variables()).Msg("isobar ready")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	Log.Info().Msg("isobar stopped")
	return nil
}
