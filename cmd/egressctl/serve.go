package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/egress/client"
	"github.com/jonwraymond/egress/config"
	"github.com/jonwraymond/egress/health"
	"github.com/jonwraymond/egress/observe"
)

const shutdownTimeout = 10 * time.Second

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "probe targets periodically and expose health and metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen address",
				Value: ":9464",
			},
			&cli.StringSliceFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "URL to probe, repeatable",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "time between probe rounds",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(ctx, cmd, enablePrometheus)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			srv := &http.Server{
				Addr:              cmd.String("listen"),
				Handler:           newServeMux(e.client),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serve(ctx, srv, e.client, e.obs.Logger(), cmd.StringSlice("target"), cmd.Duration("interval"))
		},
	}
}

// enablePrometheus turns on metrics with the prometheus reader unless the
// configuration already picked an exporter.
func enablePrometheus(cfg *config.Config) {
	if cfg.Observe.Metrics.Enabled && cfg.Observe.Metrics.Exporter != "none" {
		return
	}
	cfg.Observe.Metrics.Enabled = true
	cfg.Observe.Metrics.Exporter = "prometheus"
}

func newServeMux(c *client.Client) *http.ServeMux {
	agg := health.NewAggregator(5 * time.Second)
	agg.Register("circuit_breakers", health.NewBreakerChecker(c))

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// serve runs srv and the probe loop until ctx is done.
func serve(ctx context.Context, srv *http.Server, c *client.Client, logger observe.Logger, targets []string, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(ctx, "serving health and metrics", observe.F("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(targets) > 0 {
		g.Go(func() error {
			probeLoop(ctx, c, logger, targets, interval)
			return nil
		})
	}

	return g.Wait()
}

// probeLoop probes targets now and then every interval until ctx is done.
func probeLoop(ctx context.Context, c *client.Client, logger observe.Logger, targets []string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		failed := 0
		for _, r := range probe(ctx, c, targets, len(targets)) {
			if r.Error != "" {
				failed++
			}
		}
		logger.Debug(ctx, "probe round finished",
			observe.F("targets", len(targets)),
			observe.F("failed", failed),
		)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
