package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/egress/client"
	"github.com/jonwraymond/egress/resilience"
)

func createApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "egressctl",
		Usage:   "resilient outbound HTTP calls",
		Version: Version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON configuration file",
				Sources: cli.EnvVars("EGRESS_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error; overrides the configuration",
			},
		},
		Commands: []*cli.Command{
			createGetCommand(),
			createRequestCommand(),
			createPagesCommand(),
			createProbeCommand(),
			createServeCommand(),
		},
	}
}

func createGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "GET one URL through the breaker and retry loop",
		ArgsUsage: "<url>",
		Flags:     requestFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdRequest(ctx, cmd, http.MethodGet, nil)
		},
	}
}

func createRequestCommand() *cli.Command {
	flags := append(requestFlags(),
		&cli.StringFlag{
			Name:    "method",
			Aliases: []string{"X"},
			Usage:   "HTTP method",
			Value:   http.MethodGet,
		},
		&cli.StringFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "request body, sent verbatim",
		},
	)
	return &cli.Command{
		Name:      "request",
		Usage:     "issue one request with any method",
		ArgsUsage: "<url>",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var body []byte
			if cmd.IsSet("data") {
				body = []byte(cmd.String("data"))
			}
			return cmdRequest(ctx, cmd, cmd.String("method"), body)
		},
	}
}

func cmdRequest(ctx context.Context, cmd *cli.Command, method string, body []byte) error {
	target := cmd.Args().First()
	if target == "" {
		return errors.New("missing <url>")
	}
	opts, err := requestOptions(cmd)
	if err != nil {
		return err
	}
	if body != nil {
		opts = append(opts, client.WithBody(body))
	}

	e, err := newEnv(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	w := cmd.Root().Writer
	resp, reqErr := e.client.Request(ctx, method, target, opts...)

	var statusErr *client.HTTPStatusError
	switch {
	case reqErr == nil:
		fmt.Fprintf(w, "%s (%d attempts, %s)\n%s\n", resp.Status, resp.Attempts, resp.Duration.Round(time.Millisecond), resp.Text())
	case errors.As(reqErr, &statusErr):
		fmt.Fprintf(w, "%s\n%s\n", statusErr.Status, statusErr.Body)
	}

	service := e.client.Registry().Classify(target)
	if s := cmd.String("service"); s != "" {
		service = s
	}
	if snap, ok := e.client.Metrics(service); ok {
		_ = writeJSON(w, map[string]any{"service": service, "metrics": snap})
	}
	return reqErr
}

func createPagesCommand() *cli.Command {
	flags := append(requestFlags(),
		&cli.StringSliceFlag{
			Name:    "param",
			Aliases: []string{"p"},
			Usage:   "query parameter as key=value, repeatable; page=N sets the start page",
		},
		&cli.StringFlag{
			Name:    "method",
			Aliases: []string{"X"},
			Value:   http.MethodGet,
		},
	)
	return &cli.Command{
		Name:      "pages",
		Usage:     "walk a paginated JSON API and print every item",
		ArgsUsage: "<url>",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target := cmd.Args().First()
			if target == "" {
				return errors.New("missing <url>")
			}
			params, err := parseParams(cmd.StringSlice("param"))
			if err != nil {
				return err
			}
			opts, err := requestOptions(cmd)
			if err != nil {
				return err
			}

			e, err := newEnv(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			items := e.fetcher.FetchAll(ctx, target, cmd.String("method"), params, opts...)
			if items == nil {
				items = []any{}
			}
			return writeJSON(cmd.Root().Writer, items)
		},
	}
}

// probeResult is the outcome of one probe call.
type probeResult struct {
	URL        string `json:"url"`
	Service    string `json:"service"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// serviceReport pairs a service's breaker status with its metrics.
type serviceReport struct {
	Breaker resilience.BreakerStatus `json:"circuit_breaker"`
	Metrics client.MetricsSnapshot   `json:"metrics"`
}

func createProbeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "GET several URLs concurrently and report per-service health",
		ArgsUsage: "<url>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "maximum calls in flight",
				Value: 8,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			targets := cmd.Args().Slice()
			if len(targets) == 0 {
				return errors.New("missing <url>")
			}

			e, err := newEnv(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close(ctx)

			results := probe(ctx, e.client, targets, int(cmd.Int("concurrency")))
			return writeJSON(cmd.Root().Writer, map[string]any{
				"results":  results,
				"services": report(e.client),
			})
		},
	}
}

// probe GETs every target, at most limit at a time. Failures are reported in
// the results, not returned.
func probe(ctx context.Context, c *client.Client, targets []string, limit int) []probeResult {
	results := make([]probeResult, len(targets))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, target := range targets {
		g.Go(func() error {
			start := time.Now()
			r := probeResult{URL: target, Service: c.Registry().Classify(target)}
			resp, err := c.Get(ctx, target)
			r.DurationMs = time.Since(start).Milliseconds()

			var statusErr *client.HTTPStatusError
			switch {
			case err == nil:
				r.StatusCode = resp.StatusCode
			case errors.As(err, &statusErr):
				r.StatusCode = statusErr.StatusCode
				r.Error = err.Error()
			default:
				r.Error = err.Error()
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func report(c *client.Client) map[string]serviceReport {
	statuses := c.CircuitBreakerStatuses()
	metrics := c.AllMetrics()

	out := make(map[string]serviceReport, len(metrics))
	for name, m := range metrics {
		out[name] = serviceReport{Breaker: statuses[name], Metrics: m}
	}
	return out
}
