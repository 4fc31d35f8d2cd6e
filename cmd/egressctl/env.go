package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/egress/client"
	"github.com/jonwraymond/egress/config"
	"github.com/jonwraymond/egress/observe"
	"github.com/jonwraymond/egress/paginate"
)

// env is what every command runs against.
type env struct {
	cfg     *config.Config
	obs     observe.Observer
	client  *client.Client
	fetcher *paginate.Fetcher
}

// newEnv loads the configuration named by --config, applies the global flag
// overrides and tweak, and builds the client.
func newEnv(ctx context.Context, cmd *cli.Command, tweak func(*config.Config)) (*env, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.Observe.Logging.Enabled = true
		cfg.Observe.Logging.Level = level
	}
	if tweak != nil {
		tweak(cfg)
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, err
	}
	inst, err := observe.InstrumentationFromObserver(obs)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}

	c := client.New(cfg.ClientOptions(reg, inst)...)
	return &env{
		cfg:     cfg,
		obs:     obs,
		client:  c,
		fetcher: paginate.New(c, cfg.PaginateOptions()...),
	}, nil
}

func (e *env) Close(ctx context.Context) error {
	e.client.Close()
	return e.obs.Shutdown(context.WithoutCancel(ctx))
}

// requestOptions turns the shared request flags into client options.
func requestOptions(cmd *cli.Command) ([]client.RequestOption, error) {
	var opts []client.RequestOption
	if s := cmd.String("service"); s != "" {
		opts = append(opts, client.WithService(s))
	}
	for _, h := range cmd.StringSlice("header") {
		k, v, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		opts = append(opts, client.WithHeader(strings.TrimSpace(k), strings.TrimSpace(v)))
	}
	return opts, nil
}

func parseParams(pairs []string) (url.Values, error) {
	params := make(url.Values, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, want key=value", p)
		}
		params.Add(k, v)
	}
	return params, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "header",
			Aliases: []string{"H"},
			Usage:   "request header as \"Name: value\", repeatable",
		},
		&cli.StringFlag{
			Name:  "service",
			Usage: "service name, instead of classifying the URL",
		},
	}
}
