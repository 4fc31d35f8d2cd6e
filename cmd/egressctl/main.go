// egressctl issues resilient outbound HTTP calls from the shell.
//
// Usage:
//
//	egressctl [--config egress.yaml] [--log-level debug] <command> [args]
//
// Commands:
//
//	get <url>                 one call, prints status, body and service metrics
//	request -X POST <url>     same with any method and an optional body
//	pages <url>               walks a paginated JSON API, prints all items
//	probe <url>...            concurrent calls, prints breaker status and metrics
//	serve --target <url>...   periodic probes plus /healthz, /readyz, /health, /metrics
//
// Exit codes: 0 on success, 1 when the command failed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version is set with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "egressctl:", err)
		return 1
	}
	return 0
}
