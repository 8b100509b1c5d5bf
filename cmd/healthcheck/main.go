// Command healthcheck is a single-attempt variant of pingurl for use as
// Docker's HEALTHCHECK CMD. It exits 0 when the target URL answers 200, and 1
// otherwise. Any non-200 status counts as a failure.
//
// Usage:
//
//	healthcheck <url>
//
// Example (in Dockerfile):
//
//	HEALTHCHECK CMD ["/bin/healthcheck", "http://localhost:8080/healthz"]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"pingurl/internal/probe"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: healthcheck <url>")
		return 1
	}

	p := probe.New(probe.Config{
		URL:        args[0],
		MaxTrials:  1,
		Timeout:    3 * time.Second,
		CountNonOK: true,
	},
		probe.WithSleep(func(context.Context, time.Duration) error { return nil }),
		probe.WithLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))),
	)

	if _, err := p.Run(context.Background()); err != nil {
		fmt.Fprintf(stderr, "healthcheck: %v\n", err)
		return 1
	}
	return 0
}
