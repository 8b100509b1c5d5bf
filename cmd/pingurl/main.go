// Command pingurl is the entry point of the ping-url CI action. It polls a URL
// until it answers HTTP 200 and fails the step if it never does.
//
// Usage:
//
//	pingurl [-config path/to/pingurl.yaml]
//
// Inputs are read from the environment the action runner provides:
//
//	INPUT_URL           target to probe (required)
//	INPUT_DELAY         seconds to wait after each failed trial
//	INPUT_MAX_TRIALS    failed trials allowed before giving up
//	INPUT_TIMEOUT       per-request timeout, e.g. "10s" (default: none)
//	INPUT_NON_OK_POLICY "ignore" (default) or "count" non-200 responses
//	INPUT_MAX_RPS       request rate ceiling, 0 for none (default: 10)
//	INPUT_LOG_FORMAT    "text" (default) or "json"
//
// Exit status is 0 when the target is reachable, 1 when the URL is malformed
// or the trials ran out, 2 on bad configuration and 130 when interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pingurl/internal/config"
	"pingurl/internal/probe"
	"pingurl/internal/transport"
)

// Version information, set at build time via -ldflags.
//
//	-X main.version=$(git describe --tags --always)
//	-X main.commit=$(git rev-parse --short HEAD)
//	-X main.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const (
	exitReachable   = 0
	exitFailed      = 1
	exitConfig      = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "optional YAML file; INPUT_* variables take precedence")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return exitConfig
	}
	slog.SetDefault(newLogger(cfg.LogFormat))

	// ── Cancel on SIGINT / SIGTERM ────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Build the prober ──────────────────────────────────────────────────────
	client := &http.Client{
		Timeout: cfg.ParsedTimeout(),
		Transport: transport.Chain(http.DefaultTransport,
			transport.UserAgent("pingurl/"+version),
			transport.Logger(slog.Default()),
		),
	}
	p := probe.New(probe.Config{
		URL:        cfg.URL,
		Delay:      cfg.ParsedDelay(),
		MaxTrials:  cfg.MaxTrials,
		Timeout:    cfg.ParsedTimeout(),
		CountNonOK: cfg.CountNonOK(),
	}, probe.WithClient(client), probe.WithRateLimit(cfg.MaxRPS, 1))

	slog.Info("probing",
		"url", cfg.URL,
		"delay", cfg.ParsedDelay(),
		"max_trials", cfg.MaxTrials,
		"timeout", cfg.ParsedTimeout(),
		"non_ok_policy", cfg.NonOKPolicy,
		"version", version,
		"commit", commit,
		"build_date", buildDate,
	)

	res, err := p.Run(ctx)
	return exitCode(cfg.URL, res, err)
}

// exitCode is the only place a probe outcome becomes a process status.
func exitCode(url string, res probe.Result, err error) int {
	switch {
	case err == nil:
		return exitReachable
	case errors.Is(err, context.Canceled):
		slog.Warn("interrupted", "url", url, "trials", res.Trials, "attempts", res.Attempts)
		return exitInterrupted
	default:
		slog.Error("website is malformed or unreachable",
			"url", url,
			"trials", res.Trials,
			"attempts", res.Attempts,
			"error", err,
		)
		return exitFailed
	}
}

// newLogger writes to stdout so the action log shows one line per attempt.
// RUNNER_DEBUG is set by the Actions runner when step debugging is enabled.
func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("RUNNER_DEBUG") == "1" {
		opts.Level = slog.LevelDebug
	}
	if format == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
