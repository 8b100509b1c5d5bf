// Package probe implements the reachability check that gates a CI job on a
// freshly deployed service. A Prober polls a URL with HTTP GET until it sees
// a 200 or exhausts its trial budget, sleeping a fixed delay after every
// counted failure.
//
// Only transport-level failures (refused, unreachable, DNS, timeout) count as
// trials by default. A non-200 response is polled again without counting
// unless Config.CountNonOK is set.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrMalformedURL is returned without any request when the target URL
	// cannot be used for an HTTP GET. It is never retried.
	ErrMalformedURL = errors.New("malformed URL")

	// ErrUnreachable is returned once the trial budget is exhausted.
	ErrUnreachable = errors.New("unreachable")
)

// Config holds the parameters for a single probe run.
type Config struct {
	URL        string
	Delay      time.Duration // wait after each counted failure
	MaxTrials  int
	Timeout    time.Duration // per request; 0 waits forever
	CountNonOK bool          // non-200 responses consume a trial
}

// State is the position of a run in its lifecycle.
type State int

const (
	Probing State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result summarises a finished run.
type Result struct {
	State    State
	Trials   int // counted failures
	Attempts int // requests issued
	Status   int // status of the last response, 0 if none arrived
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customises a Prober.
type Option func(*Prober)

// WithClient replaces the HTTP client. Config.Timeout is ignored when set.
func WithClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

// WithSleep replaces the delay implementation.
func WithSleep(fn SleepFunc) Option {
	return func(p *Prober) { p.sleep = fn }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) { p.log = l }
}

// Prober polls one URL. A Prober is not safe for concurrent Run calls.
type Prober struct {
	cfg     Config
	client  *http.Client
	sleep   SleepFunc
	log     *slog.Logger
	limiter *rate.Limiter // nil sends unpaced
}

// New creates a Prober for cfg. Nothing is sent until Run is called.
func New(cfg Config, opts ...Option) *Prober {
	p := &Prober{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sleep:  Sleep,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reachable runs a probe with default options and reports whether the
// target answered 200 within the trial budget.
func Reachable(ctx context.Context, cfg Config) bool {
	_, err := New(cfg).Run(ctx)
	return err == nil
}

// Run polls the target until it answers 200, the trial budget is spent, the
// URL turns out to be malformed, or ctx is cancelled. A nil error means the
// target is reachable.
func (p *Prober) Run(ctx context.Context) (Result, error) {
	res := Result{State: Probing}

	if err := ValidateURL(p.cfg.URL); err != nil {
		p.log.Error("invalid URL format", "url", p.cfg.URL, "error", err)
		res.State = Failed
		return res, err
	}

	var lastErr error
	for res.Trials < p.cfg.MaxTrials {
		if err := p.pace(ctx); err != nil {
			res.State = Failed
			return res, fmt.Errorf("probe: %w", err)
		}
		res.Attempts++
		status, err := p.get(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.State = Failed
			return res, fmt.Errorf("probe: %w", ctxErr)
		}

		if err == nil {
			res.Status = status
			if status == http.StatusOK {
				p.log.Info("website is reachable", "url", p.cfg.URL, "attempts", res.Attempts)
				res.State = Succeeded
				return res, nil
			}
			if !p.cfg.CountNonOK {
				p.log.Debug("unexpected status, polling again", "url", p.cfg.URL, "status", status)
				continue
			}
			err = fmt.Errorf("HTTP %d", status)
		}

		lastErr = err
		res.Trials++
		p.log.Warn("website is unreachable, retrying",
			"url", p.cfg.URL,
			"trial", res.Trials,
			"max_trials", p.cfg.MaxTrials,
			"retry_in", p.cfg.Delay,
			"error", err,
		)
		if err := p.sleep(ctx, p.cfg.Delay); err != nil {
			res.State = Failed
			return res, fmt.Errorf("probe: %w", err)
		}
	}

	res.State = Failed
	if lastErr == nil {
		return res, fmt.Errorf("probe: %w: no trials allowed", ErrUnreachable)
	}
	return res, fmt.Errorf("probe: %w after %d trials: %w", ErrUnreachable, res.Trials, lastErr)
}

// get issues one GET and returns the status code. The body is drained so the
// connection can be reused by the next attempt.
func (p *Prober) get(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

// ValidateURL reports ErrMalformedURL for anything an HTTP GET cannot be
// sent to: unparsable input, a missing or non-HTTP scheme, or no host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("probe: %w: %w", ErrMalformedURL, err)
	}
	switch u.Scheme {
	case "http", "https":
	case "":
		return fmt.Errorf("probe: %w: %q has no scheme, did you mean http://%s?", ErrMalformedURL, raw, raw)
	default:
		return fmt.Errorf("probe: %w: unsupported scheme %q", ErrMalformedURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("probe: %w: %q has no host", ErrMalformedURL, raw)
	}
	return nil
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
