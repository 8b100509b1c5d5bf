// Package transport provides http.RoundTripper decorators for the probe
// client. They follow the func(http.RoundTripper) http.RoundTripper pattern
// and compose in any order.
package transport

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Logger returns a decorator that emits one structured debug line per
// attempt, including method, URL, status and latency. Each request carries a
// unique X-Request-Id header so attempts can be matched in the target's logs.
func Logger(log *slog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			reqID := newRequestID()

			// RoundTrippers must not modify the caller's request.
			r = r.Clone(r.Context())
			r.Header.Set("X-Request-Id", reqID)

			resp, err := next.RoundTrip(r)
			if err != nil {
				log.Debug("attempt failed",
					"request_id", reqID,
					"method", r.Method,
					"url", r.URL.String(),
					"duration_ms", time.Since(start).Milliseconds(),
					"error", err,
				)
				return nil, err
			}

			log.Debug("attempt",
				"request_id", reqID,
				"method", r.Method,
				"url", r.URL.String(),
				"status", resp.StatusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return resp, nil
		})
	}
}

// UserAgent sets the User-Agent header on every request.
func UserAgent(ua string) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			r = r.Clone(r.Context())
			r.Header.Set("User-Agent", ua)
			return next.RoundTrip(r)
		})
	}
}

// Chain wraps base with the given decorators. The first decorator is the
// outermost one.
func Chain(base http.RoundTripper, decorators ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(decorators) - 1; i >= 0; i-- {
		base = decorators[i](base)
	}
	return base
}

func newRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
