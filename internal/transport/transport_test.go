package transport_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingurl/internal/transport"
)

// ── Logger ───────────────────────────────────────────────────────────────────

func TestLogger_AddsRequestID(t *testing.T) {
	var (
		mu         sync.Mutex
		receivedID string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		receivedID = r.Header.Get("X-Request-Id")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: transport.Chain(nil, transport.Logger(quietLogger()))}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, receivedID, "Logger must set X-Request-Id on the outgoing request")
	assert.Empty(t, req.Header.Get("X-Request-Id"), "the caller's request must not be mutated")
}

func TestLogger_PassesStatusThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := &http.Client{Transport: transport.Chain(nil, transport.Logger(log))}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Contains(t, buf.String(), "status=418")
}

func TestLogger_LogsTransportError(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	failing := transport.RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})
	client := &http.Client{Transport: transport.Chain(failing, transport.Logger(log))}

	_, err := client.Get("http://service.invalid/")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, buf.String(), "attempt failed")
}

func TestLogger_UniqueRequestIDs(t *testing.T) {
	ids := map[string]struct{}{}
	recordID := transport.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		ids[r.Header.Get("X-Request-Id")] = struct{}{}
		return okResponse(r), nil
	})
	rt := transport.Chain(recordID, transport.Logger(quietLogger()))

	for i := 0; i < 50; i++ {
		_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://target/", nil))
		require.NoError(t, err)
	}

	assert.Len(t, ids, 50, "every attempt should receive a unique X-Request-Id")
}

// ── UserAgent / Chain ────────────────────────────────────────────────────────

func TestUserAgent_SetsHeader(t *testing.T) {
	var got string
	rt := transport.Chain(transport.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		got = r.Header.Get("User-Agent")
		return okResponse(r), nil
	}), transport.UserAgent("pingurl/test"))

	_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://target/", nil))
	require.NoError(t, err)
	assert.Equal(t, "pingurl/test", got)
}

func TestChain_FirstDecoratorIsOutermost(t *testing.T) {
	var order []string
	tag := func(name string) func(http.RoundTripper) http.RoundTripper {
		return func(next http.RoundTripper) http.RoundTripper {
			return transport.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(r)
			})
		}
	}
	base := transport.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		order = append(order, "base")
		return okResponse(r), nil
	})

	rt := transport.Chain(base, tag("a"), tag("b"))
	_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://target/", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "base"}, order)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okResponse(r *http.Request) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     make(http.Header),
		Request:    r,
	}
}
