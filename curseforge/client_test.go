package curseforge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"curseforge-mod-fetcher/config"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		APIKey:    "test-key",
		APIURL:    baseURL,
		GameID:    config.DefaultGameID,
		UserAgent: "fetcher-test/1.0",
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(testConfig(srv.URL), opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestParamsEncodeOmitsEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{"nil", nil, ""},
		{"all empty", Params{"a": "", "b": ""}, ""},
		{"sorted", Params{"sortField": "2", "gameId": "432"}, "gameId=432&sortField=2"},
		{"mixed", Params{"searchFilter": "", "pageSize": "20", "gameVersion": ""}, "pageSize=20"},
		{"escaped", Params{"searchFilter": "just enough items"}, "searchFilter=just+enough+items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Encode(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGet_SendsHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		if got := r.Header.Get("User-Agent"); got != "fetcher-test/1.0" {
			t.Errorf("User-Agent = %q, want fetcher-test/1.0", got)
		}
		if r.URL.RawQuery != "gameId=432" {
			t.Errorf("query = %q, want gameId=432", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var resp envelope[string]
	if err := c.Get(context.Background(), "/v1/echo", Params{"gameId": "432", "searchFilter": ""}, &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Data != "ok" {
		t.Errorf("data = %q, want ok", resp.Data)
	}
}

func TestGet_HTTPStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(strings.Repeat("x", 2*maxErrorBodyBytes)))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Get(context.Background(), "/v1/mods/1", nil, &envelope[*Mod]{})

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", statusErr.StatusCode)
	}
	if len(statusErr.Body) != maxErrorBodyBytes {
		t.Errorf("Body length = %d, want truncated to %d", len(statusErr.Body), maxErrorBodyBytes)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error message should carry the status code: %v", err)
	}
}

func TestGet_DecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Get(context.Background(), "/v1/mods/search", nil, &envelope[[]Mod]{})

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
}

func TestGet_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(t, srv, WithTimeout(50*time.Millisecond))
	err := c.Get(context.Background(), "/v1/mods/1", nil, &envelope[*Mod]{})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if !netErr.Timeout {
		t.Error("expected Timeout to be set")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error message should mention timeout: %v", err)
	}
}

func TestGet_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	c, err := NewClient(testConfig(baseURL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = c.Get(context.Background(), "/v1/mods/1", nil, nil)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if !IsTransient(err) {
		t.Error("network errors should be transient")
	}
}

func TestGet_NoRetryByDefault(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if err := c.Get(context.Background(), "/v1/mods/1", nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestGet_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithRetry(3, time.Millisecond))
	var resp envelope[string]
	if err := c.Get(context.Background(), "/v1/echo", nil, &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithRetry(3, time.Millisecond))
	if err := c.Get(context.Background(), "/v1/mods/1", nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

// A missing key must fail before anything touches the network.
func TestNewClient_MissingKeyMakesNoRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = ""
	c, err := NewClient(cfg)

	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.ConfigurationError, got %T: %v", err, err)
	}
	if c != nil {
		t.Error("expected nil client")
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{" 10 ", 10 * time.Second},
		{"-1", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	t.Parallel()

	if got := routeLabel("/v1/mods/42/files/7/download-url"); got != "/v1/mods/:id/files/:id/download-url" {
		t.Errorf("routeLabel = %q", got)
	}
	if got := routeLabel("/v1/mods/search"); got != "/v1/mods/search" {
		t.Errorf("routeLabel = %q", got)
	}
}
