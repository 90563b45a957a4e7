package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestEngine(t *testing.T, cfg Config) *HTTP {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e, err := NewHTTP(cfg)
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}

	return e
}

func TestNewHTTP_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		cfg    Config
		expErr bool
	}{
		{name: "Zero values", cfg: Config{}},
		{name: "Defaults", cfg: Config{ConnectionTimeout: 3 * time.Second, RequestTimeout: 30 * time.Second}},
		{name: "Negative connection timeout", cfg: Config{ConnectionTimeout: -1}, expErr: true},
		{name: "Negative request timeout", cfg: Config{RequestTimeout: -1}, expErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewHTTP(tc.cfg)
			if tc.expErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.expErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestHTTP_Fetch_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		fmt.Fprint(w, "hello")
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{RequestTimeout: 5 * time.Second})

	got := e.Fetch(t.Context(), ts.URL, nil)
	want := Result{Content: []byte("hello")}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTP_Fetch_EmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{})

	res := e.Fetch(t.Context(), ts.URL, nil)
	if res.Err != nil || res.Canceled {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(res.Content) != 0 {
		t.Errorf("expected empty content, got %q", res.Content)
	}
}

func TestHTTP_Fetch_LargeBody(t *testing.T) {
	body := strings.Repeat("tile", 64<<10)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{})

	res := e.Fetch(t.Context(), ts.URL, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if string(res.Content) != body {
		t.Errorf("expected %d bytes, got %d", len(body), len(res.Content))
	}
}

func TestHTTP_Fetch_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "no such tile")
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{})

	res := e.Fetch(t.Context(), ts.URL+"/14/8192/5461.mvt", nil)
	if res.Canceled {
		t.Fatal("expected error result, got canceled")
	}
	if len(res.Content) != 0 {
		t.Errorf("expected empty content, got %q", res.Content)
	}

	var statusErr *UnexpectedStatusError
	if !errors.As(res.Err, &statusErr) {
		t.Fatalf("expected *UnexpectedStatusError, got %T: %v", res.Err, res.Err)
	}
	if !errors.Is(res.Err, ErrUnexpectedStatusCode) {
		t.Errorf("expected ErrUnexpectedStatusCode, got %v", res.Err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", statusErr.StatusCode)
	}
	if statusErr.Body != "no such tile" {
		t.Errorf("expected body %q, got %q", "no such tile", statusErr.Body)
	}
	if !strings.Contains(statusErr.Error(), "404") {
		t.Errorf("expected status in message, got %q", statusErr.Error())
	}
}

func TestHTTP_Fetch_ErrorBodyTruncated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, strings.Repeat("x", maxErrBodySize*2))
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{})

	res := e.Fetch(t.Context(), ts.URL, nil)

	var statusErr *UnexpectedStatusError
	if !errors.As(res.Err, &statusErr) {
		t.Fatalf("expected *UnexpectedStatusError, got %v", res.Err)
	}
	if len(statusErr.Body) != maxErrBodySize {
		t.Errorf("expected body capped at %d, got %d", maxErrBodySize, len(statusErr.Body))
	}
}

func TestHTTP_Fetch_RequestTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{RequestTimeout: 50 * time.Millisecond})

	res := e.Fetch(t.Context(), ts.URL, nil)
	if res.Canceled {
		t.Fatal("timeout must not be reported as canceled")
	}
	if !errors.Is(res.Err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", res.Err)
	}
	if !strings.HasPrefix(res.Err.Error(), "timeout") {
		t.Errorf("expected message to start with timeout, got %q", res.Err.Error())
	}
}

func TestHTTP_Fetch_BodyTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "partial")
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{RequestTimeout: 100 * time.Millisecond})

	res := e.Fetch(t.Context(), ts.URL, nil)
	if !errors.Is(res.Err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", res.Err)
	}
	if len(res.Content) != 0 {
		t.Errorf("expected no content on timeout, got %q", res.Content)
	}
}

func TestHTTP_Fetch_MalformedURL(t *testing.T) {
	e := newTestEngine(t, Config{})

	for _, u := range []string{"://missing-scheme", "http://[::1", "unsupported://host/path"} {
		t.Run(u, func(t *testing.T) {
			res := e.Fetch(t.Context(), u, nil)
			if !errors.Is(res.Err, ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", res.Err)
			}
			if res.Canceled {
				t.Error("expected error result, got canceled")
			}
		})
	}
}

func TestHTTP_Fetch_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	e := newTestEngine(t, Config{ConnectionTimeout: time.Second})

	res := e.Fetch(t.Context(), addr, nil)
	if !errors.Is(res.Err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", res.Err)
	}
}

func TestHTTP_Fetch_CanceledBeforeStart(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{})

	res := e.Fetch(t.Context(), ts.URL, func() bool { return true })
	if diff := cmp.Diff(Result{Canceled: true}, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("expected no network access, server saw %d requests", n)
	}
}

func TestHTTP_Fetch_CanceledMidBody(t *testing.T) {
	var flag atomic.Bool
	wrote := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			if _, err := fmt.Fprint(w, "chunk"); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			if i == 0 {
				close(wrote)
			}

			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			case <-time.After(2 * time.Second):
				return
			}
		}
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{RequestTimeout: 5 * time.Second})

	go func() {
		<-wrote
		flag.Store(true)
	}()

	res := e.Fetch(t.Context(), ts.URL, flag.Load)
	if diff := cmp.Diff(Result{Canceled: true}, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTP_Fetch_ContextCanceled(t *testing.T) {
	started := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{})

	ctx, cancel := context.WithCancel(t.Context())
	var flag atomic.Bool

	go func() {
		<-started
		flag.Store(true)
		cancel()
	}()

	start := time.Now()
	res := e.Fetch(ctx, ts.URL, flag.Load)
	if !res.Canceled {
		t.Fatalf("expected canceled result, got %+v", res)
	}
	if res.Err != nil {
		t.Errorf("canceled result must not carry an error, got %v", res.Err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, expected prompt abort", elapsed)
	}
}

func TestHTTP_Fetch_UserAgent(t *testing.T) {
	expectedUA := "urlclient-test/1.0"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != expectedUA {
			t.Errorf("expected User-Agent %q, got %q", expectedUA, ua)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer ts.Close()

	e := newTestEngine(t, Config{UserAgent: expectedUA})

	if res := e.Fetch(t.Context(), ts.URL, nil); res.Err != nil {
		t.Errorf("unexpected error: %v", res.Err)
	}
}

type countingTransport struct {
	calls atomic.Int32
	base  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.base.RoundTrip(r)
}

func TestHTTP_Fetch_CustomTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer ts.Close()

	rt := &countingTransport{base: http.DefaultTransport}
	e := newTestEngine(t, Config{Transport: rt})

	for range 3 {
		if res := e.Fetch(t.Context(), ts.URL, nil); res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
	}

	if n := rt.calls.Load(); n != 3 {
		t.Errorf("expected 3 round trips through custom transport, got %d", n)
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		canceled bool
		err      error
		expIs    error
		expCncl  bool
	}{
		{name: "Flag wins", canceled: true, err: context.DeadlineExceeded, expCncl: true},
		{name: "Aborted by sink", err: fmt.Errorf("reading body: %w", ErrAborted), expCncl: true},
		{name: "Context canceled", err: context.Canceled, expCncl: true},
		{name: "Deadline", err: context.DeadlineExceeded, expIs: ErrTimeout},
		{name: "Other", err: errors.New("connection reset by peer"), expIs: ErrTransport},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := classify(func() bool { return tc.canceled }, tc.err)

			if res.Canceled != tc.expCncl {
				t.Errorf("expected canceled=%t, got %t", tc.expCncl, res.Canceled)
			}
			if tc.expCncl && res.Err != nil {
				t.Errorf("expected no error on cancel, got %v", res.Err)
			}
			if tc.expIs != nil && !errors.Is(res.Err, tc.expIs) {
				t.Errorf("expected %v, got %v", tc.expIs, res.Err)
			}
		})
	}
}
