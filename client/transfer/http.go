package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	// maxPrealloc bounds the buffer growth done up front from Content-Length.
	maxPrealloc = 8 << 20 // 8MB

	// maxDrain bounds how much of an unread body is discarded so the
	// connection can go back to the idle pool.
	maxDrain = 64 << 10 // 64KB
)

// HTTP is an [Engine] backed by a private [http.Client].
// It is not meant to be shared between workers.
type HTTP struct {
	c      *http.Client
	logger *slog.Logger
}

// NewHTTP builds an HTTP engine. ConnectionTimeout bounds the dial and TLS
// handshake, RequestTimeout bounds the whole transfer including the body.
func NewHTTP(cfg Config) (*HTTP, error) {
	if cfg.ConnectionTimeout < 0 {
		return nil, errors.New("connection timeout must not be negative")
	}
	if cfg.RequestTimeout < 0 {
		return nil, errors.New("request timeout must not be negative")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := cfg.Transport
	if transport == nil {
		dialer := &net.Dialer{
			Timeout:   cfg.ConnectionTimeout,
			KeepAlive: 30 * time.Second,
		}
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   cfg.ConnectionTimeout,
			MaxIdleConns:          8,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}
	if cfg.UserAgent != "" {
		transport = userAgent{value: cfg.UserAgent, base: transport}
	}

	return &HTTP{
		c: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Fetch issues a GET for rawURL and streams the body into memory.
func (h *HTTP) Fetch(ctx context.Context, rawURL string, canceled func() bool) Result {
	if canceled == nil {
		canceled = never
	}
	if canceled() {
		return canceledResult()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return classify(canceled, fmt.Errorf("instantiating request: %w", err))
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := h.c.Do(req)
	if err != nil {
		return classify(canceled, fmt.Errorf("exec http do: %w", err))
	}

	defer func() {
		if !canceled() {
			if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain)); err != nil {
				h.logger.Debug("failed to discard unused body", "url", rawURL, "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			h.logger.Error("failed to close response body", "url", rawURL, "error", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}
		if canceled() {
			return canceledResult()
		}

		return Result{Err: &UnexpectedStatusError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       string(b),
			Err:        ErrUnexpectedStatusCode,
		}}
	}

	t := newTask(rawURL, resp.ContentLength, canceled, h.logger)
	if _, err := io.Copy(t, resp.Body); err != nil {
		return classify(canceled, fmt.Errorf("reading body: %w", err))
	}
	t.done()

	return Result{Content: t.content.Bytes()}
}

// classify maps a failed transfer onto its terminal Result.
// A set cancel flag wins over whatever error the abort produced.
func classify(canceled func() bool, err error) Result {
	switch {
	case canceled(), errors.Is(err, ErrAborted):
		return canceledResult()
	case isTimeout(err):
		return Result{Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
	case errors.Is(err, context.Canceled):
		return canceledResult()
	default:
		return Result{Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// task pairs a fetch with its accumulation buffer. It is the write sink for
// the response body and polls the cancel flag on every chunk.
type task struct {
	url      string
	content  bytes.Buffer
	canceled func() bool
	logger   *slog.Logger
	received int64
	total    int64
	start    time.Time
	lastLog  time.Time
}

func newTask(url string, total int64, canceled func() bool, logger *slog.Logger) *task {
	t := task{
		url:      url,
		canceled: canceled,
		logger:   logger,
		total:    total,
		start:    time.Now(),
	}
	t.lastLog = t.start
	if total > 0 {
		t.content.Grow(int(min(total, maxPrealloc)))
	}

	return &t
}

func (t *task) Write(p []byte) (int, error) {
	if t.canceled() {
		return 0, ErrAborted
	}

	n, err := t.content.Write(p)
	t.received += int64(n)

	if time.Since(t.lastLog) >= time.Second {
		t.lastLog = time.Now()
		t.log("transfer progress")
	}

	return n, err
}

func (t *task) done() {
	if time.Since(t.start) >= time.Second {
		t.log("transfer complete")
	}
}

func (t *task) log(msg string) {
	if !t.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	elapsed := time.Since(t.start)
	attrs := []any{
		"url", t.url,
		"elapsed", elapsed.Round(time.Millisecond),
		"received", t.received,
		"total", t.total,
		"mbps", fmt.Sprintf("%.2f", float64(t.received)/elapsed.Seconds()/(1024*1024)),
	}
	if t.total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(t.received)/float64(t.total)*100))
	}
	t.logger.Debug(msg, attrs...)
}
