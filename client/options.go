package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/urlclient/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	pool      Options
	userAgent string
	throttle  *throttle.Config
	logger    *slog.Logger
	tracer    trace.Tracer
	engine    EngineFactory
	transport func() http.RoundTripper
}

// WithOptions replaces every pool setting at once.
func WithOptions(o Options) Option {
	return func(c *options) error {
		c.pool = o
		return nil
	}
}

// WithThreads sets the number of workers.
func WithThreads(n int) Option {
	return func(c *options) error {
		c.pool.NumberOfThreads = n
		return nil
	}
}

// WithConnectionTimeout bounds the dial and TLS handshake of each transfer.
// Zero disables the bound.
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("connection timeout must not be negative")
		}
		c.pool.ConnectionTimeout = d
		return nil
	}
}

// WithRequestTimeout bounds each whole transfer, body included.
// Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("request timeout must not be negative")
		}
		c.pool.RequestTimeout = d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle paces transfers across all workers with the given
// transfers per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		c.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithTracer records a span per transfer. A no-op tracer is used otherwise.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		c.tracer = tracer
		return nil
	}
}

// WithEngine replaces the network engine. The factory is called once per
// worker during [Build]; a factory error aborts the build.
func WithEngine(factory EngineFactory) Option {
	return func(c *options) error {
		if factory == nil {
			return errors.New("engine factory must not be nil")
		}
		c.engine = factory
		return nil
	}
}

// WithTransport sets the base [http.RoundTripper] of each worker's engine.
// fn is called once per worker so that workers never share a connection pool
// unless fn returns a shared value.
func WithTransport(fn func() http.RoundTripper) Option {
	return func(c *options) error {
		if fn == nil {
			return errors.New("transport func must not be nil")
		}
		c.transport = fn
		return nil
	}
}
