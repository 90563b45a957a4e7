package client

import (
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/urlclient/client/throttle"
	"github.com/adamwoolhether/urlclient/client/transfer"
)

// Client queues URL fetches and runs them on a fixed pool of workers,
// delivering exactly one [Response] per request through its [Callback].
type Client struct {
	opts   Options
	q      *queue
	logger *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Build creates a Client and starts its workers. Every worker's engine is
// created before any worker starts, so a failing option, invalid [Options]
// or engine error leaves nothing running.
func Build(optFns ...Option) (*Client, error) {
	opts := options{pool: DefaultOptions()}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if err := opts.pool.Validate(); err != nil {
		return nil, fmt.Errorf("validating options: %w", err)
	}

	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	factory := opts.engine
	if factory == nil {
		factory = transfer.HTTPFactory
	}

	var gate *throttle.Gate
	if opts.throttle != nil {
		g, err := throttle.New(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return logger })
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		gate = g
	}

	c := Client{
		opts:   opts.pool,
		q:      newQueue(),
		logger: logger,
	}

	workers := make([]*worker, opts.pool.NumberOfThreads)
	for i := range workers {
		cfg := transfer.Config{
			ConnectionTimeout: opts.pool.ConnectionTimeout,
			RequestTimeout:    opts.pool.RequestTimeout,
			UserAgent:         opts.userAgent,
			Logger:            logger,
		}
		if opts.transport != nil {
			cfg.Transport = opts.transport()
		}

		engine, err := factory(i, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating engine for worker %d: %w", i, err)
		}
		if engine == nil {
			return nil, fmt.Errorf("creating engine for worker %d: factory returned nil", i)
		}

		workers[i] = &worker{
			index:  i,
			q:      c.q,
			engine: engine,
			gate:   gate,
			tracer: tracer,
			logger: logger,
		}
	}

	for _, w := range workers {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			w.run()
		}()
	}

	logger.Info("url client started",
		"workers", opts.pool.NumberOfThreads,
		"connectionTimeout", opts.pool.ConnectionTimeout.String(),
		"requestTimeout", opts.pool.RequestTimeout.String(),
	)

	return &c, nil
}

// AddRequest queues a fetch of url and returns its id without waiting on
// the network. url is not validated here; a malformed URL surfaces as an
// [ErrTransport] Response. cb may be nil to discard the result.
//
// After [Client.Close] the id is still allocated and cb is invoked
// synchronously with a canceled Response.
func (c *Client) AddRequest(url string, cb Callback) RequestID {
	r := newRequest(url, cb)

	if !c.q.push(r) {
		r.markCanceled()
		c.logger.Debug("request added after close", "id", r.id, "url", url)
		deliver(c.logger, r, canceledResponse())
		return r.id
	}

	c.logger.Debug("request added", "id", r.id, "url", url)

	return r.id
}

// CancelRequest asks for id to stop. Pending requests are skipped without
// touching the network; in-flight transfers are aborted at the next
// progress poll. Unknown or completed ids are ignored. It never waits for
// the transfer to stop.
func (c *Client) CancelRequest(id RequestID) {
	if c.q.cancel(id) {
		c.logger.Debug("request cancel requested", "id", id)
	}
}

// Close stops the pool. Every pending and in-flight request is canceled
// and receives its callback before Close returns. Transfers that complete
// before noticing the cancel still deliver their real result.
//
// Close is idempotent and always returns nil. It must not be called from
// a Callback.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		pending, inFlight := c.q.close()
		c.logger.Info("url client shutting down", "pending", pending, "inFlight", inFlight)

		c.wg.Wait()

		c.logger.Info("url client stopped")
	})

	return nil
}

// Options returns the settings the Client was built with.
func (c *Client) Options() Options {
	return c.opts
}

// Pending reports how many requests are waiting for a worker.
func (c *Client) Pending() int {
	pending, _ := c.q.stats()
	return pending
}

// InFlight reports how many requests a worker currently owns.
func (c *Client) InFlight() int {
	_, inFlight := c.q.stats()
	return inFlight
}
