package transfer

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Result is the terminal outcome of one fetch. At most one of Err and
// Canceled is set; Content is only populated on success.
type Result struct {
	Content  []byte
	Err      error
	Canceled bool
}

// Engine performs one blocking fetch of url. canceled is polled while the
// transfer runs; a nil canceled func is treated as never canceled.
type Engine interface {
	Fetch(ctx context.Context, url string, canceled func() bool) Result
}

// Factory builds the Engine owned by the given worker index.
type Factory func(worker int, cfg Config) (Engine, error)

// Config defines the settings shared by every engine of a pool.
//
// A zero ConnectionTimeout or RequestTimeout disables that bound.
type Config struct {
	ConnectionTimeout time.Duration
	RequestTimeout    time.Duration
	UserAgent         string
	Logger            *slog.Logger

	// Transport replaces the engine's private *http.Transport. When set,
	// ConnectionTimeout is the caller's responsibility.
	Transport http.RoundTripper
}

// HTTPFactory is the default Factory, building one [HTTP] engine per worker.
func HTTPFactory(_ int, cfg Config) (Engine, error) {
	return NewHTTP(cfg)
}

func canceledResult() Result {
	return Result{Canceled: true}
}

func never() bool { return false }
