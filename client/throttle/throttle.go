package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the gate's transfers per second and burst capacity.
type Config struct {
	RPS   int
	Burst int
}

// Gate hands out transfer tokens shared by every worker of a pool.
type Gate struct {
	limiter *rate.Limiter
	cfg     Config
	logFn   func() *slog.Logger
}

// New returns a Gate admitting rps transfers per second with the given burst.
// logFn lazily resolves the logger at wait time; a nil-returning logFn
// disables the exhaustion logs.
func New(rps, burst int, logFn func() *slog.Logger) (*Gate, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cfg:     Config{RPS: rps, Burst: burst},
		logFn:   logFn,
	}, nil
}

// Config reports the rate the gate was built with.
func (g *Gate) Config() Config {
	if g == nil {
		return Config{}
	}

	return g.cfg
}

// Wait blocks until a token is available or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	var waited time.Duration
	logger := g.logFn()
	if logger != nil && g.limiter.Tokens() < 1 {
		logger.Debug("throttle tokens exhausted", "rate", g.cfg.RPS, "burst", g.cfg.Burst)

		defer func() {
			logger.Debug("throttle wait complete", "waited", waited.String(), "rate", g.cfg.RPS, "burst", g.cfg.Burst)
		}()
	}

	start := time.Now()

	err := g.limiter.Wait(ctx)
	waited = time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w: %w", ErrWaitingFailed, ErrContextEnded, ctxErr)
		}
		return fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		return fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return nil
}
