// Package throttle paces transfers across a worker pool using a
// token-bucket limiter from [golang.org/x/time/rate].
//
// # Usage
//
// Build a [Gate] and call [Gate.Wait] before each transfer:
//
//	g, err := throttle.New(
//		10, // transfers per second
//		5,  // burst capacity
//		func() *slog.Logger { return slog.Default() },
//	)
//	if err := g.Wait(ctx); err != nil {
//		// ctx ended while waiting for a token
//	}
//
// A nil *Gate never blocks, so callers don't need to branch on whether
// throttling is configured.
package throttle
