// Package transfer performs single, blocking URL fetches into memory.
//
// # Engines
//
// An [Engine] fetches one URL and classifies the outcome into a [Result].
// [HTTP] is the network-backed engine built on [net/http]:
//
//	e, err := transfer.NewHTTP(transfer.Config{
//		ConnectionTimeout: 3 * time.Second,
//		RequestTimeout:    30 * time.Second,
//	})
//	res := e.Fetch(ctx, "https://example.com/tile.mvt", canceled)
//
// Each HTTP engine owns its own [http.Transport], so connections are reused
// across the successive fetches of whoever owns the engine and are never
// shared with other engines.
//
// # Cancellation
//
// Fetch takes a canceled func which is polled before the request is issued
// and on every chunk of body received. Cancelling ctx aborts blocked dials
// and reads immediately. Either path yields a Result with Canceled set and no
// content or error.
//
// # Testing
//
// [Mock] serves in-memory content keyed by URL and never touches the
// network. Use [Mock.Factory] to hand it to a pool of workers.
package transfer
