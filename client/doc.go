// Package client provides the asynchronous URL fetcher: a fixed pool of
// workers pulling requests from a shared queue, with cooperative
// cancellation and exactly-once result delivery.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options. Workers start
// immediately:
//
//	c, err := client.Build(
//		client.WithThreads(4),
//		client.WithRequestTimeout(10 * time.Second),
//		client.WithUserAgent("tiles/1.0"),
//	)
//	defer c.Close()
//
// # Requests
//
// [Client.AddRequest] queues a fetch and returns at once. The callback runs
// exactly once on a worker goroutine; marshal the result to another
// goroutine yourself if affinity matters:
//
//	id := c.AddRequest("https://tiles.example.com/14/8192/5461.mvt", func(r client.Response) {
//		switch {
//		case r.Canceled:
//		case r.Err != nil:
//			// errors.Is(r.Err, client.ErrTimeout), client.ErrTransport, ...
//		default:
//			tiles <- r.Content
//		}
//	})
//
// # Cancellation
//
// [Client.CancelRequest] is advisory. A request still queued is skipped
// without touching the network; one in flight is aborted at the next
// progress poll of its transfer. If the transfer already finished, the
// original result is delivered and the cancel is a no-op.
//
// # Shutdown
//
// [Client.Close] cancels everything outstanding, waits for every callback
// to fire and for all workers to exit.
//
// # Testing
//
// Swap the network for an in-memory engine with [WithEngine]:
//
//	m := transfer.NewMock()
//	m.Put("https://tiles.example.com/a", []byte("tile"))
//	c, err := client.Build(client.WithEngine(m.Factory()))
package client
