package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adamwoolhether/urlclient/client/transfer"
)

// RequestID identifies one request for the lifetime of a [Client].
// IDs start at 1 and strictly increase in issuance order.
type RequestID uint64

// Callback receives the terminal [Response] of a request. It runs on a
// worker goroutine and must not block indefinitely.
type Callback func(Response)

// Response is the terminal outcome of a request. Exactly one is delivered
// per request. On success Err is nil and Canceled is false; a canceled
// request carries no content and no error.
type Response struct {
	Content  []byte
	Err      error
	Canceled bool
}

func canceledResponse() Response {
	return Response{Canceled: true}
}

// Options defines the pool settings fixed at [Build].
type Options struct {
	NumberOfThreads   int           `json:"numberOfThreads" validate:"min=1"`
	ConnectionTimeout time.Duration `json:"connectionTimeout" validate:"gte=0"`
	RequestTimeout    time.Duration `json:"requestTimeout" validate:"gte=0"`
}

// DefaultOptions returns 6 workers, a 3s connection timeout and a 30s
// request timeout.
func DefaultOptions() Options {
	return Options{
		NumberOfThreads:   6,
		ConnectionTimeout: 3000 * time.Millisecond,
		RequestTimeout:    30000 * time.Millisecond,
	}
}

// request is owned by the queue while pending and by exactly one worker
// while in flight.
type request struct {
	id       RequestID
	url      string
	callback Callback
	canceled atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newRequest(url string, cb Callback) *request {
	ctx, cancel := context.WithCancel(context.Background())

	return &request{
		url:      url,
		callback: cb,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// markCanceled sets the sticky cancel flag and aborts any blocked I/O.
func (r *request) markCanceled() {
	r.canceled.Store(true)
	r.cancel()
}

func (r *request) isCanceled() bool {
	return r.canceled.Load()
}

func fromResult(res transfer.Result) Response {
	return Response(res)
}
