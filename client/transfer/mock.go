package transfer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// pollInterval is how often a waiting Mock fetch checks its cancel flag.
const pollInterval = 5 * time.Millisecond

// Mock is an in-memory [Engine] serving content registered per URL.
// It is safe for concurrent use, so a single Mock can back every worker.
//
// URLs with no registered content answer with a 404 [UnexpectedStatusError].
type Mock struct {
	mu      sync.Mutex
	entries map[string]*mockEntry
	calls   map[string]int
}

type mockEntry struct {
	content []byte
	found   bool
	err     error
	delay   time.Duration
	gate    chan struct{}
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{
		entries: make(map[string]*mockEntry),
		calls:   make(map[string]int),
	}
}

// Put registers content to be served for url.
func (m *Mock) Put(url string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(url)
	e.content = bytes.Clone(content)
	e.found = true
}

// PutError makes every fetch of url fail with err.
func (m *Mock) PutError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entry(url).err = err
}

// PutDelay delays every fetch of url by d before answering.
func (m *Mock) PutDelay(url string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entry(url).delay = d
}

// Block holds every fetch of url until the returned release func is called.
// Blocked fetches still honor cancellation and timeouts.
func (m *Mock) Block(url string) (release func()) {
	gate := make(chan struct{})

	m.mu.Lock()
	m.entry(url).gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls reports how many fetches of url reached the mock without being
// canceled beforehand.
func (m *Mock) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[url]
}

// Factory hands the Mock to every worker, applying each worker's
// RequestTimeout to its fetches.
func (m *Mock) Factory() Factory {
	return func(_ int, cfg Config) (Engine, error) {
		return &mockWorker{m: m, timeout: cfg.RequestTimeout}, nil
	}
}

// Fetch serves url from memory without any timeout.
func (m *Mock) Fetch(ctx context.Context, url string, canceled func() bool) Result {
	return m.fetch(ctx, url, canceled, 0)
}

func (m *Mock) fetch(ctx context.Context, url string, canceled func() bool, timeout time.Duration) Result {
	if canceled == nil {
		canceled = never
	}
	if canceled() {
		return canceledResult()
	}

	m.mu.Lock()
	m.calls[url]++
	var e mockEntry
	if stored, ok := m.entries[url]; ok {
		e = *stored
	}
	m.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := wait(ctx, e, canceled); err != nil {
		return classify(canceled, fmt.Errorf("mock fetch %s: %w", url, err))
	}
	if canceled() {
		return canceledResult()
	}

	switch {
	case e.err != nil:
		return Result{Err: fmt.Errorf("%w: %w", ErrTransport, e.err)}
	case !e.found:
		return Result{Err: &UnexpectedStatusError{
			URL:        url,
			StatusCode: http.StatusNotFound,
			Body:       http.StatusText(http.StatusNotFound),
			Err:        ErrUnexpectedStatusCode,
		}}
	}

	return Result{Content: bytes.Clone(e.content)}
}

// wait blocks for the entry's delay and gate, polling canceled.
func wait(ctx context.Context, e mockEntry, canceled func() bool) error {
	var timer <-chan time.Time
	if e.delay > 0 {
		t := time.NewTimer(e.delay)
		defer t.Stop()
		timer = t.C
	}

	gate := e.gate
	if timer == nil && gate == nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for timer != nil || gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer:
			timer = nil
		case <-gate:
			gate = nil
		case <-ticker.C:
			if canceled() {
				return ErrAborted
			}
		}
	}

	return nil
}

func (m *Mock) entry(url string) *mockEntry {
	e, ok := m.entries[url]
	if !ok {
		e = &mockEntry{}
		m.entries[url] = e
	}

	return e
}

// mockWorker is one worker's view of a shared Mock.
type mockWorker struct {
	m       *Mock
	timeout time.Duration
}

func (w *mockWorker) Fetch(ctx context.Context, url string, canceled func() bool) Result {
	return w.m.fetch(ctx, url, canceled, w.timeout)
}

var _ Engine = (*Mock)(nil)
var _ Engine = (*HTTP)(nil)
