package transfer

import (
	"errors"
	"fmt"
)

// maxErrBodySize caps the amount of response body kept when
// building an error for a non-success status code.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrTimeout marks a transfer that exceeded its connection or request timeout.
	ErrTimeout = errors.New("timeout")
	// ErrTransport marks DNS, connection, malformed URL and interrupted body failures.
	ErrTransport = errors.New("transport failure")
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAborted is returned by the body sink once the transfer is canceled.
	ErrAborted = errors.New("transfer aborted")
)

// UnexpectedStatusError is returned when the server answers with a
// non-2xx status code.
type UnexpectedStatusError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, url: %s, body: %s", e.Err, e.StatusCode, e.URL, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}
