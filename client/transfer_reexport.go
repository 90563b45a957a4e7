package client

import (
	"github.com/adamwoolhether/urlclient/client/transfer"
)

// ————————————————————————————————————————————————————————————————————
// Type aliases – re-export user-facing types from [transfer].
// ————————————————————————————————————————————————————————————————————

type (
	// UnexpectedStatusError carries the status code and a capped body of a
	// non-2xx response.
	UnexpectedStatusError = transfer.UnexpectedStatusError

	// Engine performs a single blocking fetch. See [transfer.Engine].
	Engine = transfer.Engine

	// EngineFactory builds the Engine owned by one worker.
	EngineFactory = transfer.Factory

	// EngineConfig is handed to every EngineFactory call.
	EngineConfig = transfer.Config
)

// ————————————————————————————————————————————————————————————————————
// Sentinel errors
// ————————————————————————————————————————————————————————————————————

var (
	// ErrTimeout indicates the connection or request timeout was exceeded.
	ErrTimeout = transfer.ErrTimeout

	// ErrTransport indicates a DNS, connection, URL or interrupted body failure.
	ErrTransport = transfer.ErrTransport

	// ErrUnexpectedStatusCode is wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = transfer.ErrUnexpectedStatusCode
)
