// Package urlclient exposes the asynchronous URL-fetch client builder.
package urlclient

import (
	"github.com/adamwoolhether/urlclient/client"
)

// New instantiates a new *client.Client with the provided options and
// starts its workers. If not specified, [client.DefaultOptions] and the
// net/http transfer engine are used.
func New(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
