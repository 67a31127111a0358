// Package llm defines the provider-neutral model client used by the
// agent loop and the Gemini implementation of it.
package llm

import "context"

// Client is the interface every model backend implements.
type Client interface {
	// Send issues one generation request. The response is either a
	// final text answer or a batch of tool calls; a transport or
	// provider failure is returned as an error, preferably *Error.
	Send(ctx context.Context, req *Request) (*Response, error)

	// Name identifies the backend in logs and outcomes.
	Name() string
}
