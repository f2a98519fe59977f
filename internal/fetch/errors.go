package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoQueries is returned when a batch has nothing to fetch.
	ErrNoQueries = errors.New("no queries to fetch")

	// ErrInvalidEndpoint is returned for a base URL that is not absolute http(s).
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrMalformedResponse is wrapped by payload parsers when a body does
	// not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Index    int
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %d: transport error fetching from %s: %v", e.Index, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is a response whose status code was not 200.
type StatusError struct {
	Index      int
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %d: unexpected response code from %s: %d", e.Index, e.Endpoint, e.StatusCode)
}
