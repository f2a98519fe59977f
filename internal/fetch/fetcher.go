// Package fetch issues batches of HTTP GET requests against one endpoint and
// returns the bodies in input order.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the settled outcome of one request in a batch.
type Result struct {
	Index int
	Body  []byte
	Err   error
}

// Fetcher runs request batches. The zero limit starts every request of a
// batch at once.
type Fetcher struct {
	client      *http.Client
	logger      *slog.Logger
	maxParallel int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxParallel caps the number of requests in flight per batch.
func WithMaxParallel(n int) Option {
	return func(f *Fetcher) { f.maxParallel = n }
}

// New creates a Fetcher. A nil client uses http.DefaultClient.
func New(client *http.Client, logger *slog.Logger, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{client: client, logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewClient returns an HTTP client whose per-request deadline is timeout;
// zero leaves the transport default.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Fetch performs one synchronous request.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, spec QuerySpec) ([]byte, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}
	start := time.Now()
	res := f.do(ctx, 0, endpoint, spec)
	f.logger.Info("Executed requests", slog.Int("requests", 1), slog.Duration("elapsed", time.Since(start)))
	return res.Body, res.Err
}

// FetchAll fetches every spec and returns the bodies in input order. If any
// request fails the whole batch fails with the error of the lowest failing
// index, after every request has settled.
func (f *Fetcher) FetchAll(ctx context.Context, endpoint string, specs []QuerySpec) ([][]byte, error) {
	results, err := f.Collect(ctx, endpoint, specs)
	if err != nil {
		return nil, err
	}

	var first error
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			if first == nil {
				first = res.Err
			}
		}
	}
	if first != nil {
		f.logger.Warn("Batch failed", slog.Int("requests", len(specs)), slog.Int("failed", failed), slog.Any("error", first))
		return nil, first
	}

	bodies := make([][]byte, len(results))
	for i, res := range results {
		bodies[i] = res.Body
	}
	return bodies, nil
}

// Collect fetches every spec and returns one settled Result per spec in input
// order, failures included. The error is only set when the batch could not
// start.
func (f *Fetcher) Collect(ctx context.Context, endpoint string, specs []QuerySpec) ([]Result, error) {
	if len(specs) == 0 {
		return nil, ErrNoQueries
	}
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([]Result, len(specs))

	if len(specs) == 1 {
		results[0] = f.do(ctx, 0, endpoint, specs[0])
	} else {
		var g errgroup.Group
		if f.maxParallel > 0 {
			g.SetLimit(f.maxParallel)
		}
		for i, spec := range specs {
			g.Go(func() error {
				results[i] = f.do(ctx, i, endpoint, spec)
				return nil
			})
		}
		g.Wait()
	}

	f.logger.Info("Executed requests", slog.Int("requests", len(specs)), slog.Duration("elapsed", time.Since(start)))
	return results, nil
}

func (f *Fetcher) do(ctx context.Context, index int, endpoint string, spec QuerySpec) Result {
	f.logger.Debug("Initializing request", slog.Int("index", index), slog.String("params", spec.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL(endpoint), nil)
	if err != nil {
		return Result{Index: index, Err: &TransportError{Index: index, Endpoint: endpoint, Err: err}}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Index: index, Err: &TransportError{Index: index, Endpoint: endpoint, Err: redact(err)}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Index: index, Err: &TransportError{Index: index, Endpoint: endpoint, Err: err}}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Index: index, Err: &StatusError{Index: index, Endpoint: endpoint, StatusCode: resp.StatusCode}}
	}

	return Result{Index: index, Body: body}
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	return nil
}

// redact drops the request URL from client errors so tokens in the query
// string never reach logs.
func redact(err error) error {
	if urlErr, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
