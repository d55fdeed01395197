package snapcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrFetchFailed is returned when a URL cannot be fetched within the retry
// budget.
var ErrFetchFailed = errors.New("snapcache: fetch failed")

const (
	// DefaultFetchRetries is the number of retries after the first attempt.
	DefaultFetchRetries = 5

	// baseBackoff is the first retry delay; subsequent delays double.
	baseBackoff = 100 * time.Millisecond

	// maxFetchBytes caps how much of a response body is read. Raw source
	// snapshots are small; anything bigger is junk.
	maxFetchBytes = 16 << 20
)

// Fetcher downloads raw source snapshots over HTTP with bounded retries and
// exponential backoff. It backs the rows whose repository has no local
// mirror.
type Fetcher struct {
	client  *http.Client
	retries int
}

// NewFetcher creates a fetcher with the given per-request timeout and retry
// count. Negative retries fall back to DefaultFetchRetries.
func NewFetcher(timeout time.Duration, retries int) *Fetcher {
	if retries < 0 {
		retries = DefaultFetchRetries
	}

	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		retries: retries,
	}
}

// Fetch downloads url and returns the body. Server errors and network
// failures are retried with doubling backoff; client errors fail
// immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := baseBackoff << (attempt - 1)

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
			case <-time.After(delay):
			}
		}

		data, retryable, err := f.once(ctx, url)
		if err == nil {
			return data, nil
		}

		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, url, lastErr)
}

// once performs a single request, reporting whether a failure is worth
// retrying.
func (f *Fetcher) once(ctx context.Context, url string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("server status %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}

	return body, false, nil
}
