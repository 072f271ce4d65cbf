package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

var (
	// ErrFetch matches every fetch failure
	ErrFetch = errors.New("fetch failed")
	// ErrTransientFetch matches failures worth one retry: network errors,
	// server errors and throttling responses
	ErrTransientFetch = errors.New("transient fetch failure")
)

// FetchError describes a failed page fetch. StatusCode is 0 when no
// response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches ErrFetch always and ErrTransientFetch for retryable failures
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrFetch:
		return true
	case ErrTransientFetch:
		return e.Transient()
	}
	return false
}

// Transient reports whether the failure may succeed on retry
func (e *FetchError) Transient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// Fetcher retrieves the raw HTML of a page
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// CollyFetcher fetches pages with a colly collector. Each call runs on a
// clone so concurrent fetches keep their own callbacks.
type CollyFetcher struct {
	collector *colly.Collector
}

// NewCollyFetcher creates a fetcher with the given user agent and request timeout
func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(0), // depth is tracked by the crawl frontier
	)
	c.SetRequestTimeout(timeout)
	return &CollyFetcher{collector: c}
}

// Fetch performs a synchronous GET of pageURL
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.collector.Clone()
	c.Context = ctx

	var body []byte
	var fetchErr *FetchError

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = &FetchError{URL: pageURL, StatusCode: status, Err: err}
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = &FetchError{URL: pageURL, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}
