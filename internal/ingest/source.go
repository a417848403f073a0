package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxPageBytes is the default bound on feed and detail bodies read into memory.
const maxPageBytes = 8 << 20

// Source is the remote side of the pipeline: one feed plus detail pages and assets.
type Source interface {
	FetchFeed(ctx context.Context) ([]byte, error)
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Client fetches from the upstream site over HTTP. It never retries.
type Client struct {
	FeedURL   string
	UserAgent string
	HTTP      *http.Client

	// MaxBodyBytes caps feed and page bodies; 0 means maxPageBytes. A larger
	// body fails the fetch rather than being cut short.
	MaxBodyBytes int64
	limiter      *rate.Limiter
}

// NewClient builds a client with a per-request timeout. rps <= 0 disables pacing.
func NewClient(feedURL, userAgent string, timeout time.Duration, rps float64) *Client {
	c := &Client{
		FeedURL:   feedURL,
		UserAgent: userAgent,
		HTTP:      &http.Client{Timeout: timeout},
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

func (c *Client) FetchFeed(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, c.FeedURL, "application/rss+xml, application/xml;q=0.9, */*;q=0.8")
}

func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	return c.fetch(ctx, pageURL, "text/html,application/xhtml+xml")
}

// Open returns the response body of a successful GET; the caller closes it.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, rawURL, "image/avif,image/webp,image/*,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) fetch(ctx context.Context, rawURL, accept string) ([]byte, error) {
	resp, err := c.do(ctx, rawURL, accept)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = maxPageBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > limit {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", limit)}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}
	// upstream blocks clients that do not look like a browser
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp, nil
}
