package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

var (
	// ErrNoListing means a listing page had no species list container.
	ErrNoListing = errors.New("listing container not found")
	// ErrNoDownloadLink means a species page had no FASTA download anchor.
	ErrNoDownloadLink = errors.New("download link not found")
)

// maxDrain bounds how much of an error response body is read before closing.
const maxDrain = 64 << 10

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Doer is the part of *http.Client the crawler needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues GET requests with a fixed User-Agent, waiting on the limiter
// before each one.
type Client struct {
	doer      Doer
	limiter   *rate.Limiter
	userAgent string
}

// NewHTTPClient builds the *http.Client used against LPSN. A zero timeout
// leaves requests unbounded.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewClient wraps doer. requestsPerSecond <= 0 disables rate limiting.
func NewClient(doer Doer, userAgent string, requestsPerSecond int) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}

	return &Client{
		doer:      doer,
		limiter:   limiter,
		userAgent: userAgent,
	}
}

// Get fetches rawURL with params merged into its query. The caller must close
// the body. Non-200 responses are closed here and reported as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		resp.Body.Close()
		return nil, &StatusError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// GetDocument fetches and parses an HTML page.
func (c *Client) GetDocument(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	resp, err := c.Get(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html from %s: %w", rawURL, err)
	}

	return doc, nil
}

// GetText fetches a plain-text body.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.Get(ctx, rawURL, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body from %s: %w", rawURL, err)
	}

	return string(body), nil
}
