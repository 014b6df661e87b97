// Package github fetches repository event histories from the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/iocache"
	"github.com/huangsam/issuetrend/internal/metrics"
	"github.com/huangsam/issuetrend/schema"
)

const (
	userAgent    = "issuetrend"
	acceptHeader = "application/vnd.github+json"
	apiVersion   = "2022-11-28"
	perPage      = 100

	// pageCacheVersion is bumped whenever cachedPage changes shape.
	pageCacheVersion = 1
)

// Options configures a Client.
type Options struct {
	Token      string // Optional; anonymous requests get a much smaller rate limit
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	Budget     *RateBudget         // Shared by every worker of a run
	Cache      contract.CacheStore // Optional conditional-request cache
	Metrics    metrics.Recorder    // Optional
	HTTPClient *http.Client        // Optional, mainly for tests
}

// Client is a small GitHub REST client for paginated, conditional GET requests.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	retries    int
	budget     *RateBudget
	cache      contract.CacheStore
	codec      *iocache.ZstdCompressor
	metrics    metrics.Recorder
	newBackOff func() backoff.BackOff
}

// NewClient creates a client from opts, filling in defaults for unset fields.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		token:      opts.Token,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		retries:    max(opts.Retries, 0),
		budget:     opts.Budget,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	if c.baseURL == "" {
		c.baseURL = contract.DefaultAPIURL
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = contract.DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.budget == nil {
		c.budget = NewRateBudget(contract.DefaultRateFloor)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewRecorder(false)
	}
	if c.cache != nil {
		codec, err := iocache.NewZstdCompressor()
		if err != nil {
			return nil, err
		}
		c.codec = codec
	}
	return c, nil
}

// Close releases the payload codec.
func (c *Client) Close() {
	if c.codec != nil {
		c.codec.Close()
	}
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// cachedPage is the event cache entry of one page URL.
type cachedPage struct {
	ETag string          `json:"etag"`
	Next string          `json:"next,omitempty"`
	Body json.RawMessage `json:"body"`
}

// linkNextRe matches Link header entries with rel="next".
var linkNextRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// parseLinkNext extracts the "next" URL from a Link header value.
func parseLinkNext(linkHeader string) string {
	matches := linkNextRe.FindStringSubmatch(linkHeader)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	return req, nil
}

// getAll follows Link pagination from path and calls visit with each page body.
// endpoint only labels metrics.
func (c *Client) getAll(ctx context.Context, endpoint, path string, visit func(body []byte) error) error {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	url := fmt.Sprintf("%s%s%sper_page=%d", c.baseURL, path, sep, perPage)

	for url != "" {
		body, next, err := c.getPage(ctx, endpoint, url)
		if err != nil {
			return err
		}
		if err := visit(body); err != nil {
			return fmt.Errorf("decode %s: %w", url, err)
		}
		url = next
	}
	return nil
}

// getPage fetches one page with retries, answering from the event cache on 304.
func (c *Client) getPage(ctx context.Context, endpoint, url string) ([]byte, string, error) {
	logger := contract.Logger(ctx)
	cached := c.loadPage(url)

	var body []byte
	var next string
	operation := func() error {
		if err := c.budget.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := c.newRequest(ctx, url)
		if err != nil {
			return backoff.Permanent(err)
		}
		if cached != nil {
			req.Header.Set("If-None-Match", cached.ETag)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.IncAPIRequests(endpoint, 0)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		c.budget.Observe(resp.Header)
		c.metrics.IncAPIRequests(endpoint, resp.StatusCode)
		if remaining, _ := c.budget.Remaining(); remaining >= 0 {
			c.metrics.SetRateRemaining(remaining)
		}

		switch {
		case resp.StatusCode == http.StatusNotModified && cached != nil:
			c.metrics.IncConditionalHits()
			body, next = cached.Body, cached.Next
			return nil

		case resp.StatusCode == http.StatusOK:
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			body, next = data, parseLinkNext(resp.Header.Get("Link"))
			c.storePage(ctx, url, resp.Header.Get("ETag"), next, data)
			return nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(snippet))}
		if isRetryable(resp) {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("backoff", wait).Str("endpoint", endpoint).Msg("Retrying GitHub request")
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.retries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, "", fmt.Errorf("%w: %w", schema.ErrSourceUnavailable, err)
	}
	return body, next, nil
}

// isRetryable reports whether a failed response may succeed later.
// Server errors and rate limiting are transient; other client errors are not.
func isRetryable(resp *http.Response) bool {
	switch {
	case resp.StatusCode >= 500:
		return true
	case resp.StatusCode == http.StatusTooManyRequests:
		return true
	case resp.StatusCode == http.StatusForbidden:
		return resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != ""
	default:
		return false
	}
}

func pageCacheKey(url string) string {
	return "page:" + url
}

// loadPage returns the cached page for url, or nil.
func (c *Client) loadPage(url string) *cachedPage {
	if c.cache == nil {
		return nil
	}
	data, version, _, err := c.cache.Get(pageCacheKey(url))
	if err != nil || version != pageCacheVersion {
		return nil
	}
	raw, err := c.codec.Decompress(data)
	if err != nil {
		return nil
	}
	var page cachedPage
	if err := json.Unmarshal(raw, &page); err != nil || page.ETag == "" {
		return nil
	}
	return &page
}

// storePage remembers a page for later conditional requests. Failures only cost a refetch.
func (c *Client) storePage(ctx context.Context, url, etag, next string, body []byte) {
	if c.cache == nil || etag == "" {
		return
	}
	raw, err := json.Marshal(cachedPage{ETag: etag, Next: next, Body: body})
	if err != nil {
		return
	}
	if err := c.cache.Set(pageCacheKey(url), c.codec.Compress(raw), pageCacheVersion, time.Now().Unix()); err != nil {
		contract.Logger(ctx).Debug().Err(err).Str("url", url).Msg("Failed to cache page")
	}
}

// IsStatus reports whether err carries an HTTP response with the given status.
func IsStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == status
}
