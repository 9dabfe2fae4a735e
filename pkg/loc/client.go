package loc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"quiltsync/pkg/errors"
	"quiltsync/pkg/logger"
	"quiltsync/pkg/ratelimit"
	"quiltsync/pkg/retry"
)

// UserAgent identifies the client to the API on every request
const UserAgent = "AIDS-Memorial-Quilt-Scraper/1.0 (Educational Research)"

// Client is an HTTP client for the loc.gov JSON API.
// All requests pass through the shared rate gate before hitting the wire.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	collection string
	perPage    int
	gate       ratelimit.Limiter
	retrier    *retry.Retrier
	logger     logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL, used by tests
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// WithCollection overrides the collection slug
func WithCollection(collection string) Option {
	return func(c *Client) { c.collection = collection }
}

// WithItemsPerPage sets the page size for collection searches
func WithItemsPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= MaxItemsPerPage {
			c.perPage = n
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff replaces the retry backoff strategy
func WithBackoff(b retry.BackoffStrategy) Option {
	return func(c *Client) { c.retrier = c.retrier.WithBackoff(b) }
}

// NewClient creates a new loc.gov API client. The gate spaces out every
// request the client makes; pass the same gate to every client sharing a
// politeness budget.
func NewClient(timeout time.Duration, gate ratelimit.Limiter, maxAttempts int, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": UserAgent,
			"Accept":     "application/json",
		},
		baseURL:    BaseURL,
		collection: Collection,
		perPage:    DefaultItemsPerPage,
		gate:       gate,
		retrier: retry.NewRetrier(nil).
			WithMaxAttempts(maxAttempts).
			WithBackoff(retry.RateLimitBackoff()),
		logger: log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest waits on the rate gate, then performs a single HTTP request
// with the configured headers.
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	if c.gate != nil {
		if err := c.gate.Wait(ctx); err != nil {
			return nil, errors.Newf(errors.ErrorTypeUnknown, "rate gate wait: %v", err)
		}
	}
	return c.send(ctx, url)
}

// send performs a single HTTP request with the configured headers. Image
// downloads go through here directly; they are throttled by the download
// limiter, not the API gate.
func (c *Client) send(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    url,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.Newf(errors.ErrorTypeNetwork, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      url,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus maps the response status to a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.NewWithCode(errors.ErrorTypeNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		logger.LogRateLimit(resp.Request.URL.String(), retryAfter)
		return errors.NewWithCode(errors.ErrorTypeRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.NewWithCode(errors.ErrorTypeServerError, resp.StatusCode,
			fmt.Sprintf("server returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return errors.NewWithCode(errors.ErrorTypeUnknown, resp.StatusCode,
			fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	default:
		return nil
	}
}

// getJSON performs a GET with retry and decodes the JSON response into target.
// Parse failures are never retried.
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	op := func() error {
		resp, err := c.doRequest(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Newf(errors.ErrorTypeNetwork, "failed to read response body: %v", err)
		}

		if err := json.Unmarshal(body, target); err != nil {
			bodyPreview := string(body)
			if len(bodyPreview) > 200 {
				bodyPreview = bodyPreview[:200] + "..."
			}
			c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
				"url":          url,
				"status":       resp.StatusCode,
				"error":        err.Error(),
				"body_preview": bodyPreview,
			})
			return errors.Newf(errors.ErrorTypeMalformed, "failed to parse JSON: %v", err)
		}

		return nil
	}

	return c.retrier.WithContext(ctx).Do(op)
}

// FetchPage fetches one page of the collection search. Pages are numbered
// from 1, matching the API's sp parameter.
func (c *Client) FetchPage(ctx context.Context, page int) (*SearchPage, error) {
	url := SearchURL(c.baseURL, c.collection, c.perPage, page)

	c.logger.DebugWithFields("fetching collection page", map[string]interface{}{
		"page": page,
		"url":  url,
	})

	var response SearchResponse
	if err := c.getJSON(ctx, url, &response); err != nil {
		c.logger.ErrorWithFields("failed to fetch collection page", map[string]interface{}{
			"page":  page,
			"error": err.Error(),
		})
		return nil, err
	}

	result := &SearchPage{
		Page:  page,
		Items: response.Results,
	}
	if response.Pagination != nil {
		result.HasMore = response.Pagination.Next != "" ||
			(response.Pagination.Total > 0 && page < response.Pagination.Total)
		result.TotalItems = response.Pagination.Of
	}

	c.logger.DebugWithFields("fetched collection page", map[string]interface{}{
		"page":     page,
		"items":    len(result.Items),
		"has_more": result.HasMore,
	})

	return result, nil
}

// FetchItem fetches the full metadata for a single item
func (c *Client) FetchItem(ctx context.Context, itemID string) (*ItemPayload, error) {
	url := ItemURL(c.baseURL, itemID)

	c.logger.DebugWithFields("fetching item", map[string]interface{}{
		"item_id": itemID,
		"url":     url,
	})

	var response ItemResponse
	if err := c.getJSON(ctx, url, &response); err != nil {
		c.logger.ErrorWithFields("failed to fetch item", map[string]interface{}{
			"item_id": itemID,
			"error":   err.Error(),
		})
		return nil, err
	}

	item := response.Item
	if item.ID == "" && item.URL == "" {
		item.ID = itemID
	}
	if len(item.Resources) == 0 {
		item.Resources = response.Resources
	}

	if !item.Valid() {
		return nil, errors.Newf(errors.ErrorTypeMalformed, "item %s response missing identifier", itemID)
	}

	return &item, nil
}

// DownloadImage downloads raw image bytes from the given URL. It bypasses
// the API rate gate so downloads can run in parallel under the download
// limiter. The returned content type is the server's Content-Type header,
// which may be empty.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	resp, err := c.send(ctx, imageURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Newf(errors.ErrorTypeNetwork, "failed to read image data: %v", err)
	}

	c.logger.DebugWithFields("downloaded image", map[string]interface{}{
		"url":  imageURL,
		"size": len(data),
	})

	return data, resp.Header.Get("Content-Type"), nil
}
