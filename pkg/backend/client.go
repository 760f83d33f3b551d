// Package backend is the HTTP client for the remote search API. The API
// is consumed as a black box: request shape in, typed response out. All
// calls take a context; cancellation is reported distinctly from failure
// so the engine can tell an aborted, superseded request apart from a
// transient network error.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/templateschile/kalifinder-search/pkg/log"
)

// Sort orders understood by the search endpoint.
const (
	SortRelevance = "relevance"
	SortFeatured  = "featured"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

// ErrAborted marks a request cancelled through its context. Never surfaced
// to the user or logged as an error.
var ErrAborted = errors.New("request aborted")

// IsAbort reports whether err is a cooperative cancellation rather than a
// real failure.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Client talks to the remote search API for a single store.
type Client struct {
	baseURL  string
	storeURL string
	http     *http.Client
	logger   *log.Logger
}

// NewClient creates a client for the API at baseURL, scoped to storeURL.
// A zero timeout defaults to 30 seconds.
func NewClient(baseURL, storeURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		storeURL: storeURL,
		http:     &http.Client{Timeout: timeout},
		logger:   log.ForComponent("backend"),
	}
}

// Search executes a search request and returns the typed response.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("storeUrl", c.storeURL)
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("limit", strconv.Itoa(req.Limit))

	for param, values := range map[string][]string{
		"categories[]":  req.Categories,
		"brands[]":      req.Brands,
		"colors[]":      req.Colors,
		"sizes[]":       req.Sizes,
		"tags[]":        req.Tags,
		"stockStatus[]": req.StockStatus,
	} {
		for _, v := range values {
			q.Add(param, v)
		}
	}

	if req.PriceRange != nil {
		q.Set("priceRange", fmt.Sprintf("%g-%g", req.PriceRange[0], req.PriceRange[1]))
	}
	if req.InSale != nil {
		q.Set("insale", strconv.FormatBool(*req.InSale))
	}
	if req.Featured != nil {
		q.Set("featured", strconv.FormatBool(*req.Featured))
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}

	var resp SearchResponse
	if err := c.getJSON(ctx, "search", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Autocomplete returns suggestion entries for a partial query. An empty
// query returns no suggestions without a network round trip.
func (c *Client) Autocomplete(ctx context.Context, query string) ([]Suggestion, error) {
	if query == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("storeUrl", c.storeURL)

	var suggestions []Suggestion
	if err := c.getJSON(ctx, "autocomplete", q, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// ConfiguredFacets fetches the store's facet configuration: which filter
// dimensions the view should expose.
func (c *Client) ConfiguredFacets(ctx context.Context) ([]ConfiguredFacet, error) {
	q := url.Values{}
	q.Set("storeUrl", c.storeURL)

	var facets []ConfiguredFacet
	if err := c.getJSON(ctx, "facets/configured", q, &facets); err != nil {
		return nil, err
	}
	return facets, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + "/" + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debugf("GET %s", endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrAborted, path)
		}
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warnf("closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrAborted, path)
		}
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
