// Package fred fetches price series from the FRED observations API.
package fred

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"costindex/internal/core"
	"costindex/internal/ports"
)

const (
	DefaultBaseURL = "https://api.stlouisfed.org/fred"
	DefaultTimeout = 15 * time.Second

	// missingValue marks an observation without data.
	missingValue = "."
)

var (
	ErrMissingAPIKey = errors.New("FRED API key not configured")
	ErrEmptySeriesID = errors.New("series id is required")
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type observationsResponse struct {
	Observations []observation `json:"observations"`
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// FetchSeries downloads all observations of a series in ascending date order.
// Missing observations are skipped.
func (c *Client) FetchSeries(ctx context.Context, seriesID string) ([]core.Point, error) {
	if seriesID == "" {
		return nil, ErrEmptySeriesID
	}

	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "asc")
	endpoint := c.baseURL + "/series/observations?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", seriesID, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch series %s: %w", seriesID, err)
		}
		return nil, fmt.Errorf("fetch series %s: %w: %w", seriesID, ports.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("fetch series %s: received status %s: %s", seriesID, resp.Status, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			err = fmt.Errorf("%w: %w", ports.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}

	var payload observationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode observations for %s: %w", seriesID, err)
	}

	points, err := parseObservations(payload.Observations)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", seriesID, err)
	}

	slog.DebugContext(ctx, "Fetched series",
		"series_id", seriesID,
		"observations", len(payload.Observations),
		"points", len(points),
		"duration", time.Since(start))

	return points, nil
}

func parseObservations(obs []observation) ([]core.Point, error) {
	out := make([]core.Point, 0, len(obs))
	for _, o := range obs {
		v := strings.TrimSpace(o.Value)
		if v == missingValue || v == "" {
			continue
		}
		d, err := core.ParseDate(o.Date)
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q at %s: %w", o.Value, o.Date, err)
		}
		out = append(out, core.Point{Date: d, Value: f})
	}
	return out, nil
}
