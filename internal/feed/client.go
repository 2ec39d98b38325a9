package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-quake/internal/observability"
)

// ErrUnexpectedStatus is returned when a feed answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected feed status")

const (
	feedEarthquakes = "earthquakes"
	feedPlates      = "plates"
)

// Client fetches both GeoJSON feeds over HTTP.
type Client struct {
	httpClient     *http.Client
	earthquakesURL string
	platesURL      string
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewClient creates a feed client. Empty URLs fall back to the defaults.
func NewClient(earthquakesURL, platesURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if earthquakesURL == "" {
		earthquakesURL = DefaultEarthquakesURL
	}
	if platesURL == "" {
		platesURL = DefaultPlatesURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		earthquakesURL: earthquakesURL,
		platesURL:      platesURL,
		metrics:        metrics,
		logger:         logger,
	}
}

// Earthquakes fetches and decodes the earthquake feed.
func (c *Client) Earthquakes(ctx context.Context) ([]Earthquake, error) {
	body, err := c.get(ctx, c.earthquakesURL, feedEarthquakes)
	if err != nil {
		return nil, err
	}

	var raw rawCollection
	if err := json.Unmarshal(body, &raw); err != nil {
		c.observe(feedEarthquakes, false)
		return nil, fmt.Errorf("decode earthquakes: %w", err)
	}

	quakes := make([]Earthquake, 0, len(raw.Features))
	for _, f := range raw.Features {
		quakes = append(quakes, f.earthquake())
	}
	c.observe(feedEarthquakes, true)
	c.logger.Debug("earthquake features", "count", len(quakes), "url", c.earthquakesURL)
	return quakes, nil
}

// Plates fetches the plate boundary feed.
func (c *Client) Plates(ctx context.Context) (*geojson.FeatureCollection, error) {
	body, err := c.get(ctx, c.platesURL, feedPlates)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		c.observe(feedPlates, false)
		return nil, fmt.Errorf("decode plates: %w", err)
	}
	c.observe(feedPlates, true)
	c.logger.Debug("plate boundary features", "count", len(fc.Features), "url", c.platesURL)
	return fc, nil
}

func (c *Client) get(ctx context.Context, url, feed string) ([]byte, error) {
	start := time.Now()
	defer func() {
		c.metrics.FeedFetchDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.observe(feed, false)
		return nil, fmt.Errorf("create %s request: %w", feed, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(feed, false)
		return nil, fmt.Errorf("%s request: %w", feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.observe(feed, false)
		return nil, fmt.Errorf("%s: %w: status %d: %s", feed, ErrUnexpectedStatus, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(feed, false)
		return nil, fmt.Errorf("read %s body: %w", feed, err)
	}
	return body, nil
}

func (c *Client) observe(feed string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	c.metrics.FeedFetches.WithLabelValues(feed, outcome).Inc()
}
