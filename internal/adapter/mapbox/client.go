// Package mapbox resolves city names to coordinates with the Mapbox Geocoding
// API. It is used once at startup to repair registry entries that lack
// coordinates.
package mapbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// DefaultCountry restricts results to India, where the monitored cities are.
const DefaultCountry = "in"

// MinRelevance is the lowest Mapbox relevance accepted as a match. Weaker
// matches usually mean only the state name was recognised.
const MinRelevance = 0.5

const candidates = 3

// Client implements registry.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	country    string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client. metrics may be nil.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:   token,
		country: DefaultCountry,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ForwardGeocode converts a city name and state to coordinates. An empty
// result with a nil error means Mapbox found no confident match.
func (c *Client) ForwardGeocode(ctx context.Context, name, state string) (domain.GeocodingResult, error) {
	query := name
	if state != "" {
		query = name + ", " + state
	}

	var resp response
	if err := c.getJSON(ctx, c.placesURL(query), &resp); err != nil {
		c.observe("error")
		return domain.GeocodingResult{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	result, ok := resp.best(MinRelevance)
	if !ok {
		c.observe("empty")
		return domain.GeocodingResult{}, nil
	}
	c.observe("success")
	c.logger.Debug("geocoded", "query", query, "place", result.Place, "relevance", result.Relevance)
	return result, nil
}

func (c *Client) placesURL(query string) string {
	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(candidates)},
		"types":        {"place,locality,district"},
	}
	if c.country != "" {
		params.Set("country", c.country)
	}
	return c.baseURL + "/" + url.PathEscape(query) + ".json?" + params.Encode()
}

// getJSON fetches u and decodes a 200 response body into out.
func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
	}
}

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Relevance float64   `json:"relevance"`
}

// best returns the first feature, in Mapbox's ranking, that has a centre and
// at least minRelevance.
func (r response) best(minRelevance float64) (domain.GeocodingResult, bool) {
	for _, f := range r.Features {
		if len(f.Center) != 2 || f.Relevance < minRelevance {
			continue
		}
		return domain.GeocodingResult{
			Geo:       domain.Geo{Lat: f.Center[1], Lon: f.Center[0]},
			Place:     f.PlaceName,
			Relevance: f.Relevance,
		}, true
	}
	return domain.GeocodingResult{}, false
}
