package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/couchcryptid/aq-forecast-service/internal/registry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string, metrics *observability.Metrics) *Client {
	return &Client{
		token:      testToken,
		country:    DefaultCountry,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     discardLogger(),
	}
}

func talcherServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "Talcher, Odisha")
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "in", r.URL.Query().Get("country"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{85.2307, 20.9497},
					PlaceName: "Talcher, Odisha, India",
					Relevance: 0.97,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestClient_ForwardGeocode_Success(t *testing.T) {
	srv := talcherServer(t)
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := testClient(srv.URL, metrics)
	result, err := c.ForwardGeocode(context.Background(), "Talcher", "Odisha")
	require.NoError(t, err)

	assert.Equal(t, domain.GeocodingResult{
		Geo:       domain.Geo{Lat: 20.9497, Lon: 85.2307},
		Place:     "Talcher, Odisha, India",
		Relevance: 0.97,
	}, result)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("success")))
}

func TestClient_ForwardGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := testClient(srv.URL, metrics)
	result, err := c.ForwardGeocode(context.Background(), "NONEXISTENT", "")
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("empty")))
}

func TestClient_ForwardGeocode_SkipsWeakMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{
			{Center: []float64{85.0, 20.5}, PlaceName: "Odisha, India", Relevance: 0.3},
			{PlaceName: "Talcher Road", Relevance: 0.9},
			{Center: []float64{85.2307, 20.9497}, PlaceName: "Talcher, Odisha, India", Relevance: 0.8},
		}}))
	}))
	defer srv.Close()

	result, err := testClient(srv.URL, nil).ForwardGeocode(context.Background(), "Talcher", "Odisha")
	require.NoError(t, err)
	assert.Equal(t, "Talcher, Odisha, India", result.Place)
	assert.Equal(t, domain.Geo{Lat: 20.9497, Lon: 85.2307}, result.Geo)
}

func TestClient_ForwardGeocode_OnlyWeakMatchesIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{
			{Center: []float64{85.0, 20.5}, PlaceName: "Odisha, India", Relevance: 0.3},
		}}))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	result, err := testClient(srv.URL, metrics).ForwardGeocode(context.Background(), "Talcher", "Odisha")
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("empty")))
}

func TestClient_ForwardGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := testClient(srv.URL, metrics)
	c.token = "bad-token"

	_, err := c.ForwardGeocode(context.Background(), "Talcher", "Odisha")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues("error")))
}

func TestClient_ForwardGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, nil)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.ForwardGeocode(context.Background(), "Talcher", "Odisha")
	require.Error(t, err)
}

func TestClient_RepairsRegistry(t *testing.T) {
	srv := talcherServer(t)
	defer srv.Close()

	reg, warnings, err := registry.Load(strings.NewReader(`{"Talcher": {"state": "Odisha"}}`))
	require.NoError(t, err)
	require.NotEmpty(t, warnings)

	n := reg.ResolveMissingCoordinates(context.Background(), testClient(srv.URL, nil), discardLogger())
	assert.Equal(t, 1, n)

	city, err := reg.City("Talcher")
	require.NoError(t, err)
	assert.True(t, city.Mappable)
	assert.Equal(t, domain.Geo{Lat: 20.9497, Lon: 85.2307}, city.Geo)
}
