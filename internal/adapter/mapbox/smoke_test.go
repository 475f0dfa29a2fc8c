//go:build mapbox

package mapbox

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/couchcryptid/aq-forecast-service/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		country:    DefaultCountry,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     discardLogger(),
	}
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Lucknow", "Uttar Pradesh")
	require.NoError(t, err)

	assert.InDelta(t, 26.85, result.Geo.Lat, 0.2, "lat should be near Lucknow")
	assert.InDelta(t, 80.95, result.Geo.Lon, 0.2, "lon should be near Lucknow")
	assert.Contains(t, result.Place, "Lucknow")
	assert.GreaterOrEqual(t, result.Relevance, MinRelevance)
}

func TestSmoke_RepairsShippedRegistry(t *testing.T) {
	c := smokeClient(t)

	reg, _, err := registry.LoadFile("../../../data/entity_metadata.json")
	require.NoError(t, err)

	repaired := reg.ResolveMissingCoordinates(context.Background(), c, discardLogger())
	assert.Positive(t, repaired)

	talcher, err := reg.City("Talcher")
	require.NoError(t, err)
	assert.True(t, talcher.Mappable)
	assert.InDelta(t, 20.95, talcher.Geo.Lat, 0.3)
}
