package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/forecast"
)

// Querier is the read side the API serves.
type Querier interface {
	ForecastFor(ctx context.Context, city string) (domain.CityForecast, error)
	TierFor(city string) (domain.ClusterAssignment, error)
	MapMarkers(ctx context.Context) ([]forecast.MapMarker, error)
	TopPolluted(n int) []forecast.CityLevel
}

type handlers struct {
	q      Querier
	logger *slog.Logger
}

const maxTopN = 100

type clusterResponse struct {
	domain.ClusterAssignment
	Color string `json:"color"`
}

func (h *handlers) predict(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeError(w, http.StatusBadRequest, "city not found")
		return
	}
	f, err := h.q.ForecastFor(r.Context(), city)
	if errors.Is(err, domain.ErrUnknownCity) {
		writeError(w, http.StatusBadRequest, "city not found")
		return
	}
	if err != nil {
		h.internalError(w, "forecast failed", err, "city", city)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handlers) cluster(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeError(w, http.StatusBadRequest, "city not found")
		return
	}
	a, err := h.q.TierFor(city)
	switch {
	case errors.Is(err, domain.ErrUnknownCity):
		writeError(w, http.StatusBadRequest, "city not found")
	case errors.Is(err, domain.ErrNoAssignment):
		writeError(w, http.StatusNotFound, "no cluster assignment")
	case err != nil:
		h.internalError(w, "tier lookup failed", err, "city", city)
	default:
		writeJSON(w, http.StatusOK, clusterResponse{ClusterAssignment: a, Color: a.Tier.Color()})
	}
}

func (h *handlers) mapMarkers(w http.ResponseWriter, r *http.Request) {
	markers, err := h.q.MapMarkers(r.Context())
	if err != nil {
		h.internalError(w, "map markers failed", err)
		return
	}
	if markers == nil {
		markers = []forecast.MapMarker{}
	}
	writeJSON(w, http.StatusOK, markers)
}

func (h *handlers) top(w http.ResponseWriter, r *http.Request) {
	n := forecast.DefaultTopN
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > maxTopN {
			writeError(w, http.StatusBadRequest, "n must be an integer between 1 and 100")
			return
		}
		n = v
	}
	writeJSON(w, http.StatusOK, h.q.TopPolluted(n))
}

func (h *handlers) internalError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{"error", err}, attrs...)...)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
