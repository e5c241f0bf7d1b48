package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/FACorreiaa/go-trip-planner/internal/api/fetcher"
)

// Route is one driving route: per-leg durations in seconds plus the
// provider's raw path geometry.
type Route struct {
	LegDurations []float64
	Geometry     json.RawMessage
}

// Directions is the routing provider contract.
type Directions interface {
	// DrivingRoute routes through the waypoints in the exact given
	// order. Coordinates are [lng, lat].
	DrivingRoute(ctx context.Context, waypoints [][2]float64) (*Route, error)
}

var _ Directions = (*MapboxClient)(nil)

// MapboxClient calls the Mapbox Directions API through the resilient
// fetcher.
type MapboxClient struct {
	fetcher     *fetcher.Client
	baseURL     string
	accessToken string
}

func NewMapboxClient(f *fetcher.Client, baseURL string) *MapboxClient {
	return &MapboxClient{
		fetcher:     f,
		baseURL:     baseURL,
		accessToken: os.Getenv("MAPBOX_ACCESS_TOKEN"),
	}
}

type directionsResponse struct {
	Routes []struct {
		Legs []struct {
			Duration float64 `json:"duration"`
		} `json:"legs"`
		Geometry json.RawMessage `json:"geometry"`
	} `json:"routes"`
}

func (m *MapboxClient) DrivingRoute(ctx context.Context, waypoints [][2]float64) (*Route, error) {
	coords := make([]string, len(waypoints))
	for i, wp := range waypoints {
		coords[i] = strconv.FormatFloat(wp[0], 'f', -1, 64) + "," + strconv.FormatFloat(wp[1], 'f', -1, 64)
	}

	params := url.Values{}
	params.Set("access_token", m.accessToken)
	params.Set("geometries", "geojson")

	var resp directionsResponse
	err := m.fetcher.FetchJSON(ctx, fetcher.Request{
		URL:    m.baseURL + "/directions/v5/mapbox/driving/" + strings.Join(coords, ";"),
		Params: params,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("directions request: %w", err)
	}
	if len(resp.Routes) == 0 {
		return nil, fmt.Errorf("no route found")
	}

	route := resp.Routes[0]
	legs := make([]float64, len(route.Legs))
	for i, leg := range route.Legs {
		legs[i] = leg.Duration
	}
	return &Route{LegDurations: legs, Geometry: route.Geometry}, nil
}
