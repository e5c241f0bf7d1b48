package enrichment

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/FACorreiaa/go-trip-planner/internal/api/fetcher"
)

// GeocodeCandidate is one geocoder hit in provider rank order.
type GeocodeCandidate struct {
	Name        string
	State       string
	County      string
	City        string
	Suburb      string
	District    string
	Formatted   string
	Coordinates [2]float64 // [lng, lat]
}

// Geocoder is the places provider contract used by the enrichment
// service.
type Geocoder interface {
	Search(ctx context.Context, text string, limit int) ([]GeocodeCandidate, error)
	Reverse(ctx context.Context, lat, lng float64) (*GeocodeCandidate, error)
}

var _ Geocoder = (*GeoapifyClient)(nil)

// GeoapifyClient talks to the Geoapify geocoding API through the
// resilient fetcher, JP-country-biased.
type GeoapifyClient struct {
	fetcher *fetcher.Client
	baseURL string
	apiKey  string
}

func NewGeoapifyClient(f *fetcher.Client, baseURL string) *GeoapifyClient {
	return &GeoapifyClient{
		fetcher: f,
		baseURL: baseURL,
		apiKey:  os.Getenv("GEOAPIFY_API_KEY"),
	}
}

type geoapifyResponse struct {
	Features []struct {
		Properties struct {
			Name      string `json:"name"`
			State     string `json:"state"`
			County    string `json:"county"`
			City      string `json:"city"`
			Suburb    string `json:"suburb"`
			District  string `json:"district"`
			Formatted string `json:"formatted"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

func (g *GeoapifyClient) Search(ctx context.Context, text string, limit int) ([]GeocodeCandidate, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("apiKey", g.apiKey)
	params.Set("lang", "ja")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("countrycode", "jp")

	var resp geoapifyResponse
	err := g.fetcher.FetchJSON(ctx, fetcher.Request{
		URL:    g.baseURL + "/v1/geocode/search",
		Params: params,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("geocode search: %w", err)
	}
	return resp.candidates(), nil
}

func (g *GeoapifyClient) Reverse(ctx context.Context, lat, lng float64) (*GeocodeCandidate, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("apiKey", g.apiKey)
	params.Set("lang", "ja")
	params.Set("limit", "1")

	var resp geoapifyResponse
	err := g.fetcher.FetchJSON(ctx, fetcher.Request{
		URL:    g.baseURL + "/v1/geocode/reverse",
		Params: params,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	cands := resp.candidates()
	if len(cands) == 0 {
		return nil, nil
	}
	return &cands[0], nil
}

func (r *geoapifyResponse) candidates() []GeocodeCandidate {
	out := make([]GeocodeCandidate, 0, len(r.Features))
	for _, f := range r.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		out = append(out, GeocodeCandidate{
			Name:        f.Properties.Name,
			State:       f.Properties.State,
			County:      f.Properties.County,
			City:        f.Properties.City,
			Suburb:      f.Properties.Suburb,
			District:    f.Properties.District,
			Formatted:   f.Properties.Formatted,
			Coordinates: [2]float64{f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]},
		})
	}
	return out
}
