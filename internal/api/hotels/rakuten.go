package hotels

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/FACorreiaa/go-trip-planner/internal/api/fetcher"
)

const (
	vacantSearchPath = "/Travel/VacantHotelSearch/20170426"
	simpleSearchPath = "/Travel/SimpleHotelSearch/20170426"
)

// searchResponse mirrors the inventory provider's nested envelope:
// hotels -> hotel -> [hotelBasicInfo | hotelRatingInfo | roomInfo...].
type searchResponse struct {
	Hotels []hotelGroup `json:"hotels"`
}

type hotelGroup struct {
	Hotel []hotelEntry `json:"hotel"`
}

type hotelEntry struct {
	HotelBasicInfo  *hotelBasicInfo  `json:"hotelBasicInfo,omitempty"`
	HotelRatingInfo *hotelRatingInfo `json:"hotelRatingInfo,omitempty"`
	RoomInfo        []roomInfoEntry  `json:"roomInfo,omitempty"`
}

type hotelBasicInfo struct {
	HotelNo             int     `json:"hotelNo"`
	HotelName           string  `json:"hotelName"`
	HotelSpecial        string  `json:"hotelSpecial"`
	HotelImageURL       string  `json:"hotelImageUrl"`
	HotelInformationURL string  `json:"hotelInformationUrl"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	HotelMinCharge      int     `json:"hotelMinCharge"`
	ReviewAverage       float64 `json:"reviewAverage"`
	ReviewCount         int     `json:"reviewCount"`
}

type hotelRatingInfo struct {
	ServiceAverage  float64 `json:"serviceAverage"`
	LocationAverage float64 `json:"locationAverage"`
	RoomAverage     float64 `json:"roomAverage"`
	BathAverage     float64 `json:"bathAverage"`
	MealAverage     float64 `json:"mealAverage"`
}

// roomInfo alternates plan metadata and its nightly charge.
type roomInfoEntry struct {
	RoomBasicInfo *roomBasicInfo `json:"roomBasicInfo,omitempty"`
	DailyCharge   *dailyCharge   `json:"dailyCharge,omitempty"`
}

type roomBasicInfo struct {
	PlanID            int    `json:"planId"`
	PlanName          string `json:"planName"`
	RoomClass         string `json:"roomClass"`
	WithBreakfastFlag int    `json:"withBreakfastFlag"`
	WithDinnerFlag    int    `json:"withDinnerFlag"`
}

type dailyCharge struct {
	Total int `json:"total"`
}

// rakutenAPI is the provider contract the service depends on.
type rakutenAPI interface {
	VacantSearch(ctx context.Context, params url.Values) (*searchResponse, error)
	SimpleSearch(ctx context.Context, hotelNo string) (*searchResponse, error)
}

var _ rakutenAPI = (*RakutenClient)(nil)

// RakutenClient calls the Rakuten Travel API through the resilient
// fetcher.
type RakutenClient struct {
	fetcher *fetcher.Client
	baseURL string
	appID   string
}

func NewRakutenClient(f *fetcher.Client, baseURL string) *RakutenClient {
	return &RakutenClient{
		fetcher: f,
		baseURL: baseURL,
		appID:   os.Getenv("RAKUTEN_APP_ID"),
	}
}

func (c *RakutenClient) VacantSearch(ctx context.Context, params url.Values) (*searchResponse, error) {
	params.Set("applicationId", c.appID)
	params.Set("format", "json")
	params.Set("datumType", "1")

	var resp searchResponse
	err := c.fetcher.FetchJSON(ctx, fetcher.Request{
		URL:    c.baseURL + vacantSearchPath,
		Params: params,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("vacant hotel search: %w", err)
	}
	return &resp, nil
}

func (c *RakutenClient) SimpleSearch(ctx context.Context, hotelNo string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("applicationId", c.appID)
	params.Set("format", "json")
	params.Set("hotelNo", hotelNo)
	params.Set("datumType", "1")

	var resp searchResponse
	err := c.fetcher.FetchJSON(ctx, fetcher.Request{
		URL:    c.baseURL + simpleSearchPath,
		Params: params,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("simple hotel search: %w", err)
	}
	return &resp, nil
}
