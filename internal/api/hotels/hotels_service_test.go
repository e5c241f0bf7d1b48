package hotels

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

type fakeRakutenAPI struct {
	mu         sync.Mutex
	pages      map[string]*searchResponse
	simple     *searchResponse
	seenParams []url.Values
}

func (f *fakeRakutenAPI) VacantSearch(_ context.Context, params url.Values) (*searchResponse, error) {
	f.mu.Lock()
	f.seenParams = append(f.seenParams, params)
	f.mu.Unlock()
	if resp, ok := f.pages[params.Get("page")]; ok {
		return resp, nil
	}
	return &searchResponse{}, nil
}

func (f *fakeRakutenAPI) SimpleSearch(_ context.Context, _ string) (*searchResponse, error) {
	return f.simple, nil
}

type planSpec struct {
	planID    int
	roomClass string
	total     int
	breakfast int
	dinner    int
}

func makeHotel(no int, name string, lng, lat float64, plans ...planSpec) hotelGroup {
	entries := []hotelEntry{{
		HotelBasicInfo: &hotelBasicInfo{
			HotelNo:       no,
			HotelName:     name,
			Longitude:     lng,
			Latitude:      lat,
			ReviewAverage: 4.2,
			ReviewCount:   100,
		},
	}}
	for _, p := range plans {
		entries = append(entries, hotelEntry{RoomInfo: []roomInfoEntry{
			{RoomBasicInfo: &roomBasicInfo{
				PlanID:            p.planID,
				RoomClass:         p.roomClass,
				WithBreakfastFlag: p.breakfast,
				WithDinnerFlag:    p.dinner,
			}},
			{DailyCharge: &dailyCharge{Total: p.total}},
		}})
	}
	return hotelGroup{Hotel: entries}
}

func newTestService(api rakutenAPI) *ServiceImpl {
	svc := NewService(api, slog.New(slog.DiscardHandler))
	svc.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestSearchVacantPicksCheapestPlanPerProperty(t *testing.T) {
	api := &fakeRakutenAPI{pages: map[string]*searchResponse{
		"1": {Hotels: []hotelGroup{
			makeHotel(100, "加賀屋", 136.9, 37.0,
				planSpec{planID: 1, roomClass: "standard", total: 30000},
				planSpec{planID: 2, roomClass: "suite", total: 18000},
				planSpec{planID: 3, roomClass: "economy", total: 22000},
			),
		}},
	}}
	svc := newTestService(api)

	spots, err := svc.SearchVacant(context.Background(), types.VacantSearchRequest{Latitude: 37.0, Longitude: 136.9})
	require.NoError(t, err)
	require.Len(t, spots, 1)

	// lowest total wins regardless of room class
	assert.Equal(t, 18000, spots[0].Price)
	assert.Equal(t, "2", spots[0].PlanID)
	assert.Equal(t, "suite", spots[0].RoomClass)
	assert.Equal(t, types.SourceRakuten, spots[0].Source)
	assert.Equal(t, types.StatusHotelCandidate, spots[0].Status)
	assert.True(t, spots[0].IsHotel)
}

func TestSearchVacantDeduplicatesAcrossPages(t *testing.T) {
	api := &fakeRakutenAPI{pages: map[string]*searchResponse{
		"1": {Hotels: []hotelGroup{makeHotel(100, "最初のページのホテル", 136.9, 37.0, planSpec{planID: 1, total: 20000})}},
		"2": {Hotels: []hotelGroup{
			makeHotel(100, "重複ホテル", 136.9, 37.0, planSpec{planID: 9, total: 5000}),
			makeHotel(200, "別のホテル", 136.91, 37.01, planSpec{planID: 2, total: 12000}),
		}},
	}}
	svc := newTestService(api)

	spots, err := svc.SearchVacant(context.Background(), types.VacantSearchRequest{Latitude: 37.0, Longitude: 136.9})
	require.NoError(t, err)
	require.Len(t, spots, 2)

	// first-seen id wins even when the duplicate is cheaper
	byID := map[string]types.Spot{}
	for _, s := range spots {
		assert.NotContains(t, byID, s.ID)
		byID[s.ID] = s
	}
	assert.Equal(t, "最初のページのホテル", byID["100"].Name)
	assert.Equal(t, 20000, byID["100"].Price)
}

func TestSearchVacantMealFilterBeforePrice(t *testing.T) {
	api := &fakeRakutenAPI{pages: map[string]*searchResponse{
		"1": {Hotels: []hotelGroup{
			makeHotel(100, "朝食付きが安い宿", 136.9, 37.0,
				planSpec{planID: 1, total: 8000, breakfast: 1},
				planSpec{planID: 2, total: 15000},
			),
			makeHotel(200, "素泊まりなしの宿", 136.91, 37.01,
				planSpec{planID: 3, total: 9000, breakfast: 1, dinner: 1},
			),
		}},
	}}
	svc := newTestService(api)

	spots, err := svc.SearchVacant(context.Background(), types.VacantSearchRequest{
		Latitude: 37.0, Longitude: 136.9, MealType: types.MealNone,
	})
	require.NoError(t, err)
	// hotel 200 has zero valid plans after the meal filter and is dropped
	require.Len(t, spots, 1)
	assert.Equal(t, "100", spots[0].ID)
	assert.Equal(t, 15000, spots[0].Price)
}

func TestSearchVacantPriceBoundsOnWinningTotal(t *testing.T) {
	api := &fakeRakutenAPI{pages: map[string]*searchResponse{
		"1": {Hotels: []hotelGroup{
			makeHotel(100, "安すぎる宿", 136.9, 37.0, planSpec{planID: 1, total: 3000}),
			makeHotel(200, "ちょうどいい宿", 136.91, 37.01, planSpec{planID: 2, total: 10000}),
			makeHotel(300, "高すぎる宿", 136.92, 37.02, planSpec{planID: 3, total: 40000}),
		}},
	}}
	svc := newTestService(api)

	spots, err := svc.SearchVacant(context.Background(), types.VacantSearchRequest{
		Latitude: 37.0, Longitude: 136.9, MinPrice: 5000, MaxPrice: 20000,
	})
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, "200", spots[0].ID)
	for _, s := range spots {
		assert.GreaterOrEqual(t, s.Price, 5000)
		assert.LessOrEqual(t, s.Price, 20000)
	}
}

func TestSearchVacantPolygonFilter(t *testing.T) {
	api := &fakeRakutenAPI{pages: map[string]*searchResponse{
		"1": {Hotels: []hotelGroup{
			makeHotel(100, "枠内の宿", 135.5, 35.5, planSpec{planID: 1, total: 10000}),
			makeHotel(200, "枠外の宿", 139.7, 35.6, planSpec{planID: 2, total: 10000}),
		}},
	}}
	svc := newTestService(api)

	square := [][2]float64{{135.0, 35.0}, {136.0, 35.0}, {136.0, 36.0}, {135.0, 36.0}}
	spots, err := svc.SearchVacant(context.Background(), types.VacantSearchRequest{
		Latitude: 35.5, Longitude: 135.5, Polygon: square,
	})
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, "100", spots[0].ID)
}

func TestSearchVacantDefaultsAndClamp(t *testing.T) {
	api := &fakeRakutenAPI{pages: map[string]*searchResponse{}}
	svc := newTestService(api)

	_, err := svc.SearchVacant(context.Background(), types.VacantSearchRequest{
		Latitude: 35.0, Longitude: 135.0, Radius: 12.5,
	})
	require.NoError(t, err)
	require.Len(t, api.seenParams, searchPages)

	pagesSeen := map[string]bool{}
	for _, p := range api.seenParams {
		assert.Equal(t, "3", p.Get("searchRadius"))
		assert.Equal(t, "2026-08-31", p.Get("checkinDate"))
		assert.Equal(t, "2026-09-01", p.Get("checkoutDate"))
		assert.Equal(t, "2", p.Get("adultNum"))
		pagesSeen[p.Get("page")] = true
	}
	assert.Len(t, pagesSeen, searchPages)
}

func TestExtractHotelNumber(t *testing.T) {
	cases := map[string]string{
		"https://travel.rakuten.co.jp/HOTEL/12345/12345.html": "12345",
		"https://hotel.travel.rakuten.co.jp/hotelinfo/plan/98765": "98765",
		"https://example.com/redirect?f_no=555":                "555",
		"https://example.com/redirect?no=777":                  "777",
		"https://example.com/nothing-here":                     "",
	}
	for input, want := range cases {
		assert.Equal(t, want, extractHotelNumber(input), input)
	}
}

func TestImportByURLMapsHotelToSpot(t *testing.T) {
	api := &fakeRakutenAPI{simple: &searchResponse{Hotels: []hotelGroup{{
		Hotel: []hotelEntry{
			{HotelBasicInfo: &hotelBasicInfo{
				HotelNo:             12345,
				HotelName:           "城崎温泉 ゆとうや",
				HotelSpecial:        "創業三百年の老舗旅館。",
				Longitude:           134.808,
				Latitude:            35.625,
				HotelMinCharge:      25000,
				ReviewAverage:       4.6,
				ReviewCount:         320,
				HotelInformationURL: "https://travel.rakuten.co.jp/HOTEL/12345/",
			}},
			{HotelRatingInfo: &hotelRatingInfo{ServiceAverage: 4.7, BathAverage: 4.9}},
		},
	}}}}
	svc := newTestService(api)

	spot, err := svc.ImportByURL(context.Background(), "https://travel.rakuten.co.jp/HOTEL/12345/12345.html")
	require.NoError(t, err)
	require.NotNil(t, spot)

	assert.Equal(t, "12345", spot.ID)
	assert.Equal(t, "城崎温泉 ゆとうや", spot.Name)
	assert.Equal(t, 25000, spot.Price)
	assert.Equal(t, [2]float64{134.808, 35.625}, spot.Coordinates)
	assert.Equal(t, types.StatusHotelCandidate, spot.Status)
	assert.True(t, spot.IsHotel)
	require.NotNil(t, spot.ReviewScores)
	assert.InDelta(t, 4.9, spot.ReviewScores.Bath, 1e-9)
}

func TestMealMatches(t *testing.T) {
	breakfastOnly := &roomBasicInfo{WithBreakfastFlag: 1}
	both := &roomBasicInfo{WithBreakfastFlag: 1, WithDinnerFlag: 1}
	neither := &roomBasicInfo{}

	assert.True(t, mealMatches(types.MealAny, both))
	assert.True(t, mealMatches(types.MealNone, neither))
	assert.False(t, mealMatches(types.MealNone, breakfastOnly))
	assert.True(t, mealMatches(types.MealBreakfast, breakfastOnly))
	assert.False(t, mealMatches(types.MealBreakfast, both))
	assert.True(t, mealMatches(types.MealBreakfastDinner, both))
}
