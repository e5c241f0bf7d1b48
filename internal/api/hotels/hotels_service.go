package hotels

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-trip-planner/internal/api/geo"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

const (
	maxSearchRadiusKm   = 3.0
	searchPages         = 3
	hitsPerPage         = 30
	defaultAdults       = 2
	descriptionMaxRunes = 60
	dateLayout          = "2006-01-02"
)

// hotel numbers appear as a path segment on hotel pages
var hotelNoPathRe = regexp.MustCompile(`travel\.rakuten\.co\.jp/.*?/(\d+)`)

// Service searches and imports lodging candidates.
type Service interface {
	// SearchVacant returns available properties around a coordinate,
	// one Spot per property carrying its cheapest qualifying plan.
	SearchVacant(ctx context.Context, req types.VacantSearchRequest) ([]types.Spot, error)
	// ImportByURL resolves a hotel-page URL to a single Spot.
	ImportByURL(ctx context.Context, rawURL string) (*types.Spot, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger *slog.Logger
	api    rakutenAPI
	hc     *http.Client
	now    func() time.Time
}

func NewService(api rakutenAPI, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		api:    api,
		hc:     &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (s *ServiceImpl) SearchVacant(ctx context.Context, req types.VacantSearchRequest) ([]types.Spot, error) {
	ctx, span := otel.Tracer("HotelService").Start(ctx, "SearchVacant")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("search.lat", req.Latitude),
		attribute.Float64("search.lng", req.Longitude),
	)

	base := s.buildSearchParams(req)

	// Three pages in flight at once; a failed page only shrinks the
	// result set.
	pages := make([]*searchResponse, searchPages)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < searchPages; i++ {
		g.Go(func() error {
			params := url.Values{}
			for k, v := range base {
				params[k] = append([]string(nil), v...)
			}
			params.Set("page", strconv.Itoa(i+1))
			resp, err := s.api.VacantSearch(gctx, params)
			if err != nil {
				s.logger.WarnContext(gctx, "Hotel page fetch failed", slog.Int("page", i+1), slog.Any("error", err))
				return nil
			}
			mu.Lock()
			pages[i] = resp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Page fan-out failed")
		return nil, err
	}

	spots := s.collectHotels(ctx, pages, req)
	span.SetAttributes(attribute.Int("hotels.count", len(spots)))
	span.SetStatus(codes.Ok, "Search complete")
	return spots, nil
}

func (s *ServiceImpl) buildSearchParams(req types.VacantSearchRequest) url.Values {
	radius := req.Radius
	if radius <= 0 {
		radius = maxSearchRadiusKm
	}
	radius = math.Min(math.Round(radius*100)/100, maxSearchRadiusKm)

	checkin := req.CheckinDate
	if checkin == "" {
		checkin = s.now().AddDate(0, 0, 30).Format(dateLayout)
	}
	checkout := req.CheckoutDate
	if checkout == "" {
		if in, err := time.Parse(dateLayout, checkin); err == nil {
			checkout = in.AddDate(0, 0, 1).Format(dateLayout)
		} else {
			checkout = s.now().AddDate(0, 0, 31).Format(dateLayout)
		}
	}
	adults := req.AdultNum
	if adults <= 0 {
		adults = defaultAdults
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	params.Set("searchRadius", strconv.FormatFloat(radius, 'f', -1, 64))
	params.Set("hits", strconv.Itoa(hitsPerPage))
	params.Set("sort", "standard")
	params.Set("checkinDate", checkin)
	params.Set("checkoutDate", checkout)
	params.Set("adultNum", strconv.Itoa(adults))
	if req.MinPrice > 0 {
		params.Set("minCharge", strconv.Itoa(req.MinPrice))
	}
	if req.MaxPrice > 0 {
		params.Set("maxCharge", strconv.Itoa(req.MaxPrice))
	}
	return params
}

// collectHotels flattens pages in page order. First-seen property id
// wins across pages; later duplicates are discarded without comparing
// prices.
func (s *ServiceImpl) collectHotels(ctx context.Context, pages []*searchResponse, req types.VacantSearchRequest) []types.Spot {
	seen := make(map[string]bool)
	spots := make([]types.Spot, 0)

	for _, page := range pages {
		if page == nil {
			continue
		}
		for _, group := range page.Hotels {
			basic, rating, rooms := splitHotelGroup(group)
			if basic == nil {
				continue
			}
			id := strconv.Itoa(basic.HotelNo)
			if seen[id] {
				continue
			}
			if len(req.Polygon) > 0 && !insidePolygon(req.Polygon, basic.Longitude, basic.Latitude) {
				continue
			}

			plan := cheapestPlan(rooms, req.MealType)
			if plan == nil {
				continue
			}
			if req.MinPrice > 0 && plan.total < req.MinPrice {
				continue
			}
			if req.MaxPrice > 0 && plan.total > req.MaxPrice {
				continue
			}

			spots = append(spots, buildHotelSpot(id, basic, rating, plan))
			seen[id] = true
		}
	}

	s.logger.InfoContext(ctx, "Hotel pages collected", slog.Int("accepted", len(spots)))
	return spots
}

func splitHotelGroup(group hotelGroup) (*hotelBasicInfo, *hotelRatingInfo, []roomInfoEntry) {
	var basic *hotelBasicInfo
	var rating *hotelRatingInfo
	var rooms []roomInfoEntry
	for _, entry := range group.Hotel {
		if entry.HotelBasicInfo != nil {
			basic = entry.HotelBasicInfo
		}
		if entry.HotelRatingInfo != nil {
			rating = entry.HotelRatingInfo
		}
		rooms = append(rooms, entry.RoomInfo...)
	}
	return basic, rating, rooms
}

type planChoice struct {
	total     int
	planID    string
	roomClass string
}

// cheapestPlan scans a property's plans, applying the meal filter
// before any price comparison. Lowest nightly total wins regardless of
// room class; nil means no plan survived.
func cheapestPlan(rooms []roomInfoEntry, mealType string) *planChoice {
	var current *roomBasicInfo
	var best *planChoice
	for _, entry := range rooms {
		if entry.RoomBasicInfo != nil {
			current = entry.RoomBasicInfo
			continue
		}
		if entry.DailyCharge == nil || current == nil {
			continue
		}
		total := entry.DailyCharge.Total
		if total <= 0 || !mealMatches(mealType, current) {
			continue
		}
		if best == nil || total < best.total {
			best = &planChoice{
				total:     total,
				planID:    strconv.Itoa(current.PlanID),
				roomClass: current.RoomClass,
			}
		}
	}
	return best
}

// mealMatches is exact flag equality: "breakfast" means breakfast and
// no dinner, not "at least breakfast".
func mealMatches(mealType string, room *roomBasicInfo) bool {
	if mealType == types.MealAny {
		return true
	}
	breakfast := room.WithBreakfastFlag == 1
	dinner := room.WithDinnerFlag == 1
	switch mealType {
	case types.MealNone:
		return !breakfast && !dinner
	case types.MealBreakfast:
		return breakfast && !dinner
	case types.MealDinner:
		return dinner && !breakfast
	case types.MealBreakfastDinner:
		return breakfast && dinner
	default:
		return true
	}
}

func insidePolygon(polygon [][2]float64, lng, lat float64) bool {
	return geo.PointInPolygon(lat, lng, polygon)
}

func buildHotelSpot(id string, basic *hotelBasicInfo, rating *hotelRatingInfo, plan *planChoice) types.Spot {
	spot := types.Spot{
		ID:          id,
		Name:        basic.HotelName,
		Description: truncateDescription(basic.HotelSpecial),
		Coordinates: [2]float64{basic.Longitude, basic.Latitude},
		ImageURL:    basic.HotelImageURL,
		URL:         basic.HotelInformationURL,
		Price:       plan.total,
		Rating:      basic.ReviewAverage,
		ReviewCount: basic.ReviewCount,
		PlanID:      plan.planID,
		RoomClass:   plan.roomClass,
		Source:      types.SourceRakuten,
		IsHotel:     true,
		Status:      types.StatusHotelCandidate,
	}
	if spot.Rating == 0 {
		spot.Rating = 3.0
	}
	if rating != nil {
		spot.ReviewScores = &types.ReviewScores{
			Service:  rating.ServiceAverage,
			Location: rating.LocationAverage,
			Room:     rating.RoomAverage,
			Bath:     rating.BathAverage,
			Meal:     rating.MealAverage,
		}
	}
	return spot
}

func truncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= descriptionMaxRunes {
		return s
	}
	return string(runes[:descriptionMaxRunes]) + "..."
}

// ImportByURL follows the page's redirect chain, extracts the hotel
// number from the final URL, and looks the property up.
func (s *ServiceImpl) ImportByURL(ctx context.Context, rawURL string) (*types.Spot, error) {
	ctx, span := otel.Tracer("HotelService").Start(ctx, "ImportByURL")
	defer span.End()

	hotelNo, err := s.resolveHotelNumber(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hotel number not found")
		return nil, err
	}
	span.SetAttributes(attribute.String("hotel.no", hotelNo))

	resp, err := s.api.SimpleSearch(ctx, hotelNo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Lookup failed")
		return nil, err
	}
	if len(resp.Hotels) == 0 {
		span.SetStatus(codes.Error, "Hotel not found")
		return nil, fmt.Errorf("hotel %s not found", hotelNo)
	}

	basic, rating, _ := splitHotelGroup(resp.Hotels[0])
	if basic == nil {
		span.SetStatus(codes.Error, "Malformed hotel payload")
		return nil, fmt.Errorf("malformed payload for hotel %s", hotelNo)
	}

	spot := buildHotelSpot(strconv.Itoa(basic.HotelNo), basic, rating, &planChoice{total: basic.HotelMinCharge})
	spot.PlanID = ""
	spot.RoomClass = ""
	span.SetStatus(codes.Ok, "Hotel imported")
	return &spot, nil
}

func (s *ServiceImpl) resolveHotelNumber(ctx context.Context, rawURL string) (string, error) {
	finalURL := rawURL

	// shortened/affiliate links need a redirect hop before the id is
	// visible in the URL
	if hotelNoPathRe.FindStringSubmatch(rawURL) == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err == nil {
			if resp, err := s.hc.Do(req); err == nil {
				finalURL = resp.Request.URL.String()
				_ = resp.Body.Close()
			} else {
				s.logger.WarnContext(ctx, "Redirect follow failed", slog.Any("error", err))
			}
		}
	}

	if no := extractHotelNumber(finalURL); no != "" {
		return no, nil
	}
	return "", fmt.Errorf("no hotel number in URL")
}

// extractHotelNumber pulls the id from the path, falling back to the
// f_no/no query parameters on older URL shapes.
func extractHotelNumber(rawURL string) string {
	if m := hotelNoPathRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	qs := parsed.Query()
	if no := qs.Get("f_no"); no != "" {
		return no
	}
	return qs.Get("no")
}
