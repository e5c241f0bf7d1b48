package itinerary

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-planner/internal/api/cachestore"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

const (
	maxWaypoints        = 25
	defaultStartMinutes = 9 * 60
	defaultEndMinutes   = 18 * 60
	defaultLegMinutes   = 30
)

// ErrTooFewSpots is returned when fewer than two spots carry valid
// coordinates.
var ErrTooFewSpots = fmt.Errorf("at least 2 spots with coordinates are required")

// Service builds a timed schedule over an ordered spot list. Despite
// the public "optimize" route alias, the spot order is never changed.
type Service interface {
	Build(ctx context.Context, req types.BuildItineraryRequest) (*types.ItineraryResult, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger     *slog.Logger
	directions Directions
	cache      cachestore.Store
}

func NewService(directions Directions, cache cachestore.Store, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		directions: directions,
		cache:      cache,
	}
}

func (s *ServiceImpl) Build(ctx context.Context, req types.BuildItineraryRequest) (*types.ItineraryResult, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "Build")
	defer span.End()
	span.SetAttributes(attribute.Int("spots.count", len(req.Spots)))

	valid := make([]types.Spot, 0, len(req.Spots))
	for _, spot := range req.Spots {
		if spot.HasCoordinates() {
			valid = append(valid, spot)
		}
	}
	if len(valid) < 2 {
		span.SetStatus(codes.Error, "Too few spots")
		return nil, ErrTooFewSpots
	}

	// routing provider's waypoint hard limit
	used := valid
	var unused []types.Spot
	if len(valid) > maxWaypoints {
		used = valid[:maxWaypoints]
		unused = valid[maxWaypoints:]
	}

	startMin, endMin := parseWindow(req.StartTime, req.EndTime)

	key := routeFingerprint(used, startMin, endMin)
	var cached types.ItineraryResult
	if s.cache.Get(ctx, key, &cached) {
		span.SetStatus(codes.Ok, "cache hit")
		return &cached, nil
	}

	waypoints := make([][2]float64, len(used))
	for i, spot := range used {
		waypoints[i] = spot.Coordinates
	}
	route, err := s.directions.DrivingRoute(ctx, waypoints)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Routing failed")
		return nil, fmt.Errorf("route calculation failed: %w", err)
	}

	result := &types.ItineraryResult{
		Timeline:      buildTimeline(used, route.LegDurations, startMin),
		UnusedSpots:   unused,
		RouteGeometry: route.Geometry,
	}
	if result.UnusedSpots == nil {
		result.UnusedSpots = []types.Spot{}
	}

	s.cache.Put(ctx, key, result)
	s.logger.InfoContext(ctx, "Itinerary built",
		slog.Int("used", len(used)),
		slog.Int("unused", len(unused)),
		slog.Int("segments", len(result.Timeline)))
	span.SetStatus(codes.Ok, "Itinerary built")
	return result, nil
}

// buildTimeline walks spots in order accumulating a clock. The end
// clock is accepted upstream but deliberately does not truncate the
// walk; spots are never dropped for running past it.
func buildTimeline(spots []types.Spot, legSeconds []float64, startMin int) []types.TimelineSegment {
	timeline := make([]types.TimelineSegment, 0, 2*len(spots)-1)
	current := startMin

	for i := range spots {
		spot := spots[i]
		stay := spot.StayTime
		if stay <= 0 {
			stay = types.DefaultStayMinutes
		}
		spot.StayTime = stay

		arrival := current
		departure := arrival + stay
		timeline = append(timeline, types.TimelineSegment{
			Type:      types.SegmentSpot,
			Spot:      &spot,
			Arrival:   formatClock(arrival),
			Departure: formatClock(departure),
		})

		if i < len(spots)-1 {
			dur := defaultLegMinutes
			if i < len(legSeconds) {
				dur = int(math.Ceil(legSeconds[i] / 60))
			}
			timeline = append(timeline, types.TimelineSegment{
				Type:          types.SegmentTravel,
				DurationMin:   dur,
				TransportMode: "car",
				GoogleMapsURL: googleMapsURL(spots[i].Name, spots[i+1].Name),
			})
			current = departure + dur
		}
	}
	return timeline
}

// parseWindow parses "HH:MM" clocks into minutes since midnight. Any
// parse failure falls back to the canonical 09:00-18:00 window for
// both ends rather than failing the request.
func parseWindow(start, end string) (int, int) {
	startMin, err1 := parseClock(start)
	endMin, err2 := parseClock(end)
	if err1 != nil || err2 != nil {
		return defaultStartMinutes, defaultEndMinutes
	}
	return startMin, endMin
}

func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func googleMapsURL(from, to string) string {
	return "https://maps.google.com/?saddr=" + url.QueryEscape(from) +
		"&daddr=" + url.QueryEscape(to) + "&travelmode=driving"
}

// routeFingerprint keys on the ordered truncated coordinates plus the
// requested window, so identical inputs reuse the routing provider's
// answer.
func routeFingerprint(spots []types.Spot, startMin, endMin int) string {
	parts := make([]string, 0, len(spots)+2)
	for _, spot := range spots {
		parts = append(parts, cachestore.Round6(spot.Coordinates[0])+","+cachestore.Round6(spot.Coordinates[1]))
	}
	parts = append(parts, strconv.Itoa(startMin), strconv.Itoa(endMin))
	return cachestore.Fingerprint("route", 1, parts...)
}
