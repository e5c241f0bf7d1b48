package enrichment

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-planner/internal/api/cachestore"
	"github.com/FACorreiaa/go-trip-planner/internal/api/geo"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

const geocodeLimit = 3

// parenthesised qualifiers confuse the geocoder, e.g. 清水寺（京都）
var parenRe = regexp.MustCompile(`[(（][^)）]*[)）]`)

// Service resolves spot names to enriched, geolocated spots.
type Service interface {
	// Resolve geocodes searchQuery and returns an enriched spot named
	// after the best matching place, or (nil, nil) when no candidate
	// matches spotName.
	Resolve(ctx context.Context, spotName, searchQuery string) (*types.Spot, error)
	// ResolveReverse names the place at the given coordinates,
	// falling back to fallbackName when the provider has no name for
	// it.
	ResolveReverse(ctx context.Context, lat, lng float64, fallbackName string) (*types.Spot, error)
	// LookupImage returns Wikipedia media for a free-text query.
	LookupImage(ctx context.Context, query string) *WikiResult
}

var _ Service = (*ServiceImpl)(nil)

// ServiceImpl combines the geocoder and Wikipedia behind the durable
// cache.
type ServiceImpl struct {
	logger   *slog.Logger
	geocoder Geocoder
	wiki     WikiLookup
	cache    cachestore.Store
}

func NewService(geocoder Geocoder, wiki WikiLookup, cache cachestore.Store, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		geocoder: geocoder,
		wiki:     wiki,
		cache:    cache,
	}
}

func (s *ServiceImpl) Resolve(ctx context.Context, spotName, searchQuery string) (*types.Spot, error) {
	ctx, span := otel.Tracer("EnrichmentService").Start(ctx, "Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("spot.name", spotName))

	if strings.TrimSpace(searchQuery) == "" {
		searchQuery = spotName
	}
	key := cachestore.Fingerprint("enrich", 2, spotName, searchQuery)
	var cached types.Spot
	if s.cache.Get(ctx, key, &cached) {
		span.SetStatus(codes.Ok, "cache hit")
		return &cached, nil
	}

	candidates, err := s.geocoder.Search(ctx, parenRe.ReplaceAllString(searchQuery, ""), geocodeLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocode failed")
		return nil, err
	}

	match := pickCandidate(candidates, spotName)
	if match == nil {
		s.logger.InfoContext(ctx, "no geocode match", slog.String("spot", spotName), slog.Int("candidates", len(candidates)))
		span.SetStatus(codes.Ok, "no match")
		return nil, nil
	}

	spot := s.buildSpot(ctx, match, searchQuery)
	s.cache.Put(ctx, key, spot)
	span.SetStatus(codes.Ok, "resolved")
	return spot, nil
}

func (s *ServiceImpl) ResolveReverse(ctx context.Context, lat, lng float64, fallbackName string) (*types.Spot, error) {
	ctx, span := otel.Tracer("EnrichmentService").Start(ctx, "ResolveReverse")
	defer span.End()

	key := cachestore.Fingerprint("revgeo", 1, cachestore.Round6(lat), cachestore.Round6(lng))
	var cached types.Spot
	if s.cache.Get(ctx, key, &cached) {
		span.SetStatus(codes.Ok, "cache hit")
		return &cached, nil
	}

	cand, err := s.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverse geocode failed")
		return nil, err
	}
	if cand == nil {
		span.SetStatus(codes.Ok, "no match")
		return nil, nil
	}

	// Reverse hits are often nameless (a bare street address); the
	// caller-supplied name fills the gap before the spot is cached.
	name := strings.TrimSpace(cand.Name)
	if name == "" {
		name = strings.TrimSpace(fallbackName)
	}
	spot := s.buildSpot(ctx, cand, name)
	spot.Source = types.SourceNearby
	s.cache.Put(ctx, key, spot)
	span.SetStatus(codes.Ok, "resolved")
	return spot, nil
}

func (s *ServiceImpl) LookupImage(ctx context.Context, query string) *WikiResult {
	ctx, span := otel.Tracer("EnrichmentService").Start(ctx, "LookupImage")
	defer span.End()
	res := s.wiki.Lookup(ctx, query, "")
	span.SetStatus(codes.Ok, "done")
	return res
}

func (s *ServiceImpl) buildSpot(ctx context.Context, cand *GeocodeCandidate, searchQuery string) *types.Spot {
	spot := &types.Spot{
		Name:        cand.Name,
		Description: geo.CleanAddress(geo.AddressComponents{
			State:        cand.State,
			County:       cand.County,
			City:         cand.City,
			Municipality: "",
			Suburb:       cand.Suburb,
			District:     cand.District,
			Formatted:    cand.Formatted,
		}),
		Category:    types.DefaultCategory,
		Coordinates: cand.Coordinates,
		StayTime:    types.DefaultStayMinutes,
		Status:      types.StatusCandidate,
		Source:      types.SourceManual,
	}
	if spot.Name == "" {
		spot.Name = searchQuery
	}

	wikiQuery := spot.Name
	if strings.TrimSpace(cand.State) != "" {
		wikiQuery = spot.Name + " " + cand.State
	} else if searchQuery != spot.Name {
		wikiQuery = searchQuery
	}
	if media := s.wiki.Lookup(ctx, wikiQuery, spot.Name); media != nil {
		spot.ImageURL = media.ImageURL
		spot.Comment = media.Summary
	}
	return spot
}

// pickCandidate returns the first candidate whose name either
// contains (or is contained by) the target, or shares at least half
// of the target's characters.
func pickCandidate(candidates []GeocodeCandidate, target string) *GeocodeCandidate {
	normTarget := normalizeName(target)
	if normTarget == "" {
		return nil
	}
	for i := range candidates {
		name := normalizeName(candidates[i].Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, normTarget) || strings.Contains(normTarget, name) {
			return &candidates[i]
		}
		if overlapRatio(normTarget, name) >= 0.5 {
			return &candidates[i]
		}
	}
	return nil
}

func normalizeName(s string) string {
	s = parenRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "　", "")
	return strings.TrimSpace(s)
}

// overlapRatio is the share of target's distinct runes present in
// candidate.
func overlapRatio(target, candidate string) float64 {
	targetRunes := []rune(target)
	if len(targetRunes) == 0 {
		return 0
	}
	have := make(map[rune]bool)
	for _, r := range candidate {
		have[r] = true
	}
	seen := make(map[rune]bool)
	shared := 0
	total := 0
	for _, r := range targetRunes {
		if seen[r] {
			continue
		}
		seen[r] = true
		total++
		if have[r] {
			shared++
		}
	}
	return float64(shared) / float64(total)
}
