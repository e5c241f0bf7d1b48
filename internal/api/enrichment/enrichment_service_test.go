package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-trip-planner/internal/api/cachestore"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

type fakeGeocoder struct {
	searchFn  func(ctx context.Context, text string, limit int) ([]GeocodeCandidate, error)
	reverseFn func(ctx context.Context, lat, lng float64) (*GeocodeCandidate, error)
}

func (f *fakeGeocoder) Search(ctx context.Context, text string, limit int) ([]GeocodeCandidate, error) {
	return f.searchFn(ctx, text, limit)
}

func (f *fakeGeocoder) Reverse(ctx context.Context, lat, lng float64) (*GeocodeCandidate, error) {
	return f.reverseFn(ctx, lat, lng)
}

type fakeWiki struct {
	lastQuery string
	result    *WikiResult
}

func (f *fakeWiki) Lookup(_ context.Context, query, _ string) *WikiResult {
	f.lastQuery = query
	return f.result
}

// memStore is an in-process stand-in for the durable cache.
type memStore struct {
	entries map[string][]byte
}

func newMemStore() *memStore { return &memStore{entries: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string, dst any) bool {
	raw, ok := m.entries[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (m *memStore) Put(_ context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	m.entries[key] = raw
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func kinkakujiCandidate() GeocodeCandidate {
	return GeocodeCandidate{
		Name:        "金閣寺",
		State:       "京都府",
		City:        "京都市",
		Formatted:   "金閣寺, 京都市, 京都府, 日本",
		Coordinates: [2]float64{135.7292, 35.0394},
	}
}

func TestResolveBuildsEnrichedSpot(t *testing.T) {
	geocoder := &fakeGeocoder{
		searchFn: func(_ context.Context, text string, limit int) ([]GeocodeCandidate, error) {
			assert.Equal(t, "金閣寺", text)
			assert.Equal(t, geocodeLimit, limit)
			return []GeocodeCandidate{kinkakujiCandidate()}, nil
		},
	}
	wiki := &fakeWiki{result: &WikiResult{ImageURL: "https://upload.example/kinkaku.jpg", Summary: "鹿苑寺は京都市北区にある寺院。"}}
	svc := NewService(geocoder, wiki, newMemStore(), discardLogger())

	spot, err := svc.Resolve(context.Background(), "金閣寺", "金閣寺（京都）")
	require.NoError(t, err)
	require.NotNil(t, spot)

	assert.Equal(t, "金閣寺", spot.Name)
	assert.Equal(t, "京都府京都市", spot.Description)
	assert.Equal(t, [2]float64{135.7292, 35.0394}, spot.Coordinates)
	assert.Equal(t, types.StatusCandidate, spot.Status)
	assert.Equal(t, types.DefaultStayMinutes, spot.StayTime)
	assert.Equal(t, "https://upload.example/kinkaku.jpg", spot.ImageURL)
	assert.Equal(t, "鹿苑寺は京都市北区にある寺院。", spot.Comment)
	// composite encyclopedic query carries the prefecture
	assert.Equal(t, "金閣寺 京都府", wiki.lastQuery)
}

func TestResolveNoMatchIsNotAnError(t *testing.T) {
	geocoder := &fakeGeocoder{
		searchFn: func(_ context.Context, _ string, _ int) ([]GeocodeCandidate, error) {
			return []GeocodeCandidate{{Name: "全然違う場所", Coordinates: [2]float64{139.7, 35.6}}}, nil
		},
	}
	svc := NewService(geocoder, &fakeWiki{}, newMemStore(), discardLogger())

	spot, err := svc.Resolve(context.Background(), "金閣寺", "金閣寺")
	require.NoError(t, err)
	assert.Nil(t, spot)
}

func TestResolveAcceptsCharacterOverlap(t *testing.T) {
	// 鹿苑金閣 shares two of 金閣寺's three runes without containment
	geocoder := &fakeGeocoder{
		searchFn: func(_ context.Context, _ string, _ int) ([]GeocodeCandidate, error) {
			return []GeocodeCandidate{{
				Name:        "鹿苑金閣",
				State:       "京都府",
				City:        "京都市",
				Coordinates: [2]float64{135.7292, 35.0394},
			}}, nil
		},
	}
	svc := NewService(geocoder, &fakeWiki{}, newMemStore(), discardLogger())

	spot, err := svc.Resolve(context.Background(), "金閣寺", "金閣寺")
	require.NoError(t, err)
	require.NotNil(t, spot)
	assert.Equal(t, "鹿苑金閣", spot.Name)
}

func TestResolveServedFromCache(t *testing.T) {
	store := newMemStore()
	geocoder := &fakeGeocoder{
		searchFn: func(_ context.Context, _ string, _ int) ([]GeocodeCandidate, error) {
			return []GeocodeCandidate{kinkakujiCandidate()}, nil
		},
	}
	svc := NewService(geocoder, &fakeWiki{}, store, discardLogger())

	first, err := svc.Resolve(context.Background(), "金閣寺", "金閣寺")
	require.NoError(t, err)
	require.NotNil(t, first)

	// second call must not reach the geocoder
	geocoder.searchFn = func(_ context.Context, _ string, _ int) ([]GeocodeCandidate, error) {
		return nil, errors.New("provider down")
	}
	second, err := svc.Resolve(context.Background(), "金閣寺", "金閣寺")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Coordinates, second.Coordinates)
}

func TestResolveGeocodeErrorPropagates(t *testing.T) {
	geocoder := &fakeGeocoder{
		searchFn: func(_ context.Context, _ string, _ int) ([]GeocodeCandidate, error) {
			return nil, errors.New("provider down")
		},
	}
	svc := NewService(geocoder, &fakeWiki{}, newMemStore(), discardLogger())

	spot, err := svc.Resolve(context.Background(), "金閣寺", "金閣寺")
	require.Error(t, err)
	assert.Nil(t, spot)
}

func TestResolveReverseNamesNearbyPlace(t *testing.T) {
	geocoder := &fakeGeocoder{
		reverseFn: func(_ context.Context, lat, lng float64) (*GeocodeCandidate, error) {
			assert.InDelta(t, 35.0394, lat, 1e-9)
			assert.InDelta(t, 135.7292, lng, 1e-9)
			c := kinkakujiCandidate()
			return &c, nil
		},
	}
	svc := NewService(geocoder, &fakeWiki{}, newMemStore(), discardLogger())

	spot, err := svc.ResolveReverse(context.Background(), 35.0394, 135.7292, "見つけた場所")
	require.NoError(t, err)
	require.NotNil(t, spot)
	assert.Equal(t, "金閣寺", spot.Name, "provider name wins over the fallback")
	assert.Equal(t, types.SourceNearby, spot.Source)
}

func TestResolveReverseUsesFallbackForNamelessHit(t *testing.T) {
	geocoder := &fakeGeocoder{
		reverseFn: func(_ context.Context, _, _ float64) (*GeocodeCandidate, error) {
			return &GeocodeCandidate{
				State:       "京都府",
				City:        "京都市",
				Formatted:   "京都府京都市北区金閣寺町1",
				Coordinates: [2]float64{135.7292, 35.0394},
			}, nil
		},
	}
	store := newMemStore()
	svc := NewService(geocoder, &fakeWiki{}, store, discardLogger())

	spot, err := svc.ResolveReverse(context.Background(), 35.0394, 135.7292, "ホテル周辺")
	require.NoError(t, err)
	require.NotNil(t, spot)
	assert.Equal(t, "ホテル周辺", spot.Name)

	// The substituted name must be what the write-through cache keeps.
	var cached types.Spot
	key := cachestore.Fingerprint("revgeo", 1, cachestore.Round6(35.0394), cachestore.Round6(135.7292))
	require.True(t, store.Get(context.Background(), key, &cached))
	assert.Equal(t, "ホテル周辺", cached.Name)
}

func TestPickCandidateFirstAcceptableWins(t *testing.T) {
	candidates := []GeocodeCandidate{
		{Name: "無関係な駅"},
		{Name: "清水寺"},
		{Name: "清水寺 仁王門"},
	}
	match := pickCandidate(candidates, "清水寺")
	require.NotNil(t, match)
	assert.Equal(t, "清水寺", match.Name)
}

func TestPickCandidateRejectsEmptyTarget(t *testing.T) {
	candidates := []GeocodeCandidate{{Name: "清水寺"}}
	assert.Nil(t, pickCandidate(candidates, ""))
	assert.Nil(t, pickCandidate(candidates, "（京都）"), "target that normalizes away matches nothing")
}

func TestPickCandidateIgnoresParenQualifiers(t *testing.T) {
	candidates := []GeocodeCandidate{{Name: "清水寺（京都市東山区）"}}
	match := pickCandidate(candidates, "清水寺")
	require.NotNil(t, match)
}

func TestOverlapRatio(t *testing.T) {
	assert.InDelta(t, 1.0, overlapRatio("金閣寺", "鹿苑寺金閣"), 1e-9)
	assert.InDelta(t, 0.0, overlapRatio("金閣寺", "東京駅"), 1e-9)
	assert.InDelta(t, 0.0, overlapRatio("", "東京駅"), 1e-9)
}

func TestTruncateRunes(t *testing.T) {
	long := make([]rune, 0, 250)
	for i := 0; i < 250; i++ {
		long = append(long, 'あ')
	}
	got := truncateRunes(string(long), wikiSummaryMaxRune)
	assert.Equal(t, wikiSummaryMaxRune+1, len([]rune(got)))
	assert.Equal(t, "短い", truncateRunes("短い", wikiSummaryMaxRune))
}
