package enrichment

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-trip-planner/internal/api/cachestore"
	"github.com/FACorreiaa/go-trip-planner/internal/api/fetcher"
)

const (
	wikiSearchLimit    = 5
	wikiThumbSize      = 400
	wikiSummaryMaxRune = 200
)

// summaries that are navigation pages rather than articles
var wikiDiscardMarkers = []string{
	"曖昧さ回避",
	"may refer to",
	"を参照",
}

// WikiResult holds the media fields pulled from Japanese Wikipedia
// for a single spot.
type WikiResult struct {
	ImageURL string `json:"image_url"`
	Summary  string `json:"summary"`
}

// WikiLookup resolves a free-text query to an image and a short
// summary, or nil when nothing usable exists.
type WikiLookup interface {
	Lookup(ctx context.Context, query, targetName string) *WikiResult
}

var _ WikiLookup = (*WikipediaClient)(nil)

// WikipediaClient queries the ja.wikipedia MediaWiki API. Results are
// memoised in-process and written through to the durable cache; every
// failure degrades to a nil result, never an error, so enrichment
// keeps moving without media.
type WikipediaClient struct {
	fetcher *fetcher.Client
	baseURL string
	memo    *gocache.Cache
	store   cachestore.Store
	logger  *slog.Logger
}

func NewWikipediaClient(f *fetcher.Client, baseURL string, store cachestore.Store, logger *slog.Logger) *WikipediaClient {
	return &WikipediaClient{
		fetcher: f,
		baseURL: baseURL,
		memo:    gocache.New(24*time.Hour, 1*time.Hour),
		store:   store,
		logger:  logger,
	}
}

func (w *WikipediaClient) Lookup(ctx context.Context, query, targetName string) *WikiResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if hit, ok := w.memo.Get(query); ok {
		if res, ok := hit.(*WikiResult); ok {
			return res
		}
	}
	key := cachestore.Fingerprint("wiki", 2, query)
	var cached WikiResult
	if w.store.Get(ctx, key, &cached) {
		w.memo.Set(query, &cached, gocache.DefaultExpiration)
		return &cached
	}

	res := w.fetch(ctx, query, targetName)
	if res != nil {
		w.memo.Set(query, res, gocache.DefaultExpiration)
		w.store.Put(ctx, key, res)
	}
	return res
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title  string `json:"title"`
			PageID int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type wikiPageResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			Extract   string `json:"extract"`
			Thumbnail struct {
				Source string `json:"source"`
			} `json:"thumbnail"`
		} `json:"pages"`
	} `json:"query"`
}

func (w *WikipediaClient) fetch(ctx context.Context, query, targetName string) *WikiResult {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(wikiSearchLimit))
	params.Set("format", "json")

	var search wikiSearchResponse
	if err := w.fetcher.FetchJSON(ctx, fetcher.Request{URL: w.baseURL, Params: params}, &search); err != nil {
		w.logger.WarnContext(ctx, "wikipedia search failed", slog.String("query", query), slog.Any("error", err))
		return nil
	}
	if len(search.Query.Search) == 0 {
		return nil
	}

	// prefer the hit whose title contains the spot name
	pageID := search.Query.Search[0].PageID
	if targetName != "" {
		for _, hit := range search.Query.Search {
			if strings.Contains(hit.Title, targetName) || strings.Contains(targetName, hit.Title) {
				pageID = hit.PageID
				break
			}
		}
	}

	params = url.Values{}
	params.Set("action", "query")
	params.Set("prop", "pageimages|extracts")
	params.Set("pithumbsize", strconv.Itoa(wikiThumbSize))
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("pageids", strconv.Itoa(pageID))
	params.Set("format", "json")

	var page wikiPageResponse
	if err := w.fetcher.FetchJSON(ctx, fetcher.Request{URL: w.baseURL, Params: params}, &page); err != nil {
		w.logger.WarnContext(ctx, "wikipedia page fetch failed", slog.String("query", query), slog.Any("error", err))
		return nil
	}

	for _, p := range page.Query.Pages {
		summary := strings.TrimSpace(p.Extract)
		for _, marker := range wikiDiscardMarkers {
			if strings.Contains(summary, marker) {
				summary = ""
				break
			}
		}
		summary = truncateRunes(summary, wikiSummaryMaxRune)
		if summary == "" && p.Thumbnail.Source == "" {
			return nil
		}
		return &WikiResult{ImageURL: p.Thumbnail.Source, Summary: summary}
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
