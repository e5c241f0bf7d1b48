package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/FACorreiaa/go-trip-planner/internal/api/enrichment"
	"github.com/FACorreiaa/go-trip-planner/internal/api/hotels"
	"github.com/FACorreiaa/go-trip-planner/internal/api/itinerary"
	"github.com/FACorreiaa/go-trip-planner/internal/api/suggestion"
)

// Config contains the handlers the router wires up.
type Config struct {
	SuggestionHandler *suggestion.Handler
	EnrichmentHandler *enrichment.Handler
	HotelHandler      *hotels.Handler
	ItineraryHandler  *itinerary.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected
// to be applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/spots", func(r chi.Router) {
			// the suggest stream fans out to the oracle and the
			// geocoder, so it gets a tighter rate limit
			r.With(httprate.LimitByIP(10, 1*time.Minute)).
				Post("/suggest", cfg.SuggestionHandler.SuggestSpotsStream)
			r.Post("/enrich", cfg.EnrichmentHandler.EnrichSpot)
			r.Post("/reverse", cfg.EnrichmentHandler.ReverseEnrich)
			r.Get("/image", cfg.EnrichmentHandler.LookupImage)
		})

		r.Route("/hotels", func(r chi.Router) {
			r.Post("/search", cfg.HotelHandler.SearchVacant)
			r.Post("/import", cfg.HotelHandler.ImportHotel)
		})

		r.Route("/itinerary", func(r chi.Router) {
			r.Post("/build", cfg.ItineraryHandler.BuildItinerary)
			// historical alias; no reordering actually happens
			r.Post("/optimize", cfg.ItineraryHandler.BuildItinerary)
		})
	})

	return r
}
