package types

// SuggestRequest asks the suggestion engine for themed spot
// candidates, excluding anything the caller already has on the plan.
type SuggestRequest struct {
	Theme         string         `json:"theme"`
	Area          string         `json:"area,omitempty"`
	ExistingSpots []ExistingSpot `json:"existing_spots,omitempty"`
}

// EnrichRequest resolves a named place into a full Spot.
type EnrichRequest struct {
	Name  string `json:"name"`
	Query string `json:"query,omitempty"`
}

// ReverseEnrichRequest resolves a coordinate into a full Spot.
type ReverseEnrichRequest struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	FallbackName string  `json:"fallback_name,omitempty"`
}

// EnrichResponse wraps a resolution result. Spot is null when no
// acceptable candidate was found; that is not an error.
type EnrichResponse struct {
	Spot *Spot `json:"spot"`
}

// VacantSearchRequest queries the hotel inventory provider around a
// coordinate. Radius is in the provider's km units (clamped to 3.0).
type VacantSearchRequest struct {
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Radius       float64      `json:"radius,omitempty"`
	MinPrice     int          `json:"min_price,omitempty"`
	MaxPrice     int          `json:"max_price,omitempty"`
	MealType     string       `json:"meal_type,omitempty"`
	CheckinDate  string       `json:"checkin_date,omitempty"`
	CheckoutDate string       `json:"checkout_date,omitempty"`
	AdultNum     int          `json:"adult_num,omitempty"`
	Polygon      [][2]float64 `json:"polygon,omitempty"`
}

// Meal-type filter values. Plans are matched on exact breakfast/dinner
// flag equality; an empty meal type disables the filter.
const (
	MealAny             = ""
	MealNone            = "none"
	MealBreakfast       = "breakfast"
	MealDinner          = "dinner"
	MealBreakfastDinner = "breakfast_dinner"
)

// HotelSearchResponse is the vacant-search result list.
type HotelSearchResponse struct {
	Hotels []Spot `json:"hotels"`
}

// ImportHotelRequest imports one hotel by its inventory-provider URL.
type ImportHotelRequest struct {
	URL string `json:"url"`
}

// BuildItineraryRequest synthesizes a timed schedule over an ordered
// spot list. Times are "HH:MM"; unparsable values fall back to the
// canonical 09:00-18:00 window.
type BuildItineraryRequest struct {
	Spots     []Spot `json:"spots"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// ImageLookupResponse carries a thumbnail reference, null when the
// encyclopedic provider has none.
type ImageLookupResponse struct {
	ImageURL *string `json:"image_url"`
}
