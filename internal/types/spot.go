package types

import "encoding/json"

// Spot lifecycle statuses.
const (
	StatusCandidate      = "candidate"
	StatusHotelCandidate = "hotel_candidate"
	StatusConfirmed      = "confirmed"
)

// Spot provenance tags.
const (
	SourceAI      = "ai"
	SourceRakuten = "rakuten"
	SourceNearby  = "nearby"
	SourceManual  = "manual"
)

// Default dwell times in minutes. AI suggestions get a longer default
// because the oracle only proposes major sights.
const (
	DefaultStayMinutes = 60
	AIStayMinutes      = 90
)

// DefaultCategory is applied when no source supplies one.
const DefaultCategory = "観光スポット"

// Spot is a point of interest or lodging candidate. Coordinates are
// [longitude, latitude] (WGS84); [0, 0] means "unresolved" and must be
// filtered out before a spot is surfaced to a caller.
type Spot struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Coordinates [2]float64 `json:"coordinates"`
	Description string     `json:"description,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	URL         string     `json:"url,omitempty"`
	Category    string     `json:"category,omitempty"`

	// Lodging-only fields.
	Price        int           `json:"price,omitempty"`
	Rating       float64       `json:"rating,omitempty"`
	ReviewCount  int           `json:"review_count,omitempty"`
	ReviewScores *ReviewScores `json:"review_scores,omitempty"`
	PlanID       string        `json:"plan_id,omitempty"`
	RoomClass    string        `json:"room_class,omitempty"`

	Status   string `json:"status"`
	StayTime int    `json:"stay_time,omitempty"`
	Source   string `json:"source"`
	IsHotel  bool   `json:"is_hotel"`
}

// ReviewScores carries a hotel's review sub-ratings.
type ReviewScores struct {
	Service  float64 `json:"service,omitempty"`
	Location float64 `json:"location,omitempty"`
	Room     float64 `json:"room,omitempty"`
	Bath     float64 `json:"bath,omitempty"`
	Meal     float64 `json:"meal,omitempty"`
}

func (s *Spot) Lng() float64 { return s.Coordinates[0] }
func (s *Spot) Lat() float64 { return s.Coordinates[1] }

// HasCoordinates reports whether the spot carries a resolved
// coordinate rather than the [0,0] sentinel.
func (s *Spot) HasCoordinates() bool {
	return s.Coordinates[0] != 0 || s.Coordinates[1] != 0
}

// MergeEnrichment fills comment and image fields from another
// enrichment pass. First writer wins: non-empty values are never
// overwritten.
func (s *Spot) MergeEnrichment(other *Spot) {
	if other == nil {
		return
	}
	if s.Comment == "" {
		s.Comment = other.Comment
	}
	if s.ImageURL == "" {
		s.ImageURL = other.ImageURL
	}
	if s.Description == "" {
		s.Description = other.Description
	}
}

// ExistingSpot is the caller-supplied "already on the plan" record. The
// frontends send it either as a bare name string or as an object with
// optional coordinates, so it unmarshals from both shapes.
type ExistingSpot struct {
	Name        string
	Coordinates *[2]float64
}

func (e *ExistingSpot) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		e.Name = name
		e.Coordinates = nil
		return nil
	}

	var obj struct {
		Name        string    `json:"name"`
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.Name = obj.Name
	if len(obj.Coordinates) >= 2 {
		coords := [2]float64{obj.Coordinates[0], obj.Coordinates[1]}
		if coords[0] != 0 || coords[1] != 0 {
			e.Coordinates = &coords
		}
	}
	return nil
}

func (e ExistingSpot) MarshalJSON() ([]byte, error) {
	if e.Coordinates == nil {
		return json.Marshal(e.Name)
	}
	return json.Marshal(struct {
		Name        string     `json:"name"`
		Coordinates [2]float64 `json:"coordinates"`
	}{e.Name, *e.Coordinates})
}
