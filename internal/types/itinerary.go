package types

import "encoding/json"

// Timeline segment kinds. A timeline alternates spot and travel
// segments and both starts and ends on a spot segment.
const (
	SegmentSpot   = "spot"
	SegmentTravel = "travel"
)

// TimelineSegment is one entry of the synthesized schedule. Spot
// segments carry arrival/departure clock strings ("HH:MM"); travel
// segments carry the leg duration in whole minutes.
type TimelineSegment struct {
	Type          string `json:"type"`
	Spot          *Spot  `json:"spot,omitempty"`
	Arrival       string `json:"arrival,omitempty"`
	Departure     string `json:"departure,omitempty"`
	DurationMin   int    `json:"duration_min,omitempty"`
	TransportMode string `json:"transport_mode,omitempty"`
	GoogleMapsURL string `json:"google_maps_url,omitempty"`
}

// ItineraryResult is the itinerary builder's output: the timeline, the
// routing provider's raw path geometry for map rendering, and any
// spots excluded by the waypoint cap.
type ItineraryResult struct {
	Timeline      []TimelineSegment `json:"timeline"`
	UnusedSpots   []Spot            `json:"unused_spots"`
	RouteGeometry json.RawMessage   `json:"route_geometry,omitempty"`
}
