package suggestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-trip-planner/internal/api/enrichment"
	"github.com/FACorreiaa/go-trip-planner/internal/api/geo"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

const (
	maxCandidates      = 10
	oracleTemperature  = float32(0.7)
	duplicateRadiusKm  = 0.2
	eventChannelBuffer = 32
	sendTimeout        = 2 * time.Second
)

// StreamEvent is one NDJSON line of the suggestion stream.
type StreamEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventID   string      `json:"event_id"`
}

// StreamEventType constants
const (
	EventTypeStatus     = "status"
	EventTypeCandidates = "candidates"
	EventTypeSpotFound  = "spot_found"
	EventTypeDone       = "done"
	EventTypeError      = "error"
)

// StreamingResponse wraps the event channel and its cancel func. The
// channel is closed when the sequence ends, whatever the reason.
type StreamingResponse struct {
	Stream <-chan StreamEvent
	Cancel context.CancelFunc
}

// TextOracle is the single-round-trip generation contract the engine
// needs from the AI client.
type TextOracle interface {
	GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Service produces themed spot suggestions as an event stream.
type Service interface {
	SuggestStreamed(ctx context.Context, req types.SuggestRequest) *StreamingResponse
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger   *slog.Logger
	oracle   TextOracle
	enricher enrichment.Service
}

func NewService(oracle TextOracle, enricher enrichment.Service, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		oracle:   oracle,
		enricher: enricher,
	}
}

func (s *ServiceImpl) sendEvent(ctx context.Context, ch chan<- StreamEvent, event StreamEvent) (sent bool) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Context cancelled, not sending stream event", slog.String("eventType", event.Type))
		return false
	default:
		select {
		case ch <- event:
			return true
		case <-ctx.Done():
			s.logger.WarnContext(ctx, "Context cancelled while trying to send stream event", slog.String("eventType", event.Type))
			return false
		case <-time.After(sendTimeout):
			s.logger.WarnContext(ctx, "Dropped stream event due to slow consumer or blocked channel (timeout)", slog.String("eventType", event.Type))
			return false
		}
	}
}

// SuggestStreamed starts the suggestion sequence and returns the
// event stream immediately. Cancelling abandons in-flight enrichment.
func (s *ServiceImpl) SuggestStreamed(ctx context.Context, req types.SuggestRequest) *StreamingResponse {
	ctx, cancel := context.WithCancel(ctx)
	eventCh := make(chan StreamEvent, eventChannelBuffer)

	go func() {
		defer close(eventCh)
		s.run(ctx, eventCh, req)
	}()

	return &StreamingResponse{Stream: eventCh, Cancel: cancel}
}

type enrichmentResult struct {
	candidate oracleCandidate
	spot      *types.Spot
	err       error
}

func (s *ServiceImpl) run(ctx context.Context, eventCh chan<- StreamEvent, req types.SuggestRequest) {
	ctx, span := otel.Tracer("SuggestionService").Start(ctx, "SuggestStreamed", trace.WithAttributes(
		attribute.String("theme", req.Theme),
		attribute.Int("existing.count", len(req.ExistingSpots)),
	))
	defer span.End()

	l := s.logger.With(slog.String("theme", req.Theme))

	if !s.sendEvent(ctx, eventCh, StreamEvent{Type: EventTypeStatus, Data: map[string]interface{}{"status": "generating_candidates"}}) {
		return
	}

	existingNames := make([]string, 0, len(req.ExistingSpots))
	for _, e := range req.ExistingSpots {
		if strings.TrimSpace(e.Name) != "" {
			existingNames = append(existingNames, e.Name)
		}
	}

	candidates, err := s.fetchCandidates(ctx, req.Theme, req.Area, existingNames)
	if err != nil {
		l.ErrorContext(ctx, "Oracle candidate generation failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Oracle failed")
		s.sendEvent(ctx, eventCh, StreamEvent{Type: EventTypeError, Error: err.Error()})
		return
	}

	candidates = dedupeCandidates(candidates, existingNames, maxCandidates)

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	if !s.sendEvent(ctx, eventCh, StreamEvent{Type: EventTypeCandidates, Data: map[string]interface{}{"names": names}}) {
		return
	}

	// Fan out enrichment; consume in completion order so the first
	// resolved spot reaches the client without waiting for the rest.
	resultCh := make(chan enrichmentResult, len(candidates))
	var wg sync.WaitGroup
	for _, cand := range candidates {
		wg.Add(1)
		go func(c oracleCandidate) {
			defer wg.Done()
			spot, err := s.enricher.Resolve(ctx, c.Name, c.SearchQuery)
			resultCh <- enrichmentResult{candidate: c, spot: spot, err: err}
		}(cand)
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	filter := newDuplicateFilter(req.ExistingSpots)
	accepted := 0
	for res := range resultCh {
		if res.err != nil {
			l.WarnContext(ctx, "Candidate enrichment failed", slog.String("candidate", res.candidate.Name), slog.Any("error", res.err))
			continue
		}
		spot := res.spot
		if spot == nil || !spot.HasCoordinates() {
			continue
		}
		if reason := filter.reject(spot); reason != "" {
			l.InfoContext(ctx, "Candidate rejected", slog.String("candidate", res.candidate.Name), slog.String("reason", reason))
			continue
		}

		// the oracle's blurb reads better than an address line
		if res.candidate.Summary != "" {
			spot.Comment = res.candidate.Summary
		}
		if res.candidate.Category != "" {
			spot.Category = res.candidate.Category
		}
		spot.StayTime = types.AIStayMinutes
		spot.Source = types.SourceAI
		spot.Status = types.StatusCandidate

		if !s.sendEvent(ctx, eventCh, StreamEvent{Type: EventTypeSpotFound, Data: spot}) {
			return
		}
		accepted++
	}

	s.sendEvent(ctx, eventCh, StreamEvent{Type: EventTypeDone, Data: map[string]interface{}{"count": accepted}})
	l.InfoContext(ctx, "Suggestion stream complete", slog.Int("accepted", accepted))
	span.SetAttributes(attribute.Int("spots.accepted", accepted))
	span.SetStatus(codes.Ok, "Stream complete")
}

func (s *ServiceImpl) fetchCandidates(ctx context.Context, theme, area string, existingNames []string) ([]oracleCandidate, error) {
	prompt := getSuggestionPrompt(theme, area, existingNames)
	resp, err := s.oracle.GenerateResponse(ctx, prompt, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](oracleTemperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}
	return parseCandidates(resp.Text())
}

// parseCandidates accepts either a bare array or a {"spots": [...]}
// wrapper, with optional markdown fences.
func parseCandidates(raw string) ([]oracleCandidate, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var list []oracleCandidate
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, nil
	}

	var wrapper struct {
		Spots []oracleCandidate `json:"spots"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil || wrapper.Spots == nil {
		return nil, fmt.Errorf("unparseable oracle output")
	}
	return wrapper.Spots, nil
}

// dedupeCandidates drops exact-name repeats within the oracle output
// and anything already on the caller's plan, then caps the list.
func dedupeCandidates(candidates []oracleCandidate, existingNames []string, limit int) []oracleCandidate {
	seen := make(map[string]bool, len(existingNames))
	for _, n := range existingNames {
		seen[normalizeName(n)] = true
	}

	out := make([]oracleCandidate, 0, limit)
	for _, c := range candidates {
		key := normalizeName(c.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

// duplicateFilter rejects spots that repeat a coordinate accepted
// earlier in the same request or collide with the caller's existing
// plan by name or proximity.
type duplicateFilter struct {
	acceptedCoords map[[2]float64]bool
	existingNames  map[string]bool
	existingCoords [][2]float64
}

func newDuplicateFilter(existing []types.ExistingSpot) *duplicateFilter {
	f := &duplicateFilter{
		acceptedCoords: make(map[[2]float64]bool),
		existingNames:  make(map[string]bool, len(existing)),
	}
	for _, e := range existing {
		if key := normalizeName(e.Name); key != "" {
			f.existingNames[key] = true
		}
		if e.Coordinates != nil {
			f.existingCoords = append(f.existingCoords, *e.Coordinates)
		}
	}
	return f
}

func (f *duplicateFilter) reject(spot *types.Spot) (reason string) {
	if f.acceptedCoords[spot.Coordinates] {
		return "coordinate already accepted"
	}
	if f.existingNames[normalizeName(spot.Name)] {
		return "name already on plan"
	}
	for _, c := range f.existingCoords {
		if geo.HaversineKm(spot.Coordinates[:], c[:]) < duplicateRadiusKm {
			return "too close to existing spot"
		}
	}
	f.acceptedCoords[spot.Coordinates] = true
	return ""
}

func normalizeName(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "　", "")
	return strings.ToLower(strings.TrimSpace(s))
}
