package enrichment

import (
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-planner/internal/api"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewEnrichmentHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// EnrichSpot handles POST /spots/enrich - resolves a named place into
// a geolocated, media-enriched spot. A null spot means no acceptable
// match, which is a 200, not an error.
func (h *Handler) EnrichSpot(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("EnrichmentHandler").Start(r.Context(), "EnrichSpot")
	defer span.End()

	l := h.logger.With(slog.String("method", "EnrichSpot"))

	var req types.EnrichRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		span.SetStatus(codes.Error, "Missing name")
		api.ErrorResponse(w, r, http.StatusBadRequest, "name is required")
		return
	}

	spot, err := h.service.Resolve(ctx, req.Name, req.Query)
	if err != nil {
		l.ErrorContext(ctx, "Failed to resolve spot", slog.String("name", req.Name), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusBadGateway, "failed to resolve spot")
		return
	}

	span.SetStatus(codes.Ok, "Spot resolved")
	api.WriteJSONResponse(w, r, http.StatusOK, types.EnrichResponse{Spot: spot})
}

// ReverseEnrich handles POST /spots/reverse - names the place at a
// coordinate.
func (h *Handler) ReverseEnrich(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("EnrichmentHandler").Start(r.Context(), "ReverseEnrich")
	defer span.End()

	l := h.logger.With(slog.String("method", "ReverseEnrich"))

	var req types.ReverseEnrichRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	spot, err := h.service.ResolveReverse(ctx, req.Latitude, req.Longitude, req.FallbackName)
	if err != nil {
		l.ErrorContext(ctx, "Failed to reverse geocode", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusBadGateway, "failed to reverse geocode")
		return
	}
	if spot == nil && strings.TrimSpace(req.FallbackName) != "" {
		spot = &types.Spot{
			Name:        req.FallbackName,
			Coordinates: [2]float64{req.Longitude, req.Latitude},
			Category:    types.DefaultCategory,
			StayTime:    types.DefaultStayMinutes,
			Status:      types.StatusCandidate,
			Source:      types.SourceNearby,
		}
	}

	span.SetStatus(codes.Ok, "Reverse geocode done")
	api.WriteJSONResponse(w, r, http.StatusOK, types.EnrichResponse{Spot: spot})
}

// LookupImage handles GET /spots/image?query= - returns a thumbnail
// reference or null.
func (h *Handler) LookupImage(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("EnrichmentHandler").Start(r.Context(), "LookupImage")
	defer span.End()

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		span.SetStatus(codes.Error, "Missing query")
		api.ErrorResponse(w, r, http.StatusBadRequest, "query is required")
		return
	}

	resp := types.ImageLookupResponse{}
	if res := h.service.LookupImage(ctx, query); res != nil && res.ImageURL != "" {
		resp.ImageURL = &res.ImageURL
	}

	span.SetStatus(codes.Ok, "Image lookup done")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
