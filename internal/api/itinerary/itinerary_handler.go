package itinerary

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-trip-planner/internal/api"
	"github.com/FACorreiaa/go-trip-planner/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewItineraryHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// BuildItinerary handles POST /itinerary/build (and its historical
// /itinerary/optimize alias) - synthesizes a timed schedule over the
// given spot order.
func (h *Handler) BuildItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "BuildItinerary")
	defer span.End()

	l := h.logger.With(slog.String("method", "BuildItinerary"))

	var req types.BuildItineraryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Build(ctx, req)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrTooFewSpots) {
			span.SetStatus(codes.Error, "Too few spots")
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l.ErrorContext(ctx, "Itinerary build failed", slog.Any("error", err))
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusBadGateway, "route calculation failed")
		return
	}

	span.SetStatus(codes.Ok, "Itinerary built")
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}
