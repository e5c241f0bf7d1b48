package hotels

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

func NewHotelHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// SearchVacant handles POST /hotels/search - vacant hotel search
// around a coordinate.
func (h *Handler) SearchVacant(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("HotelHandler").Start(r.Context(), "SearchVacant")
	defer span.End()

	l := h.logger.With(slog.String("method", "SearchVacant"))

	var req types.VacantSearchRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	hotels, err := h.service.SearchVacant(ctx, req)
	if err != nil {
		l.ErrorContext(ctx, "Hotel search failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusBadGateway, "hotel search failed")
		return
	}

	span.SetStatus(codes.Ok, "Search complete")
	api.WriteJSONResponse(w, r, http.StatusOK, types.HotelSearchResponse{Hotels: hotels})
}

// ImportHotel handles POST /hotels/import - imports one hotel by its
// page URL.
func (h *Handler) ImportHotel(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("HotelHandler").Start(r.Context(), "ImportHotel")
	defer span.End()

	l := h.logger.With(slog.String("method", "ImportHotel"))

	var req types.ImportHotelRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		span.SetStatus(codes.Error, "Missing url")
		api.ErrorResponse(w, r, http.StatusBadRequest, "url is required")
		return
	}

	spot, err := h.service.ImportByURL(ctx, req.URL)
	if err != nil {
		l.WarnContext(ctx, "Hotel import failed", slog.String("url", req.URL), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusUnprocessableEntity, "could not resolve hotel from url")
		return
	}

	span.SetStatus(codes.Ok, "Hotel imported")
	api.WriteJSONResponse(w, r, http.StatusOK, types.EnrichResponse{Spot: spot})
}
