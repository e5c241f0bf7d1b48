package suggestion

import (
	"encoding/json"
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

func NewSuggestionHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// SuggestSpotsStream handles POST /spots/suggest - streams suggestion
// events as newline-delimited JSON, one object per line, flushed per
// event.
func (h *Handler) SuggestSpotsStream(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SuggestionHandler").Start(r.Context(), "SuggestSpotsStream")
	defer span.End()

	l := h.logger.With(slog.String("method", "SuggestSpotsStream"))

	var req types.SuggestRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Theme) == "" {
		span.SetStatus(codes.Error, "Missing theme")
		api.ErrorResponse(w, r, http.StatusBadRequest, "theme is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "Streaming not supported")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	streamResp := h.service.SuggestStreamed(ctx, req)
	defer streamResp.Cancel()

	l.InfoContext(ctx, "Started suggestion stream", slog.String("theme", req.Theme))

	enc := json.NewEncoder(w) // Encode appends the newline NDJSON needs
	for {
		select {
		case event, open := <-streamResp.Stream:
			if !open {
				span.SetStatus(codes.Ok, "Stream complete")
				return
			}
			if err := enc.Encode(event); err != nil {
				l.WarnContext(ctx, "Failed to write stream event", slog.Any("error", err))
				span.RecordError(err)
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			l.InfoContext(ctx, "Client disconnected from suggestion stream")
			span.SetStatus(codes.Ok, "Client disconnected")
			return
		}
	}
}
