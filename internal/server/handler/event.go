package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tempoledger/tempod/internal/domain"
)

// EventService defines the methods the event handler requires from the
// service layer.
type EventService interface {
	ListEvents(ctx context.Context, account domain.Identity, opts domain.ListOpts) ([]domain.LedgerEvent, error)
}

// EventHandler serves the change-record history endpoint.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler with the given service and logger.
func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// listEventsResponse wraps the event history output with pagination metadata.
type listEventsResponse struct {
	Events []eventView `json:"events"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ListEvents returns the change records touching an account, newest first.
// GET /api/accounts/{id}/events?limit=50&offset=0&since=...&until=...
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return
	}
	opts := parseListOpts(r)

	events, err := h.events.ListEvents(r.Context(), domain.Identity(id), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("account", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, listEventsResponse{
		Events: toEventViews(events),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}
