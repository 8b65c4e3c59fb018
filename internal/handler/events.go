package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/formwork/platform/internal/dispatch"
	"github.com/formwork/platform/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// EventHandler exposes recorded action outcomes per correlation ID for
// operator inspection.
type EventHandler struct {
	aggregator *dispatch.Aggregator
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(aggregator *dispatch.Aggregator) *EventHandler {
	return &EventHandler{aggregator: aggregator}
}

// GetResults returns the results recorded for a correlation ID. With
// ?expected=N&wait_ms=M it blocks up to the wait for N results, mirroring
// the engine's bounded-await semantics. Without ?expected the report is
// complete only once no queued jobs remain for the event.
func (h *EventHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	correlationID, err := uuid.Parse(chi.URLParam(r, "correlationID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid correlation id"))
		return
	}

	expected, _ := strconv.Atoi(r.URL.Query().Get("expected"))
	waitMs, _ := strconv.Atoi(r.URL.Query().Get("wait_ms"))
	if waitMs > 10_000 {
		waitMs = 10_000
	}

	outcome, err := h.aggregator.Await(r.Context(), correlationID, expected, time.Duration(waitMs)*time.Millisecond)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, outcome)
}
