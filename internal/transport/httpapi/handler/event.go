package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/payrail/payrail/internal/eventlog"
)

// EventServiceInterface defines the interface for event log reads
type EventServiceInterface interface {
	ReadSince(ctx context.Context, since int64, limit int) ([]*eventlog.Event, error)
	ReadAggregateHistory(ctx context.Context, aggregateType, aggregateID string) ([]*eventlog.Event, error)
}

// EventHandler handles event log HTTP requests
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler creates a new event handler
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{service: service}
}

// EventResponse represents one event on the wire
type EventResponse struct {
	EventID        string                 `json:"event_id"`
	SequenceNumber int64                  `json:"sequence_number"`
	AggregateType  string                 `json:"aggregate_type"`
	AggregateID    string                 `json:"aggregate_id"`
	EventType      string                 `json:"event_type"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	CreatedAt      string                 `json:"created_at"`
}

// EventListResponse represents an ordered batch of events
type EventListResponse struct {
	Events []EventResponse `json:"events"`
}

func toEventResponse(e *eventlog.Event) EventResponse {
	return EventResponse{
		EventID:        e.EventID,
		SequenceNumber: e.SequenceNumber,
		AggregateType:  e.AggregateType,
		AggregateID:    e.AggregateID,
		EventType:      e.EventType,
		Payload:        e.Payload,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339Nano),
	}
}

// ListEvents handles GET /api/events?since=<seq>&limit=<n>
// Returns events with sequence numbers strictly greater than since, in
// ascending order. Clients use this to reconcile after missing broadcasts.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = parsed
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	events, err := h.service.ReadSince(r.Context(), since, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := EventListResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListAggregateEvents handles GET /api/events/{aggregate_type}/{aggregate_id}
// Returns the totally ordered history of one aggregate.
func (h *EventHandler) ListAggregateEvents(w http.ResponseWriter, r *http.Request) {
	aggregateType := chi.URLParam(r, "aggregate_type")
	aggregateID := chi.URLParam(r, "aggregate_id")
	if aggregateType == "" || aggregateID == "" {
		respondError(w, http.StatusBadRequest, "aggregate type and id are required")
		return
	}

	events, err := h.service.ReadAggregateHistory(r.Context(), aggregateType, aggregateID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := EventListResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	respondJSON(w, http.StatusOK, resp)
}
