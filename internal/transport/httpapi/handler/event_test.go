package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/payrail/internal/eventlog"
)

type stubEventService struct {
	events []*eventlog.Event
	err    error

	lastSince int64
	lastLimit int
	lastType  string
	lastID    string
}

func (s *stubEventService) ReadSince(_ context.Context, since int64, limit int) ([]*eventlog.Event, error) {
	s.lastSince = since
	s.lastLimit = limit
	return s.events, s.err
}

func (s *stubEventService) ReadAggregateHistory(_ context.Context, aggregateType, aggregateID string) ([]*eventlog.Event, error) {
	s.lastType = aggregateType
	s.lastID = aggregateID
	return s.events, s.err
}

func sampleEvent(seq int64) *eventlog.Event {
	return &eventlog.Event{
		ID:             uuid.New(),
		EventID:        "payout.created:k1",
		SequenceNumber: seq,
		AggregateType:  eventlog.AggregatePayout,
		AggregateID:    uuid.NewString(),
		EventType:      "PayoutCreated",
		Payload:        map[string]interface{}{"amount": "100.00"},
		CreatedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestListEvents(t *testing.T) {
	svc := &stubEventService{events: []*eventlog.Event{sampleEvent(1), sampleEvent(2)}}
	h := NewEventHandler(svc)

	rec := httptest.NewRecorder()
	h.ListEvents(rec, httptest.NewRequest(http.MethodGet, "/api/events?since=5&limit=20", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), svc.lastSince)
	assert.Equal(t, 20, svc.lastLimit)

	var resp EventListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, int64(1), resp.Events[0].SequenceNumber)
}

func TestListEventsDefaults(t *testing.T) {
	svc := &stubEventService{}
	h := NewEventHandler(svc)

	rec := httptest.NewRecorder()
	h.ListEvents(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), svc.lastSince)
	assert.Equal(t, 100, svc.lastLimit)
}

func TestListEventsRejectsBadParams(t *testing.T) {
	h := NewEventHandler(&stubEventService{})

	for _, target := range []string{
		"/api/events?since=-1",
		"/api/events?since=abc",
		"/api/events?limit=0",
		"/api/events?limit=1001",
	} {
		rec := httptest.NewRecorder()
		h.ListEvents(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListAggregateEvents(t *testing.T) {
	svc := &stubEventService{events: []*eventlog.Event{sampleEvent(1)}}
	h := NewEventHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/events/payout/abc", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("aggregate_type", "payout")
	rctx.URLParams.Add("aggregate_id", "abc")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.ListAggregateEvents(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payout", svc.lastType)
	assert.Equal(t, "abc", svc.lastID)
}
