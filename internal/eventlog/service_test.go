package eventlog

import (
	"context"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/payrail/pkg/logger"
)

// fakeRepo keeps events in memory, keyed by producer event id.
type fakeRepo struct {
	events  map[string]*Event
	inserts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: make(map[string]*Event)}
}

func (r *fakeRepo) Insert(_ context.Context, event *Event) error {
	if _, ok := r.events[event.EventID]; ok {
		return ErrDuplicateEventID
	}
	copied := *event
	r.events[event.EventID] = &copied
	r.inserts++
	return nil
}

func (r *fakeRepo) GetByEventID(_ context.Context, eventID string) (*Event, error) {
	event, ok := r.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	return event, nil
}

func (r *fakeRepo) ListSince(_ context.Context, since int64, limit int) ([]*Event, error) {
	var out []*Event
	for _, e := range r.events {
		if e.SequenceNumber > since {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) ListAggregate(_ context.Context, aggregateType, aggregateID string) ([]*Event, error) {
	var out []*Event
	for _, e := range r.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

// fakeAllocator hands out consecutive numbers and counts allocations.
type fakeAllocator struct {
	next  int64
	calls int
}

func (a *fakeAllocator) Next(context.Context) (int64, error) {
	a.calls++
	a.next++
	return a.next, nil
}

func newTestService() (*Service, *fakeRepo, *fakeAllocator) {
	repo := newFakeRepo()
	alloc := &fakeAllocator{}
	return NewService(repo, alloc, logger.New("test", io.Discard)), repo, alloc
}

func TestAppendAssignsSequenceNumbers(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Append(ctx, "payout.created:k1", AggregatePayout, "k1", "PayoutCreated", map[string]interface{}{"amount": "100.00"})
	require.NoError(t, err)
	second, err := svc.Append(ctx, "payout.processing:k1", AggregatePayout, "k1", "PayoutProcessingStarted", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.SequenceNumber)
	assert.Equal(t, int64(2), second.SequenceNumber)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAppendDeduplicatesOnEventID(t *testing.T) {
	svc, repo, alloc := newTestService()
	ctx := context.Background()

	first, err := svc.Append(ctx, "payout.created:k1", AggregatePayout, "k1", "PayoutCreated", nil)
	require.NoError(t, err)

	replay, err := svc.Append(ctx, "payout.created:k1", AggregatePayout, "k1", "PayoutCreated", nil)
	require.NoError(t, err)

	assert.Equal(t, first.SequenceNumber, replay.SequenceNumber)
	assert.Equal(t, first.ID, replay.ID)
	assert.Equal(t, 1, repo.inserts, "replay must not write a second row")
	assert.Equal(t, 1, alloc.calls, "replay must not consume a sequence number")
}

func TestAppendRejectsInvalidEvent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Append(ctx, "", AggregatePayout, "k1", "PayoutCreated", nil)
	assert.ErrorIs(t, err, ErrEmptyEventID)

	_, err = svc.Append(ctx, "payout.created:k1", "", "k1", "PayoutCreated", nil)
	assert.ErrorIs(t, err, ErrMissingAggregate)

	_, err = svc.Append(ctx, "payout.created:k1", AggregatePayout, "k1", "", nil)
	assert.ErrorIs(t, err, ErrEmptyEventType)
}

func TestGet(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	appended, err := svc.Append(ctx, "payout.created:k1", AggregatePayout, "k1", "PayoutCreated", nil)
	require.NoError(t, err)

	got, err := svc.Get(ctx, "payout.created:k1")
	require.NoError(t, err)
	assert.Equal(t, appended.SequenceNumber, got.SequenceNumber)

	_, err = svc.Get(ctx, "payout.created:unknown")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestReadSince(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3", "e4"} {
		_, err := svc.Append(ctx, id, AggregatePayout, "k1", "PayoutCreated", nil)
		require.NoError(t, err)
	}

	events, err := svc.ReadSince(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[0].SequenceNumber)
	assert.Equal(t, int64(4), events[1].SequenceNumber)

	limited, err := svc.ReadSince(ctx, 0, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func TestReadAggregateHistory(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Append(ctx, "payout.created:k1", AggregatePayout, "k1", "PayoutCreated", nil)
	require.NoError(t, err)
	_, err = svc.Append(ctx, "payout.created:k2", AggregatePayout, "k2", "PayoutCreated", nil)
	require.NoError(t, err)
	_, err = svc.Append(ctx, "payout.processing:k1", AggregatePayout, "k1", "PayoutProcessingStarted", nil)
	require.NoError(t, err)

	history, err := svc.ReadAggregateHistory(ctx, AggregatePayout, "k1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "PayoutCreated", history[0].EventType)
	assert.Equal(t, "PayoutProcessingStarted", history[1].EventType)
}
