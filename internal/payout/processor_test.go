package payout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/payrail/internal/worker"
	"github.com/payrail/payrail/pkg/logger"
)

// scriptedProvider returns the queued outcomes in order and records calls.
type scriptedProvider struct {
	outcomes []func() (*ProviderResult, error)
	requests []ProviderRequest
}

func (p *scriptedProvider) CreatePayout(_ context.Context, req ProviderRequest) (*ProviderResult, error) {
	p.requests = append(p.requests, req)
	if len(p.outcomes) == 0 {
		return &ProviderResult{ExternalID: "ext_default"}, nil
	}
	next := p.outcomes[0]
	p.outcomes = p.outcomes[1:]
	return next()
}

func succeed(externalID, reference string) func() (*ProviderResult, error) {
	return func() (*ProviderResult, error) {
		return &ProviderResult{ExternalID: externalID, Reference: reference}, nil
	}
}

func failTransient(msg string) func() (*ProviderResult, error) {
	return func() (*ProviderResult, error) {
		return nil, &TransientError{Err: errors.New(msg)}
	}
}

func failPermanent(msg string) func() (*ProviderResult, error) {
	return func() (*ProviderResult, error) {
		return nil, &PermanentError{Err: errors.New(msg)}
	}
}

func newProcessorFixture(t *testing.T, cfg Config, provider Provider) (*fixture, *Processor) {
	t.Helper()
	f := newFixture(t, cfg)
	proc := NewProcessor(f.svc, provider, time.Second, logger.New("test", io.Discard))
	return f, proc
}

func TestProcessorCompletesPayout(t *testing.T) {
	provider := &scriptedProvider{outcomes: []func() (*ProviderResult, error){succeed("ext_1", "ref_1")}}
	f, proc := newProcessorFixture(t, Config{}, provider)
	ctx := context.Background()

	p, _, err := f.svc.Intake(ctx, validRequest())
	require.NoError(t, err)

	err = proc.Handle(ctx, worker.Task{Kind: TaskKindProcess, Key: p.ID.String(), Attempt: 1})
	require.NoError(t, err)

	done, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "ext_1", done.ExternalPayoutID)
	assert.Equal(t, "ref_1", done.ExternalReference)
	assert.Equal(t, "payout_k1", done.LinkedTransactionID)

	require.Len(t, provider.requests, 1)
	assert.Equal(t, "k1", provider.requests[0].IdempotencyKey)
}

func TestProcessorTransientFailureAsksForRetry(t *testing.T) {
	provider := &scriptedProvider{outcomes: []func() (*ProviderResult, error){
		failTransient("gateway timeout"),
		succeed("ext_1", ""),
	}}
	f, proc := newProcessorFixture(t, Config{MaxRetries: 3}, provider)
	ctx := context.Background()

	p, _, err := f.svc.Intake(ctx, validRequest())
	require.NoError(t, err)

	task := worker.Task{Kind: TaskKindProcess, Key: p.ID.String(), Attempt: 1}
	err = proc.Handle(ctx, task)
	require.Error(t, err)
	assert.True(t, worker.IsRetryable(err))

	mid, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, mid.Status)
	assert.Equal(t, 1, mid.RetryCount)

	// Redelivery succeeds: the claim is a no-op on Processing.
	task.Attempt = 2
	require.NoError(t, proc.Handle(ctx, task))

	done, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
}

func TestProcessorPermanentFailureDropsTask(t *testing.T) {
	provider := &scriptedProvider{outcomes: []func() (*ProviderResult, error){
		failPermanent("recipient account closed"),
	}}
	f, proc := newProcessorFixture(t, Config{MaxRetries: 3}, provider)
	ctx := context.Background()

	p, _, err := f.svc.Intake(ctx, validRequest())
	require.NoError(t, err)

	err = proc.Handle(ctx, worker.Task{Kind: TaskKindProcess, Key: p.ID.String(), Attempt: 1})
	require.NoError(t, err, "a permanent failure is handled, not retried")

	failed, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "recipient account closed")
}

func TestProcessorSkipsTerminalPayout(t *testing.T) {
	provider := &scriptedProvider{}
	f, proc := newProcessorFixture(t, Config{}, provider)
	ctx := context.Background()

	p, _, err := f.svc.Intake(ctx, validRequest())
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, p.ID)
	require.NoError(t, err)

	err = proc.Handle(ctx, worker.Task{Kind: TaskKindProcess, Key: p.ID.String(), Attempt: 1})
	require.NoError(t, err)
	assert.Empty(t, provider.requests, "cancelled payouts never reach the provider")
}

func TestProcessorRejectsMalformedKey(t *testing.T) {
	_, proc := newProcessorFixture(t, Config{}, &scriptedProvider{})

	err := proc.Handle(context.Background(), worker.Task{Kind: TaskKindProcess, Key: "not-a-uuid"})
	require.Error(t, err)
	assert.False(t, worker.IsRetryable(err), "a malformed key never becomes valid")
}

func TestProcessEnqueuerSubmitsPayoutID(t *testing.T) {
	d := worker.NewDispatcher(worker.Config{Concurrency: 1, QueueSize: 4}, logger.New("test", io.Discard))
	defer d.Stop()

	got := make(chan worker.Task, 1)
	d.Register(TaskKindProcess, worker.HandlerFunc(func(_ context.Context, task worker.Task) error {
		got <- task
		return nil
	}))
	d.Start(context.Background())

	payoutID := uuid.New()
	enq := &ProcessEnqueuer{Dispatcher: d}
	require.NoError(t, enq.EnqueueProcess(payoutID))

	select {
	case task := <-got:
		assert.Equal(t, TaskKindProcess, task.Kind)
		assert.Equal(t, payoutID.String(), task.Key, "the task key is the payout id, not the idempotency key")
	case <-time.After(time.Second):
		t.Fatal("task was not delivered")
	}
}

func TestSweeperRequeuesStalledPayouts(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	pending, _, err := f.svc.Intake(ctx, validRequest())
	require.NoError(t, err)

	staleReq := validRequest()
	staleReq.IdempotencyKey = "k2"
	stale, _, err := f.svc.Intake(ctx, staleReq)
	require.NoError(t, err)
	_, err = f.svc.ClaimForProcessing(ctx, stale.ID)
	require.NoError(t, err)

	doneReq := validRequest()
	doneReq.IdempotencyKey = "k3"
	done, _, err := f.svc.Intake(ctx, doneReq)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, done.ID)
	require.NoError(t, err)

	// Age the Processing row past the stale cutoff.
	staleRow := f.repo.byID[stale.ID]
	staleRow.UpdatedAt = time.Now().UTC().Add(-10 * time.Minute)

	enq := &memEnqueuer{}
	sweeper := NewSweeper(f.repo, enq, time.Second, 5*time.Minute, logger.New("test", io.Discard))
	sweeper.sweep(ctx)

	assert.ElementsMatch(t, []uuid.UUID{pending.ID, stale.ID}, enq.enqueued)
}
