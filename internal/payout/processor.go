package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/internal/worker"
	"github.com/payrail/payrail/pkg/logger"
)

// TaskKindProcess is the work unit kind for processing one payout.
const TaskKindProcess = "payout.process"

// Processor executes ProcessPayout work units: claim the row, call the
// provider under a deadline, finalize. Idempotent on the payout id: the
// claim is a no-op on anything but Pending, and the provider dedups on the
// payout's idempotency key, so at-least-once delivery is safe.
type Processor struct {
	service  *Service
	provider Provider
	timeout  time.Duration
	logger   *logger.Logger
}

// NewProcessor creates a new payout processor
func NewProcessor(service *Service, provider Provider, providerTimeout time.Duration, log *logger.Logger) *Processor {
	if providerTimeout <= 0 {
		providerTimeout = 30 * time.Second
	}
	return &Processor{
		service:  service,
		provider: provider,
		timeout:  providerTimeout,
		logger:   log.WithField("component", "processor"),
	}
}

// Handle implements worker.Handler.
func (p *Processor) Handle(ctx context.Context, task worker.Task) error {
	payoutID, err := uuid.Parse(task.Key)
	if err != nil {
		return fmt.Errorf("malformed payout task key %q: %w", task.Key, err)
	}

	claimed, err := p.service.ClaimForProcessing(ctx, payoutID)
	if err != nil {
		return worker.Retryable(fmt.Errorf("failed to claim payout: %w", err))
	}
	if claimed.Status != StatusProcessing {
		// Terminal or cancelled before we got here; nothing to do.
		p.logger.Debug("skipping payout", "payout_id", payoutID, "status", claimed.Status)
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, callErr := p.provider.CreatePayout(callCtx, ProviderRequest{
		IdempotencyKey:   claimed.IdempotencyKey,
		Amount:           claimed.Amount,
		RecipientAccount: claimed.RecipientAccount,
		RecipientName:    claimed.RecipientName,
		Description:      claimed.Description,
	})
	if callErr != nil {
		retryable := IsTransient(callErr)
		if _, err := p.service.FinalizeFailure(ctx, payoutID, callErr.Error(), retryable); err != nil {
			return worker.Retryable(fmt.Errorf("failed to record provider failure: %w", err))
		}
		if retryable {
			return worker.Retryable(callErr)
		}
		return nil
	}

	finalized, err := p.service.FinalizeSuccess(ctx, payoutID, result.ExternalID)
	if err != nil {
		// The provider call succeeded and is deduplicated on our key; the
		// retry re-calls it, gets the same external id, and finalizes.
		return worker.Retryable(fmt.Errorf("failed to finalize payout: %w", err))
	}
	if result.Reference != "" && finalized.ExternalReference == "" {
		if err := p.service.RecordExternalReference(ctx, payoutID, result.Reference); err != nil {
			p.logger.Warn("failed to record external reference", "payout_id", payoutID, "error", err)
		}
	}
	return nil
}

// ProcessEnqueuer adapts the worker dispatcher to the Enqueuer port.
type ProcessEnqueuer struct {
	Dispatcher *worker.Dispatcher
}

// EnqueueProcess submits a ProcessPayout work unit for the given payout.
func (e *ProcessEnqueuer) EnqueueProcess(payoutID uuid.UUID) error {
	return e.Dispatcher.Enqueue(worker.Task{
		Kind: TaskKindProcess,
		Key:  payoutID.String(),
	})
}
