package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/payrail/payrail/internal/eventlog"
	"github.com/payrail/payrail/internal/ledger"
	"github.com/payrail/payrail/internal/readmodel"
	apperrors "github.com/payrail/payrail/internal/shared/errors"
	"github.com/payrail/payrail/pkg/logger"
)

// Config holds the payout policy knobs.
type Config struct {
	// MaxRetries bounds transient provider failures before a payout is
	// marked Failed.
	MaxRetries int
}

// Service drives the payout state machine. Every transition runs in one
// atomic unit under the payout row lock: the row update, its event append
// and its read-model projection commit together or not at all.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	events    *eventlog.Service
	projector *readmodel.Projector
	tx        ledger.Transactor
	publisher Publisher
	enqueuer  Enqueuer
	cfg       Config
	logger    *logger.Logger
}

// NewService creates a new payout service
func NewService(
	repo Repository,
	ledgerSvc *ledger.Service,
	events *eventlog.Service,
	projector *readmodel.Projector,
	tx ledger.Transactor,
	publisher Publisher,
	enqueuer Enqueuer,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		events:    events,
		projector: projector,
		tx:        tx,
		publisher: publisher,
		enqueuer:  enqueuer,
		cfg:       cfg,
		logger:    log.WithField("component", "payout"),
	}
}

// errIntakeRaced signals that a concurrent intake committed the same key
// between this transaction's lookup and insert. The atomic unit rolls back
// and the lookup path is retried against the now-visible row.
var errIntakeRaced = errors.New("concurrent intake committed the idempotency key first")

// Intake accepts a payout request, idempotent on the idempotency key.
//
// Returns the payout and whether it was created by this call. A repeat
// request with an identical payload replays the stored payout; the same key
// with any immutable field changed fails with ErrIdempotencyConflict and
// writes nothing. Concurrent submissions of a brand-new key can both miss
// the lookup and race to insert; the loser's unit is rolled back and rerun,
// where the lookup now finds the winner's row and replays it.
func (s *Service) Intake(ctx context.Context, req *Request) (*Payout, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	var (
		result  *Payout
		created bool
		event   *eventlog.Event
		raced   bool
	)
	intake := func(ctx context.Context) error {
		existing, err := s.repo.GetByIdempotencyKeyForUpdate(ctx, req.IdempotencyKey)
		if err == nil {
			if !existing.Matches(req) {
				return apperrors.Wrap(ErrIdempotencyConflict, apperrors.ErrCodeIdempotencyConflict,
					fmt.Sprintf("key %s reused with a different payload", req.IdempotencyKey))
			}
			result = existing
			return nil
		}
		if !errors.Is(err, ErrPayoutNotFound) {
			return fmt.Errorf("failed to check idempotency key: %w", err)
		}

		now := time.Now().UTC()
		p := &Payout{
			ID:               uuid.New(),
			IdempotencyKey:   req.IdempotencyKey,
			Amount:           req.Amount,
			RecipientAccount: req.RecipientAccount,
			RecipientName:    req.RecipientName,
			Description:      req.Description,
			Metadata:         req.Metadata,
			Status:           StatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Insert(ctx, p); err != nil {
			if errors.Is(err, ErrIdempotencyConflict) && !raced {
				raced = true
				return errIntakeRaced
			}
			return fmt.Errorf("failed to insert payout: %w", err)
		}

		event, err = s.appendEvent(ctx, p, CreatedEventID(p.IdempotencyKey), EventTypeCreated, nil)
		if err != nil {
			return err
		}
		if err := s.projectSummary(ctx, p); err != nil {
			return err
		}

		result = p
		created = true
		return nil
	}

	err := s.tx.WithinTx(ctx, intake)
	if errors.Is(err, errIntakeRaced) {
		// The winner's row is committed once our blocked insert fails, so
		// the rerun takes the lookup path and replays or genuinely conflicts.
		err = s.tx.WithinTx(ctx, intake)
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		s.publishPayout(ctx, event)
		if err := s.enqueuer.EnqueueProcess(result.ID); err != nil {
			// The row is committed as Pending; the sweeper re-enqueues it.
			s.logger.Warn("failed to enqueue payout", "payout_id", result.ID, "error", err)
		}
		s.logger.Info("payout accepted",
			"payout_id", result.ID,
			"idempotency_key", result.IdempotencyKey,
			"amount", result.Amount.String(),
		)
	} else {
		s.logger.Debug("payout intake replayed", "payout_id", result.ID, "idempotency_key", result.IdempotencyKey)
	}

	return result, created, nil
}

// ClaimForProcessing moves a Pending payout to Processing under the row
// lock. Any other state is returned unchanged; the caller decides whether
// the work unit still applies.
func (s *Service) ClaimForProcessing(ctx context.Context, id uuid.UUID) (*Payout, error) {
	var (
		result *Payout
		event  *eventlog.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			result = p
			return nil
		}

		p.Status = StatusProcessing
		p.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update payout: %w", err)
		}

		event, err = s.appendEvent(ctx, p, ProcessingEventID(p.IdempotencyKey), EventTypeProcessingStarted, nil)
		if err != nil {
			return err
		}
		if err := s.projectSummary(ctx, p); err != nil {
			return err
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		s.publishPayout(ctx, event)
	}
	return result, nil
}

// FinalizeSuccess completes a payout: the balanced ledger transaction
// (debit payout liability, credit cash) is created here and only here, in
// the same atomic unit as the Completed row and its event. A crashed worker
// therefore leaves no provisional ledger entries.
//
// Idempotent: replaying with the same external id is a no-op; a different
// external id on a Completed payout fails with ErrExternalIDMismatch.
func (s *Service) FinalizeSuccess(ctx context.Context, id uuid.UUID, externalID string) (*Payout, error) {
	var (
		result  *Payout
		event   *eventlog.Event
		txEvent *eventlog.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		switch p.Status {
		case StatusCompleted:
			if p.ExternalPayoutID != externalID {
				return apperrors.Wrap(ErrExternalIDMismatch, apperrors.ErrCodeConflict,
					fmt.Sprintf("payout %s already completed with external id %s", p.ID, p.ExternalPayoutID))
			}
			result = p
			return nil
		case StatusProcessing:
			// fall through to finalize
		default:
			return apperrors.Wrap(ErrIllegalTransition, apperrors.ErrCodeIllegalTransition,
				fmt.Sprintf("cannot complete payout in state %s", p.Status))
		}

		txID := LedgerTransactionID(p.IdempotencyKey)
		ledgerTx, err := s.ledger.CreateBalancedTransaction(ctx, ledger.CreateTransactionInput{
			ID:          txID,
			Description: fmt.Sprintf("Payout %s to %s", p.IdempotencyKey, p.RecipientName),
			Debit:       ledger.Leg{AccountCode: ledger.PayoutLiabilityAccountCode, Amount: p.Amount},
			Credit:      ledger.Leg{AccountCode: ledger.CashAccountCode, Amount: p.Amount},
		})
		if err != nil {
			return fmt.Errorf("failed to create ledger transaction: %w", err)
		}

		now := time.Now().UTC()
		p.Status = StatusCompleted
		p.ExternalPayoutID = externalID
		p.LinkedTransactionID = ledgerTx.ID
		p.ErrorMessage = ""
		p.ProcessedAt = &now
		p.UpdatedAt = now
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update payout: %w", err)
		}

		event, err = s.appendEvent(ctx, p, CompletedEventID(p.IdempotencyKey), EventTypeCompleted, map[string]interface{}{
			"external_payout_id":    externalID,
			"ledger_transaction_id": ledgerTx.ID,
		})
		if err != nil {
			return err
		}
		txEvent, err = s.events.Get(ctx, ledger.TransactionCreatedEventID(ledgerTx.ID))
		if err != nil {
			return fmt.Errorf("failed to load transaction event: %w", err)
		}
		if err := s.projectSummary(ctx, p); err != nil {
			return err
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		s.publishPayout(ctx, event)
	}
	if txEvent != nil {
		s.publisher.PublishTransactionEvent(ctx, txEvent)
	}
	if result.ProcessedAt != nil {
		s.logger.Info("payout completed",
			"payout_id", result.ID,
			"external_payout_id", result.ExternalPayoutID,
			"ledger_transaction_id", result.LinkedTransactionID,
		)
	}
	return result, nil
}

// FinalizeFailure records a failed provider attempt. A retryable failure
// below the retry budget leaves the payout Processing for the dispatcher to
// reschedule; otherwise the payout moves to the terminal Failed state.
func (s *Service) FinalizeFailure(ctx context.Context, id uuid.UUID, errMsg string, retryable bool) (*Payout, error) {
	var (
		result *Payout
		event  *eventlog.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status.IsTerminal() {
			result = p
			return nil
		}
		if p.Status != StatusProcessing {
			return apperrors.Wrap(ErrIllegalTransition, apperrors.ErrCodeIllegalTransition,
				fmt.Sprintf("cannot fail payout in state %s", p.Status))
		}

		now := time.Now().UTC()
		p.RetryCount++
		p.ErrorMessage = errMsg
		p.UpdatedAt = now

		eventType := EventTypeRetryScheduled
		if !retryable || p.RetryCount >= s.cfg.MaxRetries {
			p.Status = StatusFailed
			p.ProcessedAt = &now
			eventType = EventTypeFailed
		}

		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update payout: %w", err)
		}

		event, err = s.appendEvent(ctx, p, FailureEventID(p.IdempotencyKey, p.RetryCount), eventType, map[string]interface{}{
			"error":       errMsg,
			"retry_count": p.RetryCount,
			"retryable":   retryable,
		})
		if err != nil {
			return err
		}
		if err := s.projectSummary(ctx, p); err != nil {
			return err
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		s.publishPayout(ctx, event)
	}
	if result.Status == StatusFailed {
		s.logger.Error("payout failed", "payout_id", result.ID, "retry_count", result.RetryCount, "error", errMsg)
	} else {
		s.logger.Warn("payout attempt failed, retry scheduled", "payout_id", result.ID, "retry_count", result.RetryCount, "error", errMsg)
	}
	return result, nil
}

// Cancel moves a Pending payout to Cancelled. Any other state fails with
// ErrIllegalTransition.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Payout, error) {
	var (
		result *Payout
		event  *eventlog.Event
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == StatusCancelled {
			result = p
			return nil
		}
		if !p.Status.CanTransitionTo(StatusCancelled) {
			return apperrors.Wrap(ErrIllegalTransition, apperrors.ErrCodeIllegalTransition,
				fmt.Sprintf("cannot cancel payout in state %s", p.Status))
		}

		now := time.Now().UTC()
		p.Status = StatusCancelled
		p.ProcessedAt = &now
		p.UpdatedAt = now
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update payout: %w", err)
		}

		event, err = s.appendEvent(ctx, p, CancelledEventID(p.IdempotencyKey), EventTypeCancelled, nil)
		if err != nil {
			return err
		}
		if err := s.projectSummary(ctx, p); err != nil {
			return err
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		s.publishPayout(ctx, event)
	}
	s.logger.Info("payout cancelled", "payout_id", result.ID)
	return result, nil
}

// RecordExternalReference stores the provider's secondary reference on a
// completed payout. Informational only: no event, no state change.
func (s *Service) RecordExternalReference(ctx context.Context, id uuid.UUID, reference string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusCompleted || p.ExternalReference == reference {
			return nil
		}
		p.ExternalReference = reference
		p.UpdatedAt = time.Now().UTC()
		return s.repo.Update(ctx, p)
	})
}

// Get retrieves a payout by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payout, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIdempotencyKey retrieves a payout by its idempotency key
func (s *Service) GetByIdempotencyKey(ctx context.Context, key string) (*Payout, error) {
	return s.repo.GetByIdempotencyKey(ctx, key)
}

// List pages payouts newest first.
func (s *Service) List(ctx context.Context, cursor *Cursor, limit int) (*Page, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, cursor, limit)
}

func (s *Service) appendEvent(ctx context.Context, p *Payout, eventID, eventType string, extra map[string]interface{}) (*eventlog.Event, error) {
	payload := map[string]interface{}{
		"payout_id":         p.ID.String(),
		"idempotency_key":   p.IdempotencyKey,
		"amount":            p.Amount.String(),
		"currency":          p.Amount.Currency(),
		"recipient_account": p.RecipientAccount,
		"status":            string(p.Status),
	}
	for k, v := range extra {
		payload[k] = v
	}

	event, err := s.events.Append(ctx, eventID, eventlog.AggregatePayout, p.ID.String(), eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to append payout event: %w", err)
	}
	return event, nil
}

func (s *Service) projectSummary(ctx context.Context, p *Payout) error {
	return s.projector.ApplyPayoutChange(ctx, &readmodel.PayoutSummary{
		PayoutID:         p.ID,
		IdempotencyKey:   p.IdempotencyKey,
		Amount:           p.Amount,
		RecipientAccount: p.RecipientAccount,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt,
		ProcessedAt:      p.ProcessedAt,
		UpdatedAt:        p.UpdatedAt,
	})
}

func (s *Service) publishPayout(ctx context.Context, event *eventlog.Event) {
	if event == nil {
		return
	}
	s.publisher.PublishPayoutEvent(ctx, event)
}
