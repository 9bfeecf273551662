package payout

import (
	"context"
	"errors"

	"github.com/payrail/payrail/pkg/money"
)

// ProviderRequest is the outbound payment instruction. IdempotencyKey is the
// payout's own key: the provider deduplicates on it, which makes re-calling
// after a crash safe.
type ProviderRequest struct {
	IdempotencyKey   string
	Amount           money.Amount
	RecipientAccount string
	RecipientName    string
	Description      string
}

// ProviderResult is a successful provider response.
type ProviderResult struct {
	ExternalID string
	Reference  string
}

// Provider is the external payment rail. Implementations classify failures
// as transient (worth retrying) or permanent via the error types below.
type Provider interface {
	CreatePayout(ctx context.Context, req ProviderRequest) (*ProviderResult, error)
}

// TransientError marks a provider failure that should be retried with
// backoff: timeouts, 5xx responses, connection resets.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "provider transient error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a provider failure that no retry will fix: rejected
// recipient, invalid amount, 4xx responses.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "provider permanent error: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
// Unclassified errors count as transient: retrying an already-performed call
// is safe (the provider dedups), while wrongly marking Failed is not.
func IsTransient(err error) bool {
	var pe *PermanentError
	return !errors.As(err, &pe)
}
