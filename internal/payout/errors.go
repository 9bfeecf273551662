package payout

import "errors"

var (
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
	ErrIdempotencyKeyTooLong = errors.New("idempotency key exceeds 128 characters")
	ErrNonPositiveAmount     = errors.New("payout amount must be positive")
	ErrMissingRecipient      = errors.New("recipient account is required")
	ErrMissingRecipientName  = errors.New("recipient name is required")

	ErrPayoutNotFound      = errors.New("payout not found")
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different payload")
	ErrIllegalTransition   = errors.New("payout state machine forbids this transition")
	ErrExternalIDMismatch  = errors.New("payout already completed with a different external id")
)
