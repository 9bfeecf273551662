package worker

import (
	"context"
	"time"
)

// Task is one unit of background work. Kind selects the handler; Key
// identifies the subject (for payouts, the payout id). Tasks are
// at-least-once: handlers must be idempotent.
type Task struct {
	Kind       string
	Key        string
	Attempt    int
	EnqueuedAt time.Time
}

// Handler processes tasks of one kind.
//
// A nil return acknowledges the task. Returning an error wrapped in
// Retryable schedules a retry with backoff; any other error drops the task
// after logging. Handlers own their idempotency: the dispatcher may deliver
// the same task more than once.
type Handler interface {
	Handle(ctx context.Context, task Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task Task) error

// Handle calls f(ctx, task).
func (f HandlerFunc) Handle(ctx context.Context, task Task) error {
	return f(ctx, task)
}
