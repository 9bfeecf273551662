package worker

import "errors"

var (
	ErrUnknownTaskKind  = errors.New("no handler registered for task kind")
	ErrQueueFull        = errors.New("task queue is full")
	ErrDispatcherClosed = errors.New("dispatcher is shut down")
)

// retryableError marks an error whose task should be re-enqueued with
// backoff instead of dropped.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so the dispatcher retries the task.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err asks for a retry.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
