package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesSentinel(t *testing.T) {
	sentinel := errors.New("payout not found")
	wrapped := Wrap(sentinel, ErrCodeNotFound, "payout abc not found")

	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, ErrCodeNotFound, wrapped.Code)
	assert.Contains(t, wrapped.Error(), "NOT_FOUND")
	assert.Contains(t, wrapped.Error(), "payout not found")
}

func TestGetAppErrorThroughWrapping(t *testing.T) {
	appErr := IdempotencyConflict("key reused")
	chained := fmt.Errorf("intake failed: %w", appErr)

	got := GetAppError(chained)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeIdempotencyConflict, got.Code)

	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.True(t, IsAppError(chained))
	assert.False(t, IsAppError(errors.New("plain")))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeValidation, Validation("bad input").Code)
	assert.Equal(t, ErrCodeConflict, Conflict("taken").Code)
	assert.Equal(t, ErrCodeIllegalTransition, IllegalTransition("no").Code)
	assert.Equal(t, "widget not found", NotFound("widget").Message)

	cause := errors.New("pg down")
	internal := Internal("query failed", cause)
	assert.Equal(t, ErrCodeInternal, internal.Code)
	assert.ErrorIs(t, internal, cause)
}
