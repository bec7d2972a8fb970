package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorCarriesCode(t *testing.T) {
	err := NewValidationError("PROMO_EXPIRED", "Promo code has expired")

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "PROMO_EXPIRED", err.Code)
	assert.Equal(t, "Promo code has expired", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, IsRetryable(err))
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create order: %w", NewConflictError("order changed").WithContext("orderID", "o-1"))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeConflict, appErr.Code)
	assert.Equal(t, "o-1", appErr.Context["orderID"])
	assert.True(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
}

func TestIsRetryableSentinels(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("publish: %w", ErrTimeout)))
	assert.True(t, IsRetryable(NewTemporaryError("broker down")))
	assert.False(t, IsRetryable(ErrNotFound))
}
