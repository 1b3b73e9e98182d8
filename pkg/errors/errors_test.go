package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("booking: %w", SlotUnavailable("slot-2030-01-02-0900"))

	assert.True(t, stderrors.Is(err, ErrSlotUnavailable))
	assert.False(t, stderrors.Is(err, ErrSlotConflict))
	assert.Equal(t, CodeSlotUnavailable, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("plain")))
}

func TestAppError_StatusCode(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized(nil), http.StatusUnauthorized},
		{PaymentRequired("apt-1"), http.StatusPaymentRequired},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("appointment", "apt-1"), http.StatusNotFound},
		{SlotConflict("slot-1"), http.StatusConflict},
		{InvalidTransition("pending", "complete"), http.StatusConflict},
		{ConcurrentUpdate("appointment", "apt-1"), http.StatusConflict},
		{Internal(stderrors.New("db down")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.StatusCode(), tc.err.Error())
	}
}

func TestAppError_UnwrapAndMessage(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Internal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error: connection refused", err.Error())

	appErr, ok := As(fmt.Errorf("wrap: %w", err))
	assert.True(t, ok)
	assert.Same(t, err, appErr)
}
