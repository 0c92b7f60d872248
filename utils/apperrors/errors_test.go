package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsAndStatus(t *testing.T) {
	tests := []struct {
		err    *Error
		kind   Kind
		status int
	}{
		{Validation("bad cell %d", 30), KindValidation, http.StatusBadRequest},
		{Conflict("already finalized"), KindConflict, http.StatusConflict},
		{NotFound("session"), KindNotFound, http.StatusNotFound},
		{Store("save game", errors.New("boom")), KindStore, http.StatusInternalServerError},
		{Generation(errors.New("timeout")), KindGeneration, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, Is(wrapped, tt.kind))
			e, ok := As(wrapped)
			assert.True(t, ok)
			assert.Equal(t, tt.status, e.StatusCode())
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Store("save game", cause)
	assert.Equal(t, "save game failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad cell 30", Validation("bad cell %d", 30).Error())
	assert.False(t, Is(cause, KindStore))
}
