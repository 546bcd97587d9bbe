package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	sentinel := Conflict("subaccount name already exists")
	wrapped := fmt.Errorf("rename Kraken/Sub1: %w", sentinel)

	assert.Equal(t, ErrCodeConflict, CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, sentinel))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ErrCodePersistence, "failed to save api_keys.json")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to save api_keys.json: disk full", err.Error())
	assert.True(t, IsAppError(err))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeValidation))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrCodeNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeConflict))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrCodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodePersistence))
}
