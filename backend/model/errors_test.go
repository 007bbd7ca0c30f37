package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchByKind(t *testing.T) {
	err := fmt.Errorf("evaluate: %w", GeoMismatch(1012.4, 500))

	assert.True(t, errors.Is(err, ErrGeoMismatch))
	assert.False(t, errors.Is(err, ErrTimeWindowExceeded))
	assert.Equal(t, KindGeoMismatch, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestErrorDetails(t *testing.T) {
	var e *Error
	assert.True(t, errors.As(TimeWindowExceeded(130, 0, 120), &e))
	assert.Equal(t, 130.0, e.Details["elapsed_min"])
	assert.Equal(t, "130.0 minutes elapsed, allowed window is 0-120 minutes", e.Error())
	assert.False(t, e.Retryable())
}

func TestCollaboratorUnavailableWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := CollaboratorUnavailable("similarity service", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrCollaboratorUnavailable))
	assert.Equal(t, "similarity service unavailable: connection refused", err.Error())

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.True(t, e.Retryable())
}
