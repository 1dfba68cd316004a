package serr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceError(t *testing.T) {
	cause := errors.New("boom")
	se := NewServiceError(cause, http.StatusNotFound, "image %d not found", 42).
		With("image_id", 42).
		With("owner", "alice")

	assert.Equal(t, "image 42 not found", se.Msg)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "42", se.Env["image_id"])
	assert.Equal(t, "alice", se.Env["owner"])
	assert.NotEmpty(t, se.StackTrace)
	assert.Equal(t, "image 42 not found: boom", se.Error())
	require.ErrorIs(t, se, cause)
}

func TestServiceError_NoCause(t *testing.T) {
	se := NewServiceError(nil, http.StatusBadRequest, "invalid request")
	assert.Equal(t, "invalid request", se.Error())
	assert.Nil(t, errors.Unwrap(se))
}

func TestServiceError_As(t *testing.T) {
	var err error = NewServiceError(nil, http.StatusConflict, "conflict")
	wrapped := errors.Join(errors.New("outer"), err)

	var se *ServiceError
	require.ErrorAs(t, wrapped, &se)
	assert.Equal(t, http.StatusConflict, se.StatusCode)
}
