package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   int
		status int
	}{
		{ErrBadRequest, http.StatusBadRequest},
		{ErrInvalidSnapshotName, http.StatusBadRequest},
		{ErrAuctionNotFound, http.StatusNotFound},
		{ErrSnapshotNotFound, http.StatusNotFound},
		{ErrUnknownJob, http.StatusNotFound},
		{ErrRateLimited, http.StatusTooManyRequests},
		{http.StatusConflict, http.StatusConflict},
		{ErrInternalServer, http.StatusInternalServerError},
		{42, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, New(tt.code, "x").HTTPStatus(), "code %d", tt.code)
	}
}

func TestWrapKeepsCode(t *testing.T) {
	base := New(ErrSnapshotNotFound, "backup file not found")
	wrapped := fmt.Errorf("reading: %w", Wrap(base, "failed to read backup"))

	assert.Equal(t, ErrSnapshotNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrSnapshotNotFound))
	assert.False(t, Is(wrapped, ErrAuctionNotFound))

	var appErr *AppError
	require.True(t, As(wrapped, &appErr))
	assert.Equal(t, "failed to read backup", appErr.Message)
	assert.ErrorIs(t, wrapped, base)
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrInternalServer, CodeOf(io.EOF))
	assert.Equal(t, ErrInternalServer, CodeOf(Wrap(io.EOF, "query failed")))
	assert.False(t, Is(nil, ErrInternalServer))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "auction not found", New(ErrAuctionNotFound, "auction not found").Error())
	assert.Equal(t, "query failed: EOF", Wrap(io.EOF, "query failed").Error())
}

func TestToJSON(t *testing.T) {
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(New(ErrRateLimited, "Rate limit exceeded").ToJSON()), &payload))
	assert.Equal(t, "error", payload["type"])
	assert.Equal(t, float64(ErrRateLimited), payload["code"])
	assert.Equal(t, "Rate limit exceeded", payload["message"])
}
