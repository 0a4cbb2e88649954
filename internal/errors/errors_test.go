package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClipError_Error(t *testing.T) {
	err := NewInvalidRequest("capture_mode must be one of: text_only, image_only, both, both_as_one")
	require.Equal(t, "INVALID_REQUEST: capture_mode must be one of: text_only, image_only, both, both_as_one", err.Error())
	require.Equal(t, 400, err.Status)
}

func TestNewNotFound_CarriesID(t *testing.T) {
	err := NewNotFound("01ABC")
	require.Equal(t, ErrNotFound, err.Code)
	require.Equal(t, "01ABC", err.Details["id"])
}

func TestNewStoreFailed_CarriesOpAndID(t *testing.T) {
	err := NewStoreFailed("delete", "01ABC", stderrors.New("disk I/O error"))
	require.Equal(t, ErrStoreFailed, err.Code)
	require.Equal(t, "delete", err.Details["op"])
	require.Equal(t, "01ABC", err.Details["id"])
	require.Contains(t, err.Message, "disk I/O error")
}

func TestNewFileTooLarge(t *testing.T) {
	err := NewFileTooLarge("movie.mov", 100, 250)
	require.Equal(t, ErrFileTooLarge, err.Code)
	require.Equal(t, int64(100), err.Details["max_bytes"])
	require.Equal(t, int64(250), err.Details["actual_bytes"])
}

func TestIs(t *testing.T) {
	require.True(t, Is(NewNotFound("x"), ErrNotFound))
	require.False(t, Is(NewNotFound("x"), ErrInternal))
	require.False(t, Is(stderrors.New("plain"), ErrNotFound))
	require.False(t, Is(nil, ErrNotFound))
}
