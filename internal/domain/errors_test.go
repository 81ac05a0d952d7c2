package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "error without wrapped error",
			appErr:   ErrNoFaceDetected,
			expected: "No face detected in the image",
		},
		{
			name: "error with wrapped error",
			appErr: &AppError{
				Code:    "TEST_ERROR",
				Message: "Test message",
				Err:     errors.New("underlying error"),
			},
			expected: "Test message: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	appErr := &AppError{Code: "TEST", Message: "test", Err: underlying}

	assert.Equal(t, underlying, appErr.Unwrap())
	assert.Nil(t, ErrNoFaceDetected.Unwrap())
}

func TestAppError_WithError(t *testing.T) {
	underlying := errors.New("model crashed")
	newErr := ErrDetectionFailure.WithError(underlying)

	assert.Equal(t, ErrDetectionFailure.Code, newErr.Code)
	assert.Equal(t, underlying, newErr.Err)
	assert.ErrorIs(t, newErr, underlying)
	assert.ErrorIs(t, newErr, ErrDetectionFailure)
	assert.NotErrorIs(t, newErr, ErrEncodingFailure)
}

func TestAppError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("frame 12: %w", ErrEncodingFailure.WithError(errors.New("dlib")))

	assert.ErrorIs(t, err, ErrEncodingFailure)

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ENCODING_FAILURE", appErr.Code)
}

func TestIsUserCorrectable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNoFaceDetected, true},
		{ErrEncodingFailure.WithError(errors.New("x")), true},
		{ErrUnknownIdentity, true},
		{ErrInvalidIdentity, true},
		{ErrCaptureUnavailable, false},
		{ErrDetectionFailure, false},
		{fmt.Errorf("wrapped: %w", ErrNoFaceDetected), true},
		{errors.New("plain"), false},
		{nil, false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUserCorrectable(tt.err))
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *AppError
		code string
	}{
		{ErrNoFaceDetected, "NO_FACE_DETECTED"},
		{ErrEncodingFailure, "ENCODING_FAILURE"},
		{ErrDetectionFailure, "DETECTION_FAILURE"},
		{ErrUnknownIdentity, "UNKNOWN_IDENTITY"},
		{ErrInvalidIdentity, "INVALID_IDENTITY"},
		{ErrInvalidEmbedding, "INVALID_EMBEDDING"},
		{ErrInvalidImage, "INVALID_IMAGE"},
		{ErrCaptureUnavailable, "CAPTURE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}
