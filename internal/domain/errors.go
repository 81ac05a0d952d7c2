package domain

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Correctable marks conditions the caller can fix (retake the photo, pick another id)
	// as opposed to failures that end the operation or the session.
	Correctable bool  `json:"-"`
	Err         error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so copies produced by
// WithError still satisfy errors.Is against the sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:        e.Code,
		Message:     e.Message,
		Correctable: e.Correctable,
		Err:         err,
	}
}

// IsUserCorrectable reports whether err is a condition the caller is expected
// to fix and retry, such as an enrollment photo without a face.
func IsUserCorrectable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Correctable
	}
	return false
}

// Pre-defined errors
var (
	ErrNoFaceDetected = &AppError{
		Code:        "NO_FACE_DETECTED",
		Message:     "No face detected in the image",
		Correctable: true,
	}

	ErrEncodingFailure = &AppError{
		Code:        "ENCODING_FAILURE",
		Message:     "Could not compute an embedding for the face",
		Correctable: true,
	}

	ErrDetectionFailure = &AppError{
		Code:    "DETECTION_FAILURE",
		Message: "Face detection failed",
	}

	ErrUnknownIdentity = &AppError{
		Code:        "UNKNOWN_IDENTITY",
		Message:     "Identity does not exist",
		Correctable: true,
	}

	ErrInvalidIdentity = &AppError{
		Code:        "INVALID_IDENTITY",
		Message:     "Identity record failed validation",
		Correctable: true,
	}

	ErrInvalidEmbedding = &AppError{
		Code:    "INVALID_EMBEDDING",
		Message: "Embedding has an unexpected length",
	}

	ErrInvalidImage = &AppError{
		Code:        "INVALID_IMAGE",
		Message:     "Invalid image format or corrupted file",
		Correctable: true,
	}

	ErrCaptureUnavailable = &AppError{
		Code:    "CAPTURE_UNAVAILABLE",
		Message: "Capture device could not be opened or read",
	}
)
