package api

import (
	"errors"
	"fmt"
)

// Machine-readable error codes used by the inspection portal.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeAlreadyProcessing  = "ALREADY_PROCESSING"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"

	// client-side codes
	CodeHTTP    = "HTTP_ERROR"
	CodeNetwork = "NETWORK_ERROR"
	CodeDecode  = "DECODE_ERROR"
)

// Error is a failed API call.
//
// Code is the machine-readable code from the error envelope, or one of the
// client-side codes when the server did not produce an envelope.
type Error struct {
	Code       string
	Message    string
	Details    map[string]any
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is an *Error carrying code.
func IsCode(err error, code string) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// UserMessage converts err into text suitable for an operator.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		if msg := err.Error(); msg != "" {
			return msg
		}
		return "An unexpected error occurred. Please try again."
	}

	switch apiErr.Code {
	case CodeInvalidCredentials:
		return "Invalid email or password. Please try again."
	case CodeUnauthorized:
		return "Your session has expired. Please log in again."
	case CodeNotFound:
		return "Resource not found."
	case CodeAlreadyExists:
		return "This item already exists."
	case CodeAlreadyProcessing:
		return "This evidence is already being processed."
	case CodeFileTooLarge:
		return "The file is too large. Maximum size: 10MB."
	case CodeUnsupportedFormat:
		return "Unsupported file format. Use JPEG, PNG or WEBP."
	case CodeRateLimited:
		return "Too many requests. Please wait a moment."
	case CodeNetwork:
		return "Connection error. Check your network and try again."
	case CodeValidation:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Validation error. Check the submitted data."
	default:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Something went wrong. Please try again."
	}
}
