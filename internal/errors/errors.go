// Package errors provides the structured error type shared by the capture
// pipeline, the engines and the HTTP surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code classifies an AppError.
type Code string

const (
	Unknown            Code = "UNKNOWN"
	Internal           Code = "INTERNAL"
	InvalidArgument    Code = "INVALID_ARGUMENT"
	NotFound           Code = "NOT_FOUND"
	Unavailable        Code = "UNAVAILABLE"
	Timeout            Code = "TIMEOUT"
	Cancelled          Code = "CANCELLED"
	RateLimited        Code = "RATE_LIMITED"
	NoRegion           Code = "NO_REGION"
	AlreadyRunning     Code = "ALREADY_RUNNING"
	NotRunning         Code = "NOT_RUNNING"
	DimensionMismatch  Code = "DIMENSION_MISMATCH"
	CaptureFailed      Code = "CAPTURE_FAILED"
	OCRInitFailed      Code = "OCR_INIT_FAILED"
	OCRFailed          Code = "OCR_FAILED"
	TranslationFailed  Code = "TRANSLATION_FAILED"
	SynthesisFailed    Code = "SYNTHESIS_FAILED"
	PlaybackFailed     Code = "PLAYBACK_FAILED"
	JournalWriteFailed Code = "JOURNAL_WRITE_FAILED"
	ConfigInvalid      Code = "CONFIG_INVALID"
)

var grpcCodeMap = map[Code]codes.Code{
	Unknown:            codes.Unknown,
	Internal:           codes.Internal,
	InvalidArgument:    codes.InvalidArgument,
	NotFound:           codes.NotFound,
	Unavailable:        codes.Unavailable,
	Timeout:            codes.DeadlineExceeded,
	Cancelled:          codes.Canceled,
	RateLimited:        codes.ResourceExhausted,
	NoRegion:           codes.FailedPrecondition,
	AlreadyRunning:     codes.FailedPrecondition,
	NotRunning:         codes.FailedPrecondition,
	DimensionMismatch:  codes.Internal,
	CaptureFailed:      codes.Unavailable,
	OCRInitFailed:      codes.Unavailable,
	OCRFailed:          codes.Internal,
	TranslationFailed:  codes.Unavailable,
	SynthesisFailed:    codes.Unavailable,
	PlaybackFailed:     codes.Internal,
	JournalWriteFailed: codes.Internal,
	ConfigInvalid:      codes.InvalidArgument,
}

var httpStatusMap = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.FailedPrecondition: http.StatusConflict,
	codes.NotFound:           http.StatusNotFound,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Canceled:           499,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// Is matches AppErrors by code so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// HTTPStatus maps the error onto an HTTP response status.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatusMap[e.GRPCCode()]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// GetCode returns the code of the first AppError in err's chain, or Unknown.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// HTTPStatus returns the response status for any error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, RateLimited, TranslationFailed, SynthesisFailed:
		return true
	default:
		return false
	}
}
