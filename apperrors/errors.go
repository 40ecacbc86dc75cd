package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an error along the fulfillment path.
type Kind string

const (
	KindConfigurationMissing Kind = "ConfigurationMissing"
	KindTransportFailure     Kind = "TransportFailure"
	KindDecodeFailure        Kind = "DecodeFailure"
	KindInitialization       Kind = "InitializationError"
	KindLaunch               Kind = "LaunchError"
	KindAssetNotFound        Kind = "AssetNotFound"
	KindInvalidTransition    Kind = "InvalidTransition"
	KindInvalidInput         Kind = "InvalidInput"
	KindInternal             Kind = "Internal"
)

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so wrapped instances satisfy
// errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// StatusCode maps the kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidInput, KindInvalidTransition, KindDecodeFailure:
		return http.StatusBadRequest
	case KindAssetNotFound:
		return http.StatusNotFound
	case KindConfigurationMissing:
		return http.StatusServiceUnavailable
	case KindTransportFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new Error
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Wrap attaches cause to a copy of the sentinel, keeping its kind and message.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: err}
}

// KindOf returns the kind carried by err, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Notification path
var (
	ErrConfigurationMissing = New(KindConfigurationMissing, "configuration missing", nil)
	ErrTransportFailure     = New(KindTransportFailure, "channel transport failed", nil)
	ErrAssetNotFound        = New(KindAssetNotFound, "invoice asset not found", nil)
)

// Scan engine
var (
	ErrInitialization = New(KindInitialization, "scan engine initialization failed", nil)
	ErrLaunch         = New(KindLaunch, "scan engine failed to launch", nil)
	ErrNoCodeDetected = New(KindDecodeFailure, "no code detected", nil)
)

// Checkout
var (
	ErrInvalidTransition = New(KindInvalidTransition, "invalid checkout transition", nil)
	ErrInvalidInput      = New(KindInvalidInput, "invalid input", nil)
	ErrInternal          = New(KindInternal, "internal server error", nil)
)

// ErrorMiddleware renders the last gin error as JSON.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		var appErr *Error
		if !errors.As(err, &appErr) {
			appErr = Wrap(ErrInternal, err)
		}
		c.JSON(appErr.StatusCode(), gin.H{"error": appErr.Message, "kind": appErr.Kind})
		c.Abort()
	}
}
