// Package errors provides the typed HTTP failures services return to the dispatcher
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// TimeNow is the clock used to stamp errors. Tests may replace it.
var TimeNow = time.Now

// Error labels
const (
	LabelNotAllowed    = "Not Allowed"
	LabelNotFound      = "Not Found"
	LabelBadRequest    = "Bad Request"
	LabelInternalError = "Internal Service Error"
)

// Default messages
const (
	MessageNotAllowed    = "Method not allowed."
	MessageNotFound      = "Resource not found."
	MessageBadRequest    = "An error occurred."
	MessageInternalError = "An error occurred."
)

// HTTPError is a failure that knows the status code and label it should be rendered with.
// The timestamp is captured once, when the error is constructed.
type HTTPError struct {
	StatusCode int
	ErrorLabel string
	Message    string
	Timestamp  time.Time

	cause error
}

var _ error = (*HTTPError)(nil)

// ResponseBody is the serialized form of an HTTPError. Field order is the wire order.
type ResponseBody struct {
	StatusCode int    `json:"statusCode"`
	ErrorLabel string `json:"errorLabel"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

// New creates a service-specific error with an arbitrary status and label.
func New(statusCode int, label, message string) *HTTPError {
	if label == "" {
		label = http.StatusText(statusCode)
	}
	return &HTTPError{
		StatusCode: statusCode,
		ErrorLabel: label,
		Message:    message,
		Timestamp:  TimeNow(),
	}
}

// NewNotAllowed creates a 405 error. An empty message selects the default one.
func NewNotAllowed(message string) *HTTPError {
	return New(http.StatusMethodNotAllowed, LabelNotAllowed, orDefault(message, MessageNotAllowed))
}

// NewNotFound creates a 404 error. An empty message selects the default one.
func NewNotFound(message string) *HTTPError {
	return New(http.StatusNotFound, LabelNotFound, orDefault(message, MessageNotFound))
}

// NewBadRequest creates a 400 error. An empty message selects the default one.
func NewBadRequest(message string) *HTTPError {
	return New(http.StatusBadRequest, LabelBadRequest, orDefault(message, MessageBadRequest))
}

// NewInternalError creates a 500 error. An empty message selects the default one.
func NewInternalError(message string) *HTTPError {
	return New(http.StatusInternalServerError, LabelInternalError, orDefault(message, MessageInternalError))
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

// Error implements error
func (e *HTTPError) Error() string {
	str := fmt.Sprintf("[%d %s] %s", e.StatusCode, e.ErrorLabel, e.Message)
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *HTTPError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// WithCause returns a copy of the error carrying cause. The cause is never rendered to clients.
func (e *HTTPError) WithCause(cause error) *HTTPError {
	err := *e
	err.cause = cause
	return &err
}

// ToResponseBody projects the error onto its response body.
func (e *HTTPError) ToResponseBody() ResponseBody {
	return ResponseBody{
		StatusCode: e.StatusCode,
		ErrorLabel: e.ErrorLabel,
		Message:    e.Message,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// Map returns the response body as a plain mapping.
func (e *HTTPError) Map() map[string]any {
	body := e.ToResponseBody()
	return map[string]any{
		"statusCode": body.StatusCode,
		"errorLabel": body.ErrorLabel,
		"message":    body.Message,
		"timestamp":  body.Timestamp,
	}
}

// AsHTTPError finds the first HTTPError in err's chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		return httpErr, true
	}
	return nil, false
}
