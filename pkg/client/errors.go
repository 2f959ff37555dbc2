package client

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrSessionExpired is returned when the server rejects the bearer token.
	// The session has already been cleared when callers see it.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned by operations that need a principal
	// before any request is sent.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInFlight rejects a second identical mutation while the first is running.
	ErrInFlight = errors.New("operation already in progress")
)

// ValidationError is a client pre-check failure or a 400 from the server.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]string{field: message}}
}

// AuthorizationError is a policy denial, either local or a 403.
type AuthorizationError struct {
	Code    string
	Message string
	// Local is true when the request never left the client.
	Local bool
}

func (e *AuthorizationError) Error() string { return e.Message }

// ConflictError is a 409: overlap, insufficient balance, already decided.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Code + ": " + e.Message }

// NotFoundError is a 404.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// TransportError covers network failures and unexpected statuses. It is
// never retried automatically.
type TransportError struct {
	Method string
	Path   string
	Status int
	Code   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.Path, e.Status, e.Code)
}

func (e *TransportError) Unwrap() error { return e.Err }

// errorBody mirrors the server error envelope.
type errorBody struct {
	Status      int               `json:"status"`
	Error       string            `json:"error"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors"`
}

func statusError(method, path string, status int, body errorBody) error {
	message := body.Message
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		return &ValidationError{Message: message, Fields: body.FieldErrors}
	case http.StatusForbidden:
		return &AuthorizationError{Code: body.Code, Message: message}
	case http.StatusNotFound:
		return &NotFoundError{Message: message}
	case http.StatusConflict:
		return &ConflictError{Code: body.Code, Message: message}
	default:
		return &TransportError{Method: method, Path: path, Status: status, Code: body.Code}
	}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
