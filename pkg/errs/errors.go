package errs

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")

	ErrUpstream    = errors.New("upstream error")
	ErrUnavailable = errors.New("service unavailable")

	// ErrUnauthenticated is returned before any network call when an
	// authenticated request is attempted without a stored session.
	ErrUnauthenticated = errors.New("no active session")
	// ErrTokenConsumed is returned when a single-use reset token was already redeemed.
	ErrTokenConsumed = errors.New("reset token already used")
	// ErrNoResetBinding is returned when the reset stage runs without bound identifiers.
	ErrNoResetBinding = errors.New("reset link identifiers missing")
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindServer          Kind = "server"
	KindNetwork         Kind = "network"
	KindNotFound        Kind = "not_found"
	KindAuth            Kind = "auth"
	KindUnauthenticated Kind = "unauthenticated"
	KindInternal        Kind = "internal"
)

// ValidationError is detected on the client before any request is sent.
type ValidationError struct {
	Code   string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Code
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Code, joinFields(e.Fields))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// ServerError is a non-2xx response. Fields holds the backend's field-level
// messages exactly as received.
type ServerError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("server responded %d: %s", e.Status, msg)
}

func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return true
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// NetworkError means the request never reached the server or no response came back.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrUnavailable }

// AuthError is a failed sign-in. Reason is safe to show to the user.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string { return "login failed: " + e.Reason }

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

func KindOf(err error) Kind {
	var (
		ae *AuthError
		ve *ValidationError
		se *ServerError
		ne *NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return KindAuth
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.As(err, &se):
		if se.Status == http.StatusNotFound {
			return KindNotFound
		}
		return KindServer
	case errors.As(err, &ne):
		return KindNetwork
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrTokenConsumed), errors.Is(err, ErrNoResetBinding):
		return KindValidation
	default:
		return KindInternal
	}
}

func ToHTTP(err error) int {
	var se *ServerError
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTokenConsumed), errors.Is(err, ErrNoResetBinding):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &se):
		if se.Status >= 400 && se.Status < 500 {
			return se.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var validationMessages = map[string]string{
	"password_mismatch":  "Passwords don't match",
	"invalid_fields":     "Please correct the highlighted fields",
	"invalid_student_id": "Invalid Student ID. Please make sure you've entered the correct ID",
	"invalid_reset_link": "This reset link is invalid or incomplete",
}

// UserMessage renders err for display. fallback is used when the error
// carries nothing presentable.
func UserMessage(err error, fallback string) string {
	var (
		ae *AuthError
		ve *ValidationError
		se *ServerError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		if ae.Reason != "" {
			return ae.Reason
		}
	case errors.As(err, &ve):
		if msg, ok := validationMessages[ve.Code]; ok {
			return msg
		}
	case errors.Is(err, ErrUnauthenticated):
		return "Your session has ended. Please sign in again"
	case errors.Is(err, ErrTokenConsumed):
		return "This reset link has already been used. Please request a new one"
	case errors.Is(err, ErrNoResetBinding):
		return validationMessages["invalid_reset_link"]
	case errors.As(err, &se):
		if se.Message != "" {
			return se.Message
		}
	case errors.Is(err, ErrUnavailable):
		return "Unable to reach the server. Please try again"
	}
	return fallback
}

// FieldsOf flattens field-level messages of a validation or server error.
func FieldsOf(err error) map[string][]string {
	var (
		ve *ValidationError
		se *ServerError
	)
	switch {
	case errors.As(err, &ve) && len(ve.Fields) > 0:
		out := make(map[string][]string, len(ve.Fields))
		for k, v := range ve.Fields {
			out[k] = []string{v}
		}
		return out
	case errors.As(err, &se) && len(se.Fields) > 0:
		return se.Fields
	}
	return nil
}

func joinFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}
