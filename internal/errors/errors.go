package errors

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrValidation is returned when request input is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated is returned when no usable bearer credential is presented.
	ErrUnauthenticated = errors.New("missing or malformed credential")
	// ErrInvalidCredential is returned when a credential fails signature checks or was revoked.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpiredCredential is returned when a credential is past its expiry.
	ErrExpiredCredential = errors.New("credential expired")
	// ErrUnknownSubject is returned when a valid credential names a user that does not exist.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrInvalidLogin is returned when email or password is incorrect.
	ErrInvalidLogin = errors.New("invalid email or password")
	// ErrNotFound is returned when an owned resource is absent or belongs to someone else.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned when registering an email that is already taken.
	ErrConflict = errors.New("email already registered")
	// ErrUpstreamUnavailable is returned when the language model call fails.
	ErrUpstreamUnavailable = errors.New("language model unavailable")
	// ErrUpstreamNotConfigured is returned when no language model credential is deployed.
	ErrUpstreamNotConfigured = errors.New("language model not configured")
	// ErrRateLimited is returned when a caller exhausts its request window.
	ErrRateLimited = errors.New("too many requests")
	// ErrUnsupportedFileType is returned when an upload's mime type is not allowed.
	ErrUnsupportedFileType = errors.New("file type not allowed")
	// ErrFileTooLarge is returned when an upload exceeds the size cap.
	ErrFileTooLarge = errors.New("file too large")
)

// Validation wraps ErrValidation with a human-readable reason.
func Validation(reason string) error {
	return &ValidationError{Reason: reason}
}

// ValidationError carries the reason a request was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is reports ValidationError as ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UpstreamError reports a failed language model call. Detail holds the raw
// upstream failure and is returned to the caller only, never persisted.
type UpstreamError struct {
	Detail string
}

func (e *UpstreamError) Error() string {
	return ErrUpstreamUnavailable.Error() + ": " + e.Detail
}

// Is reports UpstreamError as ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrUnsupportedFileType):
		return NewHTTPError(http.StatusBadRequest, ErrUnsupportedFileType.Error(), "UNSUPPORTED_FILE_TYPE")
	case errors.Is(err, ErrFileTooLarge):
		return NewHTTPError(http.StatusBadRequest, ErrFileTooLarge.Error(), "FILE_TOO_LARGE")
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthenticated.Error(), "UNAUTHENTICATED")
	case errors.Is(err, ErrExpiredCredential):
		return NewHTTPError(http.StatusUnauthorized, ErrExpiredCredential.Error(), "EXPIRED_CREDENTIAL")
	case errors.Is(err, ErrInvalidCredential):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredential.Error(), "INVALID_CREDENTIAL")
	case errors.Is(err, ErrUnknownSubject):
		return NewHTTPError(http.StatusUnauthorized, ErrUnknownSubject.Error(), "UNKNOWN_SUBJECT")
	case errors.Is(err, ErrInvalidLogin):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidLogin.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, ErrNotFound.Error(), "NOT_FOUND")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, ErrConflict.Error(), "USER_ALREADY_EXISTS")
	case errors.Is(err, ErrUpstreamUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, ErrUpstreamUnavailable.Error(), "UPSTREAM_UNAVAILABLE")
	case errors.Is(err, ErrUpstreamNotConfigured):
		return NewHTTPError(http.StatusInternalServerError, ErrUpstreamNotConfigured.Error(), "UPSTREAM_NOT_CONFIGURED")
	case errors.Is(err, ErrRateLimited):
		return NewHTTPError(http.StatusTooManyRequests, ErrRateLimited.Error(), "RATE_LIMITED")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// ToEcho converts a domain error into an echo error carrying the cause as
// its internal error so HTTPErrorHandler can log it.
func ToEcho(err error) *echo.HTTPError {
	httpErr := MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

// HTTPErrorHandler is the single top-level error handler. Responses never
// carry internal error text; 5xx causes are logged instead.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = ToEcho(err)
	}

	status := he.Code
	var body ErrorResponse
	switch msg := he.Message.(type) {
	case ErrorResponse:
		body = msg
	case string:
		body = ErrorResponse{Error: msg, Code: codeForStatus(status)}
	default:
		body = ErrorResponse{Error: http.StatusText(status), Code: codeForStatus(status)}
	}

	if status >= http.StatusInternalServerError {
		cause := he.Internal
		if cause == nil {
			cause = err
		}
		slog.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", status,
			"error", cause,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		)
		if status == http.StatusInternalServerError {
			body.Error = "internal server error"
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		slog.Error("write error response", "error", err)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UPSTREAM_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
