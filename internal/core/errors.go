// Package core provides the wire types, error taxonomy and client
// interfaces shared by the streaming client and its callers.
package core

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeConfiguration indicates the client could not be built (missing credential, bad endpoint)
	ErrorTypeConfiguration ErrorType = "configuration_error"
	// ErrorTypeTransport indicates a network failure: connect, DNS, timeout or a broken stream
	ErrorTypeTransport ErrorType = "transport_error"
	// ErrorTypeProvider indicates an upstream provider error (5xx)
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeRateLimit indicates a rate limit error (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx) or a request rejected locally
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401/403)
	ErrorTypeAuthentication ErrorType = "authentication_error"
)

// ErrMissingCredential is returned when a client is constructed without an API key.
var ErrMissingCredential = errors.New("missing API key: set DEEPSEEK_API_KEY or pass one explicitly")

// ClientError is the error type returned by every client operation.
type ClientError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Original error for debugging
	Err error `json:"-"`
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *ClientError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the upstream status code, or the one implied by the error type.
func (e *ClientError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeProvider, ErrorTypeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsType reports whether err is a *ClientError of the given type.
func IsType(err error, t ErrorType) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == t
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string, err error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeConfiguration,
		Message: message,
		Err:     err,
	}
}

// NewTransportError creates a new transport error
func NewTransportError(provider string, message string, err error) *ClientError {
	return &ClientError{
		Type:     ErrorTypeTransport,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}

// NewProviderError creates a new provider error (upstream 5xx)
func NewProviderError(provider string, statusCode int, message string, err error) *ClientError {
	return &ClientError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider string, message string) *ClientError {
	return &ClientError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *ClientError {
	return NewInvalidRequestErrorWithStatus(http.StatusBadRequest, message, err)
}

// NewInvalidRequestErrorWithStatus creates a new invalid request error with a specific status code
func NewInvalidRequestErrorWithStatus(statusCode int, message string, err error) *ClientError {
	return &ClientError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(provider string, statusCode int, message string) *ClientError {
	return &ClientError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
	}
}

// ParseProviderError maps a non-2xx provider response to a ClientError.
// The message is taken from error.message when the body is an OpenAI-style
// error document, otherwise the raw body is used.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *ClientError {
	message := string(body)
	if msg := gjson.GetBytes(body, "error.message"); msg.Type == gjson.String && msg.Str != "" {
		message = msg.Str
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewAuthenticationError(provider, statusCode, message)
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider, message)
	case statusCode >= 400 && statusCode < 500:
		err := NewInvalidRequestErrorWithStatus(statusCode, message, originalErr)
		err.Provider = provider
		return err
	default:
		// 5xx and anything else outside 2xx (1xx, 3xx left unfollowed)
		return NewProviderError(provider, statusCode, message, originalErr)
	}
}
