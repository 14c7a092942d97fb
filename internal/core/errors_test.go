package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClientError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ClientError
		expected string
	}{
		{
			name: "error with provider",
			err: &ClientError{
				Type:     ErrorTypeProvider,
				Message:  "upstream error",
				Provider: "deepseek",
			},
			expected: "[deepseek] provider_error: upstream error",
		},
		{
			name: "error without provider",
			err: &ClientError{
				Type:    ErrorTypeInvalidRequest,
				Message: "bad request",
			},
			expected: "invalid_request_error: bad request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClientError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	clientErr := NewTransportError("deepseek", "read failed", originalErr)

	if !errors.Is(clientErr, originalErr) {
		t.Errorf("errors.Is should find the original error through Unwrap")
	}
}

func TestClientError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *ClientError
		expected int
	}{
		{"explicit status code", &ClientError{Type: ErrorTypeProvider, StatusCode: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"rate limit default", &ClientError{Type: ErrorTypeRateLimit}, http.StatusTooManyRequests},
		{"invalid request default", &ClientError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"authentication default", &ClientError{Type: ErrorTypeAuthentication}, http.StatusUnauthorized},
		{"provider default", &ClientError{Type: ErrorTypeProvider}, http.StatusBadGateway},
		{"transport default", &ClientError{Type: ErrorTypeTransport}, http.StatusBadGateway},
		{"configuration default", &ClientError{Type: ErrorTypeConfiguration}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("stream: %w", NewRateLimitError("deepseek", "slow down"))

	if !IsType(wrapped, ErrorTypeRateLimit) {
		t.Error("IsType should match a wrapped rate limit error")
	}
	if IsType(wrapped, ErrorTypeProvider) {
		t.Error("IsType should not match a different type")
	}
	if IsType(errors.New("plain"), ErrorTypeRateLimit) {
		t.Error("IsType should not match a plain error")
	}
}

func TestParseProviderError(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantType    ErrorType
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "unauthorized with openai style body",
			statusCode:  http.StatusUnauthorized,
			body:        `{"error":{"message":"Authentication Fails (no such user)","type":"authentication_error"}}`,
			wantType:    ErrorTypeAuthentication,
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Authentication Fails (no such user)",
		},
		{
			name:        "forbidden",
			statusCode:  http.StatusForbidden,
			body:        `forbidden`,
			wantType:    ErrorTypeAuthentication,
			wantStatus:  http.StatusForbidden,
			wantMessage: "forbidden",
		},
		{
			name:        "rate limited",
			statusCode:  http.StatusTooManyRequests,
			body:        `{"error":{"message":"Rate limit reached"}}`,
			wantType:    ErrorTypeRateLimit,
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: "Rate limit reached",
		},
		{
			name:        "insufficient balance keeps status",
			statusCode:  http.StatusPaymentRequired,
			body:        `{"error":{"message":"Insufficient Balance"}}`,
			wantType:    ErrorTypeInvalidRequest,
			wantStatus:  http.StatusPaymentRequired,
			wantMessage: "Insufficient Balance",
		},
		{
			name:        "server error with plain body",
			statusCode:  http.StatusServiceUnavailable,
			body:        `Server overloaded`,
			wantType:    ErrorTypeProvider,
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "Server overloaded",
		},
		{
			name:        "empty body falls back to status text",
			statusCode:  http.StatusInternalServerError,
			body:        ``,
			wantType:    ErrorTypeProvider,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseProviderError("deepseek", tt.statusCode, []byte(tt.body), nil)

			if err.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", err.Type, tt.wantType)
			}
			if err.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %v, want %v", err.StatusCode, tt.wantStatus)
			}
			if err.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMessage)
			}
			if err.Provider != "deepseek" {
				t.Errorf("Provider = %q, want deepseek", err.Provider)
			}
		})
	}
}

func TestNewConfigurationError_WrapsCredentialError(t *testing.T) {
	err := NewConfigurationError("cannot build client", ErrMissingCredential)

	if err.Type != ErrorTypeConfiguration {
		t.Errorf("Type = %v, want %v", err.Type, ErrorTypeConfiguration)
	}
	if !errors.Is(err, ErrMissingCredential) {
		t.Error("configuration error should wrap ErrMissingCredential")
	}
}
