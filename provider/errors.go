package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ErrorKind classifies a backend failure for the retry policy.
type ErrorKind string

const (
	ErrorRateLimited  ErrorKind = "rate_limited"
	ErrorConnectivity ErrorKind = "connectivity"
	ErrorRejected     ErrorKind = "rejected"
	ErrorCancelled    ErrorKind = "cancelled"
)

// Retryable reports whether requests failing with k may be retried.
func (k ErrorKind) Retryable() bool {
	return k == ErrorRateLimited || k == ErrorConnectivity
}

// Error is a classified backend failure.
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// describe renders the message carried by a terminal stream error.
func (e *Error) describe(retries int) string {
	switch e.Kind {
	case ErrorRateLimited:
		return fmt.Sprintf("rate limited by %s after %d retries: %v", e.Provider, retries, e.Cause)
	case ErrorConnectivity:
		return fmt.Sprintf("connection error talking to %s after %d retries: %v", e.Provider, retries, e.Cause)
	case ErrorCancelled:
		return fmt.Sprintf("request to %s cancelled: %v", e.Provider, e.Cause)
	default:
		if e.StatusCode != 0 {
			return fmt.Sprintf("%s rejected the request (status %d): %v", e.Provider, e.StatusCode, e.Cause)
		}
		return fmt.Sprintf("%s rejected the request: %v", e.Provider, e.Cause)
	}
}

// IsRetryable reports whether err is a retryable backend failure.
func IsRetryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind.Retryable()
	}
	return false
}

// KindFromStatus maps an HTTP status code to an ErrorKind.
func KindFromStatus(code int) ErrorKind {
	switch {
	case code == 429 || code == 529:
		return ErrorRateLimited
	case code == 408 || code >= 500:
		return ErrorConnectivity
	default:
		return ErrorRejected
	}
}

// classify wraps err from backend name into an *Error.
func classify(name string, err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrorCancelled, Provider: name, Cause: err}
	}

	if code, ok := statusCode(err); ok {
		return &Error{Kind: KindFromStatus(code), Provider: name, StatusCode: code, Cause: err}
	}

	if isTransportError(err) {
		return &Error{Kind: ErrorConnectivity, Provider: name, Cause: err}
	}

	return &Error{Kind: ErrorRejected, Provider: name, Cause: err}
}

// statusCode extracts the HTTP status from the SDK error types.
func statusCode(err error) (int, bool) {
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode, true
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}
	var ollamaErr api.StatusError
	if errors.As(err, &ollamaErr) {
		return ollamaErr.StatusCode, true
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return geminiErr.Code, true
	}
	return 0, false
}

func isTransportError(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
