package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ProviderError is a failed channel send. Transient marks failures a later attempt could fix.
type ProviderError struct {
	Transport  string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	if transport := strings.TrimSpace(e.Transport); transport != "" {
		b.WriteString(transport)
		b.WriteByte(' ')
	}
	b.WriteString("transport error")

	if e.StatusCode > 0 {
		b.WriteString(": status=")
		b.WriteString(strconv.Itoa(e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// rejected is a permanent failure raised before anything reached the remote service.
func rejected(transport string, message string) *ProviderError {
	return &ProviderError{Transport: transport, Message: message}
}

// requestFailed wraps a client error. Only caller cancellation is permanent.
func requestFailed(transport string, message string, cause error) *ProviderError {
	return &ProviderError{
		Transport: transport,
		Message:   message,
		Transient: !errors.Is(cause, context.Canceled),
		Cause:     cause,
	}
}

// statusFailed classifies a non-2xx response: 429 and 5xx are transient.
func statusFailed(transport string, statusCode int, message string) *ProviderError {
	return &ProviderError{
		Transport:  transport,
		StatusCode: statusCode,
		Message:    message,
		Transient:  statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError,
	}
}

// IsTransient reports whether a later attempt could succeed.
func IsTransient(err error) bool {
	var providerErr *ProviderError
	var netErr net.Error

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.As(err, &providerErr):
		return providerErr.Transient
	case errors.As(err, &netErr):
		return netErr.Timeout()
	default:
		return false
	}
}
