package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// ErrNotConfigured is returned when a service is called without credentials or endpoint
var ErrNotConfigured = errors.New("service not configured")

// ErrorKind classifies an outbound failure for logging, metrics and user messages
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindValidation  ErrorKind = "validation"
	KindRateLimit   ErrorKind = "rate_limit"
	KindServer      ErrorKind = "server"
	KindClient      ErrorKind = "client"
	KindTransport   ErrorKind = "transport"
	KindUnavailable ErrorKind = "unavailable"
	KindPayload     ErrorKind = "payload"
)

// APIError is a non-2xx response from an upstream API
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// Kind classifies the error by HTTP status
func (e *APIError) Kind() ErrorKind {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return KindAuth
	case e.StatusCode == http.StatusUnprocessableEntity:
		return KindValidation
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case e.StatusCode >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// PayloadError is a 2xx response whose body did not have the expected structure
type PayloadError struct {
	Service string
	Reason  string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s returned an unexpected payload: %s", e.Service, e.Reason)
}

// KindOf classifies any error returned by this package
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return KindPayload
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return KindUnavailable
	}
	return KindTransport
}

// StatusCode returns the upstream HTTP status carried by err, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// UserMessage renders err as the banner text shown on the dashboard
func UserMessage(err error) string {
	switch StatusCode(err) {
	case http.StatusUnauthorized:
		return "API key authentication failed. Please check your API key."
	case http.StatusUnprocessableEntity:
		return "Invalid request. The symbols may not be supported or formatted correctly."
	case http.StatusTooManyRequests:
		return "API rate limit exceeded. Please try again later or upgrade your plan."
	case 0:
		return fmt.Sprintf("API error (unknown): %v", err)
	default:
		return fmt.Sprintf("API error (%d): %v", StatusCode(err), err)
	}
}

// isRetryable reports whether another attempt could succeed
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch KindOf(err) {
	case KindRateLimit, KindServer, KindTransport:
		return true
	default:
		return false
	}
}

// upstreamMessage pulls a human readable message out of common error bodies
func upstreamMessage(body []byte) string {
	var doc struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	switch e := doc.Error.(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return doc.Message
}
