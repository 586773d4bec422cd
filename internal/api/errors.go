package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tejusbharadwaj/wattwatch/internal/ratelimit"
)

var (
	ErrRequest = errors.New("error making telemetry API request")
	// ErrTimeoutExceeded is returned once every timeout retry has been spent.
	ErrTimeoutExceeded = errors.New("telemetry API request timed out")
	// ErrRateLimitExceeded matches a 429 that arrived with the daily budget used up.
	ErrRateLimitExceeded = errors.New("telemetry API rate limit exceeded")
	// ErrUnexpectedStatus is wrapped by failures whose body is not a
	// structured API error.
	ErrUnexpectedStatus = errors.New("unexpected status from telemetry API")
)

// ServerError is a failure the API described with a structured error body.
type ServerError struct {
	Code       string
	HTTPCode   string
	Message    string
	StatusCode int
	RateLimits ratelimit.RateLimits
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServerError) Is(target error) bool {
	return target == ErrRateLimitExceeded && e.StatusCode == http.StatusTooManyRequests
}

// StatusError is a failure response whose body could not be decoded.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
	RateLimits ratelimit.RateLimits
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%v: %s", ErrUnexpectedStatus, e.Status)
	}
	return fmt.Sprintf("%v: %s: %s", ErrUnexpectedStatus, e.Status, body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimitExceeded && e.StatusCode == http.StatusTooManyRequests
}

// errorFromResponse builds the error for a non-2xx response.
func errorFromResponse(resp *Response) error {
	if se, ok := decodeServerError(resp.Body); ok {
		se.StatusCode = resp.StatusCode
		se.RateLimits = resp.RateLimits
		return se
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       resp.Body,
		RateLimits: resp.RateLimits,
	}
}

func decodeServerError(body []byte) (*ServerError, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}

	code, hasCode := field(payload, "code")
	message, hasMessage := field(payload, "message")
	if !hasCode && !hasMessage {
		return nil, false
	}
	httpCode, _ := field(payload, "httpCode")

	return &ServerError{Code: code, HTTPCode: httpCode, Message: message}, true
}

// field tolerates numeric codes: some gateways send httpCode as a number.
func field(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return fmt.Sprintf("%g", t), true
	default:
		return fmt.Sprint(t), true
	}
}
