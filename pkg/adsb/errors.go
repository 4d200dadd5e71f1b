package adsb

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind is the closed set of failures the Fetcher reports.
type ErrorKind string

const (
	// KindRateLimit means quota was exceeded; RetryAfter may carry a hint.
	KindRateLimit ErrorKind = "RATE_LIMIT_ERROR"

	// KindNetwork means the proxy or upstream could not be reached.
	KindNetwork ErrorKind = "NETWORK_ERROR"

	// KindAPI covers every other non-2xx or malformed response.
	KindAPI ErrorKind = "API_ERROR"
)

// ErrRetriesExhausted matches (via errors.Is) an *Error returned after every
// attempt failed.
var ErrRetriesExhausted = errors.New("max retries exceeded")

// Error is a failed fetch.
type Error struct {
	Kind    ErrorKind
	Message string

	// RetryAfter is the server's hint for rate-limit errors
	RetryAfter time.Duration

	// StatusCode is the HTTP status, 0 for transport failures
	StatusCode int

	// Attempts is set when the retry budget ran out
	Attempts int

	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %v)", e.RetryAfter)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("max retries (%d) exceeded: %s", e.Attempts, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports exhaustion so callers can test errors.Is(err, ErrRetriesExhausted).
func (e *Error) Is(target error) bool {
	return target == ErrRetriesExhausted && e.Attempts > 0
}

// Retryable reports whether the Fetcher retries this kind.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindNetwork
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindRateLimit {
		return fe, true
	}
	return nil, false
}

// UserMessage maps err to the text a dashboard should show.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindRateLimit:
		return "Rate limit exceeded. Please wait a moment."
	case KindNetwork:
		return "Network problem. Check your connection; retrying shortly."
	case KindAPI:
		return "The flight data service returned an error."
	default:
		return "An unexpected error occurred."
	}
}

// errorBody is the proxy's error envelope. The error member is either an
// object with a code or a bare message string.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

type errorObject struct {
	Code       string  `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retryAfter"`
}

// classifyResponse turns a non-2xx proxy response into an *Error.
func classifyResponse(status int, body []byte, retryAfterHeader time.Duration) *Error {
	fe := &Error{
		Kind:       KindAPI,
		StatusCode: status,
		Message:    fmt.Sprintf("HTTP Error %d", status),
	}

	var code string
	var env errorBody
	if err := json.Unmarshal(body, &env); err == nil && len(env.Error) > 0 {
		var obj errorObject
		var text string
		switch {
		case json.Unmarshal(env.Error, &obj) == nil:
			code = obj.Code
			if obj.Message != "" {
				fe.Message = obj.Message
			}
			if obj.RetryAfter > 0 {
				fe.RetryAfter = time.Duration(obj.RetryAfter * float64(time.Second))
			}
		case json.Unmarshal(env.Error, &text) == nil && text != "":
			fe.Message = text
		}
	}

	switch {
	case code == string(KindNetwork):
		fe.Kind = KindNetwork
	case code == string(KindRateLimit), status == http.StatusTooManyRequests, mentionsRateLimit(fe.Message):
		fe.Kind = KindRateLimit
		if fe.RetryAfter == 0 {
			fe.RetryAfter = retryAfterHeader
		}
	}
	return fe
}

func mentionsRateLimit(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "429")
}
