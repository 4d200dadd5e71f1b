package adsb

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		header    time.Duration
		wantKind  ErrorKind
		wantMsg   string
		wantRetry time.Duration
	}{
		{
			name:      "Coded rate limit",
			status:    http.StatusTooManyRequests,
			body:      `{"error": {"code": "RATE_LIMIT_ERROR", "message": "Rate limit exceeded", "retryAfter": 12}}`,
			wantKind:  KindRateLimit,
			wantMsg:   "Rate limit exceeded",
			wantRetry: 12 * time.Second,
		},
		{
			name:      "Bare 429 uses header hint",
			status:    http.StatusTooManyRequests,
			body:      ``,
			header:    7 * time.Second,
			wantKind:  KindRateLimit,
			wantMsg:   "HTTP Error 429",
			wantRetry: 7 * time.Second,
		},
		{
			name:     "Message mentions rate limit",
			status:   http.StatusServiceUnavailable,
			body:     `{"error": "Upstream rate limit reached"}`,
			wantKind: KindRateLimit,
			wantMsg:  "Upstream rate limit reached",
		},
		{
			name:     "Upstream 429 relayed as API error",
			status:   http.StatusInternalServerError,
			body:     `{"error": {"code": "API_ERROR", "message": "API Error: 429"}}`,
			wantKind: KindRateLimit,
			wantMsg:  "API Error: 429",
		},
		{
			name:     "Network code wins over message",
			status:   http.StatusBadGateway,
			body:     `{"error": {"code": "NETWORK_ERROR", "message": "dial tcp 127.0.0.1:4290: connection refused"}}`,
			wantKind: KindNetwork,
			wantMsg:  "dial tcp 127.0.0.1:4290: connection refused",
		},
		{
			name:     "Network code",
			status:   http.StatusBadGateway,
			body:     `{"error": {"code": "NETWORK_ERROR", "message": "upstream unreachable"}}`,
			wantKind: KindNetwork,
			wantMsg:  "upstream unreachable",
		},
		{
			name:     "Plain server error",
			status:   http.StatusInternalServerError,
			body:     `<html>oops</html>`,
			wantKind: KindAPI,
			wantMsg:  "HTTP Error 500",
		},
		{
			name:     "Bad request",
			status:   http.StatusBadRequest,
			body:     `{"error": "Invalid latitude"}`,
			wantKind: KindAPI,
			wantMsg:  "Invalid latitude",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := classifyResponse(tt.status, []byte(tt.body), tt.header)
			if fe.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, fe.Kind)
			}
			if fe.Message != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, fe.Message)
			}
			if fe.RetryAfter != tt.wantRetry {
				t.Errorf("Expected retry after %v, got %v", tt.wantRetry, fe.RetryAfter)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, fe.StatusCode)
			}
		})
	}
}

func TestErrorMatching(t *testing.T) {
	cause := &Error{Kind: KindNetwork, Message: "connection refused"}
	exhausted := &Error{Kind: KindNetwork, Message: "connection refused", Attempts: 3, cause: cause}
	wrapped := fmt.Errorf("refresh: %w", exhausted)

	if !errors.Is(wrapped, ErrRetriesExhausted) {
		t.Error("Expected wrapped error to match ErrRetriesExhausted")
	}
	if errors.Is(cause, ErrRetriesExhausted) {
		t.Error("Expected single failure not to match ErrRetriesExhausted")
	}
	if KindOf(wrapped) != KindNetwork {
		t.Errorf("Expected NETWORK_ERROR, got %s", KindOf(wrapped))
	}
	if !strings.HasPrefix(exhausted.Error(), "max retries (3) exceeded") {
		t.Errorf("Unexpected message: %s", exhausted.Error())
	}
	if KindOf(errors.New("boom")) != "" {
		t.Error("Expected empty kind for foreign errors")
	}
	if _, ok := IsRateLimitError(wrapped); ok {
		t.Error("Expected network error not to be a rate limit error")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&Error{Kind: KindRateLimit}, "Rate limit exceeded. Please wait a moment."},
		{&Error{Kind: KindNetwork}, "Network problem. Check your connection; retrying shortly."},
		{&Error{Kind: KindAPI}, "The flight data service returned an error."},
		{errors.New("boom"), "An unexpected error occurred."},
	}

	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, expected %q", tt.err, got, tt.want)
		}
	}
}
