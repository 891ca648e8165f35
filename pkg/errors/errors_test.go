package errors

import (
	"strings"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		kind      Kind
		retryable bool
	}{
		{KindNetwork, true},
		{KindRateLimit, true},
		{KindServerError, true},
		{KindLocalIO, true},
		{KindAuth, false},
		{KindNotFound, false},
		{KindParsing, false},
		{KindUnknown, false},
	}

	for _, test := range tests {
		t.Run(string(test.kind), func(t *testing.T) {
			if got := IsRetryable(test.kind); got != test.retryable {
				t.Errorf("IsRetryable(%s) = %v, want %v", test.kind, got, test.retryable)
			}
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	retryable := []int{0, 429, 500, 502, 503, 504, 599}
	for _, code := range retryable {
		if !IsRetryableStatusCode(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}

	terminal := []int{200, 400, 401, 403, 404}
	for _, code := range terminal {
		if IsRetryableStatusCode(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(KindAuth, 98, "invalid token")
	if !strings.Contains(err.Error(), "auth") {
		t.Errorf("error string should carry the kind, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "98") {
		t.Errorf("error string should carry the code, got %q", err.Error())
	}

	noCode := New(KindNetwork, 0, "connection reset")
	if strings.Contains(noCode.Error(), "code") {
		t.Errorf("zero code should be omitted, got %q", noCode.Error())
	}
}
