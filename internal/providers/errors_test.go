package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestFetchErrorTransient(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"no response", 0, true},
		{"request timeout", 408, true},
		{"rate limited", 429, true},
		{"server error", 500, true},
		{"bad gateway", 502, true},
		{"unauthorized", 401, false},
		{"forbidden", 403, false},
		{"not found", 404, false},
		{"bad request", 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := &FetchError{Slug: "azuki", StatusCode: tt.status, Err: errors.New("boom")}
			if got := fe.Transient(); got != tt.transient {
				t.Errorf("Transient() for status %d = %v, want %v", tt.status, got, tt.transient)
			}
		})
	}
}

func TestIsTransientUnwrapsWrappedErrors(t *testing.T) {
	fatal := &FetchError{Slug: "azuki", StatusCode: 404, Err: errors.New("gone")}
	wrapped := fmt.Errorf("historical sync for azuki: %w", fatal)
	if IsTransient(wrapped) {
		t.Error("wrapped 404 should stay fatal")
	}

	// Errors with no classification get the retry loop's benefit of the doubt
	if !IsTransient(errors.New("connection reset")) {
		t.Error("unknown errors should default to transient")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Error("deadline errors should be transient")
	}
}

func TestFetchErrorMessage(t *testing.T) {
	withStatus := &FetchError{Slug: "azuki", StatusCode: 429, Err: errors.New("slow down")}
	if got := withStatus.Error(); got != "fetch azuki: status 429: slow down" {
		t.Errorf("Error() = %q", got)
	}

	noResponse := &FetchError{Slug: "azuki", Err: errors.New("dial tcp: timeout")}
	if got := noResponse.Error(); got != "fetch azuki: dial tcp: timeout" {
		t.Errorf("Error() = %q", got)
	}
}
