package providers

import (
	"errors"
	"fmt"
)

// FetchError wraps an upstream API failure with enough context to decide
// whether a retry is worthwhile. StatusCode 0 means the request never got a
// response (timeout, connection refused).
type FetchError struct {
	Slug       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Slug, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Slug, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying.
// Timeouts, 429 and 5xx are transient; 401/403/404 mean the entity cannot be
// fetched this run no matter how often we try.
func (e *FetchError) Transient() bool {
	switch e.StatusCode {
	case 0, 408, 429:
		return true
	}
	return e.StatusCode >= 500
}

// IsTransient classifies an arbitrary error from a provider call.
// Unknown errors (plain network failures, context deadlines) default to
// transient so a flaky upstream gets the benefit of the retry loop.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient()
	}
	return true
}
