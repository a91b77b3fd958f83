package ai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCredentialMissing means the selected backend has no API key.
	ErrCredentialMissing = errors.New("ai: credential missing")
	// ErrAuthenticationFailed means the backend rejected the API key.
	ErrAuthenticationFailed = errors.New("ai: authentication failed")
	// ErrRateLimited means the backend refused the request for quota reasons.
	ErrRateLimited = errors.New("ai: rate limited")
	// ErrServiceUnavailable means the backend answered with a server error.
	ErrServiceUnavailable = errors.New("ai: service unavailable")
	// ErrNetworkFailure means the backend could not be reached.
	ErrNetworkFailure = errors.New("ai: network failure")
	// ErrMalformedResponse means the reply could not be parsed or validated.
	ErrMalformedResponse = errors.New("ai: malformed response")
)

// Operation names used in error messages and metrics.
const (
	OpChat      = "AI Chat"
	OpPreDev    = "Pre-Dev Analysis"
	OpTestCases = "Test Cases"
	OpTitle     = "Title Generation"
)

// Error is a failed AI operation. Kind is one of the package sentinels, or
// nil for failures that fit none of them.
type Error struct {
	Op       string
	Kind     error
	Provider ProviderName
	Status   int
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("Error in %s: %s", e.Op, e.message())
}

func (e *Error) message() string {
	switch e.Kind {
	case ErrCredentialMissing:
		return "API Key not set. Please set it in Settings."
	case ErrAuthenticationFailed:
		return fmt.Sprintf("Invalid Authentication: Your %s API key is incorrect or has expired.", e.Provider.Display())
	case ErrRateLimited:
		return fmt.Sprintf("Rate Limit Exceeded: You have exceeded your API quota. Please check your %s account or try again later.", e.Provider.Display())
	case ErrServiceUnavailable:
		return fmt.Sprintf("Server Error: %s's servers are currently unavailable. Please try again later.", e.Provider.Display())
	case ErrNetworkFailure:
		return "Network Error: Could not connect to the API. Please check your internet connection."
	case ErrMalformedResponse:
		// Detail holds parser output; it is logged, never shown.
		return "The AI's response was not in the expected format. Please try again."
	}
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// statusKind maps a failed reply to an error kind. Unlisted statuses are
// unclassified. Gemini rejects a bad key with 400 rather than 401.
func statusKind(status int, body []byte) error {
	switch status {
	case 400:
		if invalidAPIKey(body) {
			return ErrAuthenticationFailed
		}
	case 401, 403:
		return ErrAuthenticationFailed
	case 429:
		return ErrRateLimited
	case 500, 502, 503, 504:
		return ErrServiceUnavailable
	}
	return nil
}

func invalidAPIKey(body []byte) bool {
	b := string(body)
	return strings.Contains(b, "API_KEY_INVALID") || strings.Contains(b, "API key not valid")
}

// Outcome returns a short label for err, used as a metrics dimension.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCredentialMissing):
		return "credential_missing"
	case errors.Is(err, ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNetworkFailure):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	}
	return "error"
}
