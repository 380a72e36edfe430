package llm

import "fmt"

// TimeoutError reports the provider call exceeding its deadline.
type TimeoutError struct {
	Provider string
	Cause    error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("%s: timeout: %v", e.Provider, e.Cause) }
func (e *TimeoutError) Unwrap() error { return e.Cause }

// RateLimitedError reports a provider rate-limit rejection. Retryable; the
// node executor retries it immediately, with no backoff delay between
// attempts.
type RateLimitedError struct {
	Provider   string
	RetryAfter string
	Cause      error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Cause)
}
func (e *RateLimitedError) Unwrap() error { return e.Cause }

// AuthError reports an authentication or authorization failure. Fatal: the
// node executor does not retry these.
type AuthError struct {
	Provider string
	Cause    error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s: auth error: %v", e.Provider, e.Cause) }
func (e *AuthError) Unwrap() error { return e.Cause }

// ProviderError reports any other provider-side failure (5xx, malformed
// response envelope). Retryable a bounded number of times.
type ProviderError struct {
	Provider string
	Cause    error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("%s: provider error: %v", e.Provider, e.Cause) }
func (e *ProviderError) Unwrap() error { return e.Cause }

// ValidationError reports that the provider's structured output did not
// parse against the requested StructuredType. Retryable with a clarified
// retry prompt naming the expected schema.
type ValidationError struct {
	Provider string
	Expected string
	Cause    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: structured output did not match %s: %v", e.Provider, e.Expected, e.Cause)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// Retryable reports whether err belongs to a taxonomy class the node
// executor should retry (RateLimited, ProviderError, ValidationError).
// AuthError is never retryable; Timeout is left to the caller's own
// context deadline handling.
func Retryable(err error) bool {
	switch err.(type) {
	case *RateLimitedError, *ProviderError, *ValidationError:
		return true
	default:
		return false
	}
}
