// Package retry provides exponential backoff and retry logic for handling
// transient failures in network operations against the Library of Congress
// API and its image services.
//
// The same policy is shared by the API client and the image fetcher so that
// retry behavior is configured in one place:
//
//	cfg := &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		RetryIf:     retry.DefaultRetryIf,
//		Context:     ctx,
//	}
//	err := retry.Do(operation, cfg)
//
// Rate-limit responses (HTTP 429) and transient network failures are
// retryable; malformed payloads and 404s are not.
package retry
