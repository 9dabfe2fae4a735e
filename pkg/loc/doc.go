// Package loc provides a client for the Library of Congress JSON API,
// scoped to the AIDS Memorial Quilt Records collection.
//
// The client fetches collection search pages and individual item records,
// and downloads image files. Every request waits on a shared rate gate
// before going out, and transient failures (network errors, 429s, 5xx
// responses) are retried with exponential backoff. Malformed responses
// and 404s fail immediately.
//
// Usage:
//
//	gate := ratelimit.NewIntervalGate(time.Second)
//	client := loc.NewClient(30*time.Second, gate, 3, log)
//	page, err := client.FetchPage(ctx, 1)
package loc
