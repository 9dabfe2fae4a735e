// Package ratelimit provides the two throttles the sync engine needs to be a
// polite consumer of the Library of Congress API.
//
// IntervalGate spaces outbound API requests by a minimum delay. One gate is
// constructed per run and shared by every API call, so the spacing holds no
// matter how many callers there are.
//
// TokenBucket caps image downloads to a per-minute budget and is independent
// of the API gate, since the image tile service is rate limited separately
// from the JSON API.
package ratelimit
