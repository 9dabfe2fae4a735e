// Package api serves synced quilt records over a read-only HTTP API.
//
// Endpoints: collection stats with recent sync runs, paged record listing
// with whitelisted sort columns, substring search over names and text
// fields, and single record lookup by item id. All responses are JSON.
package api
