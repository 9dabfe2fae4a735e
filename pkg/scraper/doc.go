// Package scraper orchestrates sync runs against the quilt records
// collection.
//
// A run moves through init, paging, processing and done states. Full runs
// paginate the collection search (or walk a configured block range
// directly); incremental runs refresh records whose last check has gone
// stale. Each item is fetched, extracted into a Record, classified against
// the stored content hash, and persisted. New and changed records are
// upserted and optionally have their images downloaded; unchanged records
// only get their last-checked timestamp bumped.
//
// Item-level failures are logged and counted but never abort the run.
// Store errors and context cancellation do; a cancelled run records an
// "interrupted" status while only store errors mark it "failed". Item and
// time budgets are checked between items, so hitting one ends the run
// cleanly with a partial summary persisted to sync_runs.
package scraper
