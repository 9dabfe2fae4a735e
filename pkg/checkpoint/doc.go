// Package checkpoint provides functionality for saving and resuming scrape progress.
//
// The checkpoint system allows a full scrape to resume after interruptions
// such as network failures, rate limits, or manual stops. It tracks:
//   - Last processed search page
//   - Last quilt block in direct block-range mode
//   - Items processed so far
//
// One checkpoint file lives under the configured output directory. It is
// saved atomically to prevent corruption and includes versioning for future
// compatibility. A checkpoint is deleted when the run completes cleanly.
package checkpoint
