package downloader

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"quiltsync/pkg/errors"
	"quiltsync/pkg/logger"
	"quiltsync/pkg/ratelimit"
	"quiltsync/pkg/retry"
)

// ImageSource downloads raw image bytes
type ImageSource interface {
	DownloadImage(ctx context.Context, url string) ([]byte, string, error)
}

// ImageStorage stores downloaded images
type ImageStorage interface {
	IsDownloaded(itemID, url string) bool
	ImagePath(itemID, url string) string
	SaveImage(data []byte, itemID, url string) (string, error)
}

// Result is the outcome of one image URL
type Result struct {
	URL       string
	LocalPath string
	Size      int
	Duration  time.Duration
	Skipped   bool
	Err       error
}

// Fetcher downloads an item's images concurrently. One URL failing never
// fails the others; callers inspect the per-URL results.
type Fetcher struct {
	source      ImageSource
	storage     ImageStorage
	limiter     ratelimit.Limiter
	concurrency int
	retrier     *retry.Retrier
	logger      logger.Logger
}

// NewFetcher creates an image fetcher. concurrency bounds simultaneous
// downloads; the limiter enforces the images-per-minute politeness budget.
func NewFetcher(
	source ImageSource,
	storage ImageStorage,
	limiter ratelimit.Limiter,
	concurrency int,
	maxAttempts int,
	log logger.Logger,
) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Fetcher{
		source:      source,
		storage:     storage,
		limiter:     limiter,
		concurrency: concurrency,
		retrier:     retry.NewRetrier(nil).WithMaxAttempts(maxAttempts),
		logger:      log,
	}
}

// WithBackoff replaces the retry backoff strategy
func (f *Fetcher) WithBackoff(b retry.BackoffStrategy) *Fetcher {
	f.retrier = f.retrier.WithBackoff(b)
	return f
}

// FetchItem downloads all image URLs for one item and returns a result per
// URL, in input order.
func (f *Fetcher) FetchItem(ctx context.Context, itemID string, urls []string) []Result {
	results := make([]Result, len(urls))

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, itemID, url)
			return nil
		})
	}
	g.Wait()

	downloaded, skipped, failed := Summarize(results)
	f.logger.DebugWithFields("item images processed", map[string]interface{}{
		"item_id":    itemID,
		"downloaded": downloaded,
		"skipped":    skipped,
		"failed":     failed,
	})

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, itemID, url string) Result {
	start := time.Now()
	result := Result{URL: url}

	if f.storage.IsDownloaded(itemID, url) {
		result.LocalPath = f.storage.ImagePath(itemID, url)
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	var data []byte
	err := f.retrier.WithContext(ctx).Do(func() error {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		bytes, contentType, err := f.source.DownloadImage(ctx, url)
		if err != nil {
			return err
		}
		if err := Validate(bytes, url, contentType); err != nil {
			return err
		}
		data = bytes
		return nil
	})
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		logger.LogImageDownload(itemID, url, false, result.Err)
		return result
	}

	path, err := f.storage.SaveImage(data, itemID, url)
	if err != nil {
		result.Err = errors.Newf(errors.ErrorTypeFilesystem, "save %s: %v", url, err)
		result.Duration = time.Since(start)
		logger.LogImageDownload(itemID, url, false, result.Err)
		return result
	}

	result.LocalPath = path
	result.Size = len(data)
	result.Duration = time.Since(start)
	logger.LogImageDownload(itemID, url, true, nil)
	return result
}

// Summarize counts downloads, skips and failures in a result set
func Summarize(results []Result) (downloaded, skipped, failed int) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		default:
			downloaded++
		}
	}
	return downloaded, skipped, failed
}

// LocalPaths returns the paths of every successful or skipped result
func LocalPaths(results []Result) []string {
	var paths []string
	for _, r := range results {
		if r.Err == nil && r.LocalPath != "" {
			paths = append(paths, r.LocalPath)
		}
	}
	return paths
}
