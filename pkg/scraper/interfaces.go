package scraper

import (
	"context"
	"time"

	"quiltsync/internal/downloader"
	"quiltsync/pkg/loc"
	"quiltsync/pkg/models"
)

// CollectionClient fetches collection pages and items from the API
type CollectionClient interface {
	FetchPage(ctx context.Context, page int) (*loc.SearchPage, error)
	FetchItem(ctx context.Context, itemID string) (*loc.ItemPayload, error)
}

// RecordStore persists records and sync runs
type RecordStore interface {
	Get(ctx context.Context, itemID string) (*models.Record, error)
	Upsert(ctx context.Context, rec *models.Record) error
	Touch(ctx context.Context, itemID string, at time.Time) error
	MarkImagesDownloaded(ctx context.Context, itemID string, paths []string) error
	FindStale(ctx context.Context, olderThan time.Time) ([]string, error)
	RecordsWithoutImages(ctx context.Context) ([]string, error)
	StartRun(ctx context.Context, mode string) (*models.SyncRun, error)
	FinishRun(ctx context.Context, run *models.SyncRun) error
}

// ImageFetcher downloads an item's images
type ImageFetcher interface {
	FetchItem(ctx context.Context, itemID string, urls []string) []downloader.Result
}
