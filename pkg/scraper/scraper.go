package scraper

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"quiltsync/internal/downloader"
	"quiltsync/pkg/checkpoint"
	"quiltsync/pkg/config"
	"quiltsync/pkg/errors"
	"quiltsync/pkg/fingerprint"
	"quiltsync/pkg/loc"
	"quiltsync/pkg/logger"
	"quiltsync/pkg/metadata"
	"quiltsync/pkg/models"
	"quiltsync/pkg/ratelimit"
	"quiltsync/pkg/storage"
	"quiltsync/pkg/store"
)

// State is the lifecycle state of a sync run
type State string

const (
	StateInit       State = "init"
	StatePaging     State = "paging"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Run modes stored in sync_runs
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Scraper orchestrates sync runs against the quilt records collection
type Scraper struct {
	client        CollectionClient
	store         RecordStore
	images        ImageFetcher
	config        *config.Config
	checkpointMgr *checkpoint.Manager
	logger        logger.Logger
	state         State

	// owned resources, set when built via New
	db *store.Store
}

// New builds a fully wired Scraper from configuration: API client behind a
// shared request gate, SQLite store, image storage and the bounded image
// fetcher. Close must be called when done.
func New(cfg *config.Config) (*Scraper, error) {
	log := logger.GetLogger()

	gate := ratelimit.NewIntervalGate(cfg.RateLimit.RequestDelay)
	client := loc.NewClient(
		cfg.LOC.RequestTimeout,
		gate,
		cfg.RateLimit.MaxRetries,
		log,
		loc.WithBaseURL(cfg.LOC.BaseURL),
		loc.WithCollection(cfg.LOC.Collection),
		loc.WithItemsPerPage(cfg.LOC.ItemsPerPage),
	)
	if cfg.LOC.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.LOC.UserAgent)
	}

	db, err := store.Open(cfg.Output.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	storageManager, err := storage.NewManager(cfg.Output.ImagesDir())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	imageBudget := ratelimit.NewTokenBucket(cfg.Download.ImagesPerMinute, time.Minute)
	fetcher := downloader.NewFetcher(
		client,
		storageManager,
		imageBudget,
		cfg.Download.ConcurrentDownloads,
		cfg.RateLimit.MaxRetries,
		log,
	)

	checkpointMgr, err := checkpoint.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	return &Scraper{
		client:        client,
		store:         db,
		images:        fetcher,
		config:        cfg,
		checkpointMgr: checkpointMgr,
		logger:        log,
		state:         StateInit,
		db:            db,
	}, nil
}

// NewWithDeps builds a Scraper from explicit dependencies, used by tests
// and by callers that manage their own store lifetime.
func NewWithDeps(
	client CollectionClient,
	recordStore RecordStore,
	images ImageFetcher,
	cfg *config.Config,
	log logger.Logger,
) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{
		client: client,
		store:  recordStore,
		images: images,
		config: cfg,
		logger: log,
		state:  StateInit,
	}
}

// Close releases resources owned by the scraper
func (s *Scraper) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// State returns the current run state
func (s *Scraper) State() State {
	return s.state
}

// FullScrape walks the whole collection. With an end block configured it
// fetches items directly by block number instead of paginating the search.
// Budget exhaustion ends the run cleanly with a partial summary.
func (s *Scraper) FullScrape(ctx context.Context) (*models.SyncRun, error) {
	run, err := s.store.StartRun(ctx, ModeFull)
	if err != nil {
		s.state = StateFailed
		return nil, err
	}

	start := time.Now()
	s.logger.InfoWithFields("starting full scrape", map[string]interface{}{
		"run_id":      run.ID,
		"max_items":   s.config.Sync.MaxItems,
		"time_budget": s.config.Sync.TimeBudget.String(),
	})

	if s.config.Sync.EndBlock > 0 {
		err = s.scrapeBlockRange(ctx, run, start)
	} else {
		err = s.scrapePages(ctx, run, start)
	}

	if err == nil {
		err = s.retryMissingImages(ctx, run, start)
	}

	return s.finish(ctx, run, err)
}

// Incremental refreshes records whose last check is older than the
// staleness threshold, oldest first.
func (s *Scraper) Incremental(ctx context.Context) (*models.SyncRun, error) {
	run, err := s.store.StartRun(ctx, ModeIncremental)
	if err != nil {
		s.state = StateFailed
		return nil, err
	}

	start := time.Now()
	cutoff := start.Add(-s.config.Sync.StaleAfter)

	stale, err := s.store.FindStale(ctx, cutoff)
	if err != nil {
		return s.finish(ctx, run, err)
	}

	s.logger.InfoWithFields("starting incremental sync", map[string]interface{}{
		"run_id":      run.ID,
		"stale_count": len(stale),
		"cutoff":      cutoff,
	})

	s.state = StateProcessing
	err = nil
	for i, itemID := range stale {
		if stop, serr := s.budgetOrCancel(ctx, run, start); stop || serr != nil {
			err = serr
			break
		}

		if perr := s.processItemID(ctx, run, itemID); perr != nil {
			err = perr
			break
		}

		if (i+1)%25 == 0 {
			logger.LogSyncProgress(ModeIncremental, i+1, len(stale))
		}
	}

	if err == nil {
		err = s.retryMissingImages(ctx, run, start)
	}

	return s.finish(ctx, run, err)
}

// retryMissingImages picks up records whose image downloads previously
// failed or were skipped and tries them again.
func (s *Scraper) retryMissingImages(ctx context.Context, run *models.SyncRun, start time.Time) error {
	if !s.config.Sync.DownloadImages || s.images == nil {
		return nil
	}

	missing, err := s.store.RecordsWithoutImages(ctx)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	s.logger.InfoWithFields("retrying missing images", map[string]interface{}{
		"records": len(missing),
	})

	for _, itemID := range missing {
		if stop, err := s.budgetOrCancel(ctx, run, start); stop || err != nil {
			return err
		}

		rec, err := s.store.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if rec == nil || len(rec.ImageURLs) == 0 {
			continue
		}

		results := s.images.FetchItem(ctx, itemID, rec.ImageURLs)
		downloaded, _, failed := downloader.Summarize(results)
		run.ImagesDownloaded += downloaded
		run.ImageFailures += failed

		if paths := downloader.LocalPaths(results); len(paths) > 0 {
			if err := s.store.MarkImagesDownloaded(ctx, itemID, paths); err != nil {
				return err
			}
		}
	}
	return nil
}

// scrapePages paginates the collection search, resuming from a checkpoint
// when one exists.
func (s *Scraper) scrapePages(ctx context.Context, run *models.SyncRun, start time.Time) error {
	s.state = StatePaging

	page := 1
	var cp *checkpoint.Checkpoint
	if s.checkpointMgr != nil {
		var err error
		cp, err = s.checkpointMgr.Load()
		if err != nil {
			s.logger.WithError(err).Warn("ignoring unreadable checkpoint")
			cp = nil
		}
		if cp != nil && cp.Mode == ModeFull && cp.LastPage > 0 {
			page = cp.LastPage + 1
			s.logger.InfoWithFields("resuming full scrape", map[string]interface{}{
				"page": page,
			})
		}
		if cp == nil {
			cp, _ = s.checkpointMgr.Create(ModeFull)
		}
	}

	for {
		if stop, err := s.budgetOrCancel(ctx, run, start); stop || err != nil {
			return err
		}

		searchPage, err := s.client.FetchPage(ctx, page)
		if err != nil {
			// A page that cannot be fetched after retries fails the run:
			// skipping it would silently drop a whole window of items.
			return err
		}

		s.state = StateProcessing
		for _, item := range searchPage.Items {
			if stop, err := s.budgetOrCancel(ctx, run, start); stop || err != nil {
				return err
			}

			if err := s.processPayload(ctx, run, &item, true); err != nil {
				return err
			}
		}
		s.state = StatePaging

		if s.checkpointMgr != nil && cp != nil {
			if err := s.checkpointMgr.UpdateProgress(cp, page, 0, run.ItemsProcessed); err != nil {
				s.logger.WithError(err).Warn("failed to update checkpoint")
			}
		}

		logger.LogSyncProgress(ModeFull, run.ItemsProcessed, searchPage.TotalItems)

		if !searchPage.HasMore {
			break
		}
		page++
	}

	// Finished the whole collection, the checkpoint has served its purpose
	if s.checkpointMgr != nil {
		if err := s.checkpointMgr.Delete(); err != nil {
			s.logger.WithError(err).Warn("failed to delete checkpoint")
		}
	}
	return nil
}

// scrapeBlockRange fetches items directly by quilt block number
func (s *Scraper) scrapeBlockRange(ctx context.Context, run *models.SyncRun, start time.Time) error {
	s.state = StateProcessing

	startBlock := s.config.Sync.StartBlock
	if startBlock < 1 {
		startBlock = 1
	}

	s.logger.InfoWithFields("scraping block range", map[string]interface{}{
		"start_block": startBlock,
		"end_block":   s.config.Sync.EndBlock,
	})

	for block := startBlock; block <= s.config.Sync.EndBlock; block++ {
		if stop, err := s.budgetOrCancel(ctx, run, start); stop || err != nil {
			return err
		}

		if err := s.processItemID(ctx, run, loc.FormatItemID(block)); err != nil {
			return err
		}
	}
	return nil
}

// processItemID fetches an item by id and processes it. Missing blocks are
// normal in direct-id mode and are not counted as failures.
func (s *Scraper) processItemID(ctx context.Context, run *models.SyncRun, itemID string) error {
	payload, err := s.client.FetchItem(ctx, itemID)
	if err != nil {
		var apiErr *errors.Error
		if stderrors.As(err, &apiErr) {
			if apiErr.Type == errors.ErrorTypeNotFound {
				s.logger.DebugWithFields("item does not exist", map[string]interface{}{
					"item_id": itemID,
				})
				return nil
			}
			if !errors.IsFatal(apiErr.Type) {
				s.countFailure(run, itemID, err)
				return nil
			}
		}
		return err
	}

	return s.processPayload(ctx, run, payload, false)
}

// processPayload runs one item through extract, classify and persist.
// Item-level failures are counted and contained; only store errors and
// cancellation propagate.
func (s *Scraper) processPayload(ctx context.Context, run *models.SyncRun, payload *loc.ItemPayload, summary bool) error {
	rec := metadata.Extract(payload)
	if rec.ItemID == "" {
		s.countFailure(run, "", errors.New(errors.ErrorTypeMalformed, "payload has no item id"))
		return nil
	}

	// Search results lack the resources block; fetch the full item when we
	// only have a summary so stored metadata is complete.
	if summary && len(payload.Resources) == 0 && len(rec.ImageURLs) == 0 {
		full, err := s.client.FetchItem(ctx, rec.ItemID)
		if err != nil {
			var apiErr *errors.Error
			if stderrors.As(err, &apiErr) && !errors.IsFatal(apiErr.Type) {
				s.countFailure(run, rec.ItemID, err)
				return nil
			}
			return err
		}
		rec = metadata.Extract(full)
	}
	rec.MetadataComplete = true

	existing, err := s.store.Get(ctx, rec.ItemID)
	if err != nil {
		return err
	}
	existingHash := ""
	if existing != nil {
		existingHash = existing.ContentHash
	}

	status, hash := fingerprint.Classify(existingHash, rec)
	run.ItemsProcessed++

	switch status {
	case fingerprint.StatusUnchanged:
		run.ItemsUnchanged++
		return s.store.Touch(ctx, rec.ItemID, time.Now().UTC())

	case fingerprint.StatusNew:
		run.ItemsNew++
	case fingerprint.StatusChanged:
		run.ItemsChanged++
	}

	rec.ContentHash = hash
	if err := s.store.Upsert(ctx, rec); err != nil {
		return err
	}

	s.logger.InfoWithFields("record stored", map[string]interface{}{
		"item_id": rec.ItemID,
		"status":  string(status),
		"images":  len(rec.ImageURLs),
	})

	if s.config.Sync.DownloadImages && len(rec.ImageURLs) > 0 && s.images != nil {
		results := s.images.FetchItem(ctx, rec.ItemID, rec.ImageURLs)
		downloaded, _, failed := downloader.Summarize(results)
		run.ImagesDownloaded += downloaded
		run.ImageFailures += failed

		if paths := downloader.LocalPaths(results); len(paths) > 0 {
			if err := s.store.MarkImagesDownloaded(ctx, rec.ItemID, paths); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Scraper) countFailure(run *models.SyncRun, itemID string, err error) {
	run.ItemsProcessed++
	run.ItemsFailed++
	s.logger.ErrorWithFields("item failed", map[string]interface{}{
		"item_id": itemID,
		"error":   err.Error(),
	})
}

// budgetOrCancel reports whether the run should stop cleanly (budget
// exhausted) or with an error (cancelled). Checked between items only, so
// an in-flight item always completes.
func (s *Scraper) budgetOrCancel(ctx context.Context, run *models.SyncRun, start time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if max := s.config.Sync.MaxItems; max > 0 && run.ItemsProcessed >= max {
		s.logger.InfoWithFields("item budget reached", map[string]interface{}{
			"max_items": max,
		})
		return true, nil
	}
	if budget := s.config.Sync.TimeBudget; budget > 0 && time.Since(start) >= budget {
		s.logger.InfoWithFields("time budget reached", map[string]interface{}{
			"time_budget": budget.String(),
			"elapsed":     time.Since(start).String(),
		})
		return true, nil
	}
	return false, nil
}

// finish settles the run state, persists the summary and logs it.
// An operator interrupt is not an infrastructure failure, so
// cancellation gets its own status rather than "failed".
func (s *Scraper) finish(ctx context.Context, run *models.SyncRun, runErr error) (*models.SyncRun, error) {
	switch {
	case runErr == nil:
		s.state = StateDone
		run.Status = "completed"
	case stderrors.Is(runErr, context.Canceled) || stderrors.Is(runErr, context.DeadlineExceeded):
		s.state = StateDone
		run.Status = "interrupted"
	default:
		s.state = StateFailed
		run.Status = "failed"
	}

	// The run context may already be cancelled; the summary write must not
	// be lost with it.
	if err := s.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.WithError(err).Error("failed to persist run summary")
		if runErr == nil {
			runErr = err
		}
	}

	s.logger.InfoWithFields("sync run finished", map[string]interface{}{
		"run_id":            run.ID,
		"mode":              run.Mode,
		"status":            run.Status,
		"items_processed":   run.ItemsProcessed,
		"items_new":         run.ItemsNew,
		"items_changed":     run.ItemsChanged,
		"items_unchanged":   run.ItemsUnchanged,
		"items_failed":      run.ItemsFailed,
		"images_downloaded": run.ImagesDownloaded,
		"image_failures":    run.ImageFailures,
	})

	return run, runErr
}
