package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"quiltsync/pkg/errors"
	"quiltsync/pkg/models"
)

// Store wraps the SQLite database holding records and sync runs
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// configures WAL mode. SQLite has a single writer, so the pool is capped
// at one connection.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Newf(errors.ErrorTypeStore, "create database directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "open database: %v", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Newf(errors.ErrorTypeStore, "exec %s: %v", pragma, err)
		}
	}

	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS records (
	item_id           TEXT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	subjects          TEXT NOT NULL DEFAULT '[]',
	contributors      TEXT NOT NULL DEFAULT '[]',
	memorial_names    TEXT NOT NULL DEFAULT '[]',
	date_created      TEXT NOT NULL DEFAULT '',
	location          TEXT NOT NULL DEFAULT '',
	block_number      TEXT NOT NULL DEFAULT '',
	source_url        TEXT NOT NULL DEFAULT '',
	image_urls        TEXT NOT NULL DEFAULT '[]',
	resource_urls     TEXT NOT NULL DEFAULT '[]',
	formats           TEXT NOT NULL DEFAULT '[]',
	local_image_paths TEXT NOT NULL DEFAULT '[]',
	images_downloaded INTEGER NOT NULL DEFAULT 0,
	metadata_complete INTEGER NOT NULL DEFAULT 0,
	content_hash      TEXT NOT NULL,
	first_seen        DATETIME NOT NULL,
	last_checked      DATETIME NOT NULL,
	last_updated      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_last_checked ON records(last_checked);
CREATE INDEX IF NOT EXISTS idx_records_last_updated ON records(last_updated);
CREATE INDEX IF NOT EXISTS idx_records_content_hash ON records(content_hash);
CREATE INDEX IF NOT EXISTS idx_records_block_number ON records(block_number);

CREATE TABLE IF NOT EXISTS sync_runs (
	id                TEXT PRIMARY KEY,
	mode              TEXT NOT NULL,
	started_at        DATETIME NOT NULL,
	finished_at       DATETIME,
	items_processed   INTEGER NOT NULL DEFAULT 0,
	items_new         INTEGER NOT NULL DEFAULT 0,
	items_changed     INTEGER NOT NULL DEFAULT 0,
	items_unchanged   INTEGER NOT NULL DEFAULT 0,
	items_failed      INTEGER NOT NULL DEFAULT 0,
	images_downloaded INTEGER NOT NULL DEFAULT 0,
	image_failures    INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
`

// Migrate creates the schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return errors.Newf(errors.ErrorTypeStore, "migrate: %v", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes a record inside a transaction. A new record gets
// first_seen set; an existing one keeps it. local_image_paths is only
// written through MarkImagesDownloaded so a metadata refresh does not
// clobber it; images_downloaded survives the refresh only while the
// image URL set is unchanged, and resets to 0 when it differs so the
// record is picked up by RecordsWithoutImages again.
func (s *Store) Upsert(ctx context.Context, rec *models.Record) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Newf(errors.ErrorTypeStore, "begin upsert: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (
			item_id, title, description, subjects, contributors, memorial_names,
			date_created, location, block_number, source_url,
			image_urls, resource_urls, formats,
			metadata_complete, content_hash,
			first_seen, last_checked, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			title             = excluded.title,
			description       = excluded.description,
			subjects          = excluded.subjects,
			contributors      = excluded.contributors,
			memorial_names    = excluded.memorial_names,
			date_created      = excluded.date_created,
			location          = excluded.location,
			block_number      = excluded.block_number,
			source_url        = excluded.source_url,
			image_urls        = excluded.image_urls,
			resource_urls     = excluded.resource_urls,
			formats           = excluded.formats,
			metadata_complete = excluded.metadata_complete,
			content_hash      = excluded.content_hash,
			images_downloaded = CASE
				WHEN records.image_urls = excluded.image_urls THEN records.images_downloaded
				ELSE 0
			END,
			last_checked      = excluded.last_checked,
			last_updated      = excluded.last_updated`,
		rec.ItemID, rec.Title, rec.Description,
		encodeStrings(rec.Subjects), encodeStrings(rec.Contributors), encodeStrings(rec.MemorialNames),
		rec.DateCreated, rec.Location, rec.BlockNumber, rec.SourceURL,
		encodeStrings(rec.ImageURLs), encodeStrings(rec.ResourceURLs), encodeStrings(rec.Formats),
		rec.MetadataComplete, rec.ContentHash,
		now, now, now,
	)
	if err != nil {
		return errors.Newf(errors.ErrorTypeStore, "upsert %s: %v", rec.ItemID, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Newf(errors.ErrorTypeStore, "commit upsert %s: %v", rec.ItemID, err)
	}
	return nil
}

// Touch bumps last_checked for an unchanged record
func (s *Store) Touch(ctx context.Context, itemID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET last_checked = ? WHERE item_id = ?`,
		at.UTC(), itemID,
	)
	if err != nil {
		return errors.Newf(errors.ErrorTypeStore, "touch %s: %v", itemID, err)
	}
	return checkRowsAffected(res, itemID)
}

// MarkImagesDownloaded records which image files were written for an item.
// The record counts as fully downloaded when every image URL produced a
// local path.
func (s *Store) MarkImagesDownloaded(ctx context.Context, itemID string, paths []string) error {
	rec, err := s.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Newf(errors.ErrorTypeStore, "record not found: %s", itemID)
	}

	complete := len(paths) > 0 && len(paths) >= len(rec.ImageURLs)
	for _, p := range paths {
		if p == "" {
			complete = false
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET local_image_paths = ?, images_downloaded = ? WHERE item_id = ?`,
		encodeStrings(paths), complete, itemID,
	)
	if err != nil {
		return errors.Newf(errors.ErrorTypeStore, "mark images %s: %v", itemID, err)
	}
	return checkRowsAffected(res, itemID)
}

const recordColumns = `item_id, title, description, subjects, contributors, memorial_names,
	date_created, location, block_number, source_url,
	image_urls, resource_urls, formats, local_image_paths,
	images_downloaded, metadata_complete, content_hash,
	first_seen, last_checked, last_updated`

// Get fetches a record by item id, returning (nil, nil) when absent
func (s *Store) Get(ctx context.Context, itemID string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE item_id = ?`, itemID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "get %s: %v", itemID, err)
	}
	return rec, nil
}

// FindStale returns item ids whose last check is older than the cutoff,
// oldest first, so interrupted incremental runs pick up where they left off.
func (s *Store) FindStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM records WHERE last_checked < ? ORDER BY last_checked ASC`,
		olderThan.UTC(),
	)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "find stale: %v", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// RecordsWithoutImages returns item ids that have image URLs but no
// complete local copy.
func (s *Store) RecordsWithoutImages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM records
		 WHERE images_downloaded = 0 AND json_array_length(image_urls) > 0
		 ORDER BY item_id`,
	)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "records without images: %v", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// Stats summarizes the stored collection
func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	var oldest, newest sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(images_downloaded), 0),
			COALESCE(SUM(json_array_length(image_urls)), 0),
			COUNT(DISTINCT CASE WHEN block_number != '' THEN block_number END),
			MIN(last_checked),
			MAX(last_updated)
		FROM records`,
	).Scan(&stats.TotalRecords, &stats.RecordsWithImages, &stats.TotalImageURLs,
		&stats.UniqueBlocks, &oldest, &newest)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "stats: %v", err)
	}

	stats.RecordsMissingImages = stats.TotalRecords - stats.RecordsWithImages
	if oldest.Valid {
		t := oldest.Time
		stats.OldestCheck = &t
	}
	if newest.Valid {
		t := newest.Time
		stats.NewestUpdate = &t
	}
	return &stats, nil
}

var sortColumns = map[string]string{
	"item_id":      "item_id",
	"title":        "title",
	"block_number": "block_number",
	"first_seen":   "first_seen",
	"last_checked": "last_checked",
	"last_updated": "last_updated",
}

// List returns one page of records plus the total count. sortBy must be a
// known column name, sortOrder "asc" or "desc"; anything else falls back
// to item_id ascending.
func (s *Store) List(ctx context.Context, page, pageSize int, sortBy, sortOrder string) ([]models.Record, int, error) {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = "item_id"
	}
	order := "ASC"
	if strings.EqualFold(sortOrder, "desc") {
		order = "DESC"
	}
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&total); err != nil {
		return nil, 0, errors.Newf(errors.ErrorTypeStore, "count records: %v", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM records ORDER BY %s %s LIMIT ? OFFSET ?`,
		recordColumns, col, order)
	rows, err := s.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, errors.Newf(errors.ErrorTypeStore, "list records: %v", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Search does a LIKE match over title, description, memorial names and
// contributors, returning one page plus the total match count.
func (s *Store) Search(ctx context.Context, q string, page, pageSize int) ([]models.Record, int, error) {
	page, pageSize = normalizePage(page, pageSize)
	pattern := "%" + q + "%"

	where := `WHERE title LIKE ? OR description LIKE ? OR memorial_names LIKE ? OR contributors LIKE ?`
	args := []any{pattern, pattern, pattern, pattern}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records `+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Newf(errors.ErrorTypeStore, "count search: %v", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM records %s ORDER BY item_id LIMIT ? OFFSET ?`,
		recordColumns, where)
	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, errors.Newf(errors.ErrorTypeStore, "search records: %v", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// StartRun inserts a sync_runs row in the running state
func (s *Store) StartRun(ctx context.Context, mode string) (*models.SyncRun, error) {
	run := &models.SyncRun{
		ID:        uuid.New().String(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
		Status:    "running",
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, mode, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Mode, run.StartedAt, run.Status,
	)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "start run: %v", err)
	}
	return run, nil
}

// FinishRun persists the final counters and status for a run
func (s *Store) FinishRun(ctx context.Context, run *models.SyncRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET
			finished_at = ?, items_processed = ?, items_new = ?, items_changed = ?,
			items_unchanged = ?, items_failed = ?, images_downloaded = ?,
			image_failures = ?, status = ?
		WHERE id = ?`,
		now, run.ItemsProcessed, run.ItemsNew, run.ItemsChanged,
		run.ItemsUnchanged, run.ItemsFailed, run.ImagesDownloaded,
		run.ImageFailures, run.Status, run.ID,
	)
	if err != nil {
		return errors.Newf(errors.ErrorTypeStore, "finish run %s: %v", run.ID, err)
	}
	return checkRowsAffected(res, run.ID)
}

// LastRuns returns the most recent sync runs, newest first
func (s *Store) LastRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, started_at, finished_at, items_processed, items_new,
			items_changed, items_unchanged, items_failed, images_downloaded,
			image_failures, status
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "last runs: %v", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Mode, &run.StartedAt, &finished,
			&run.ItemsProcessed, &run.ItemsNew, &run.ItemsChanged, &run.ItemsUnchanged,
			&run.ItemsFailed, &run.ImagesDownloaded, &run.ImageFailures, &run.Status); err != nil {
			return nil, errors.Newf(errors.ErrorTypeStore, "scan run: %v", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "iterate runs: %v", err)
	}
	return runs, nil
}

// helpers

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}
	return page, pageSize
}

func checkRowsAffected(res sql.Result, itemID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Newf(errors.ErrorTypeStore, "rows affected: %v", err)
	}
	if n == 0 {
		return errors.Newf(errors.ErrorTypeStore, "record not found: %s", itemID)
	}
	return nil
}

func encodeStrings(s []string) string {
	if len(s) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(s)
	return string(data)
}

func decodeStrings(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*models.Record, error) {
	var rec models.Record
	var subjects, contributors, memorialNames, imageURLs, resourceURLs, formats, localPaths string

	err := row.Scan(
		&rec.ItemID, &rec.Title, &rec.Description, &subjects, &contributors, &memorialNames,
		&rec.DateCreated, &rec.Location, &rec.BlockNumber, &rec.SourceURL,
		&imageURLs, &resourceURLs, &formats, &localPaths,
		&rec.ImagesDownloaded, &rec.MetadataComplete, &rec.ContentHash,
		&rec.FirstSeen, &rec.LastChecked, &rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	rec.Subjects = decodeStrings(subjects)
	rec.Contributors = decodeStrings(contributors)
	rec.MemorialNames = decodeStrings(memorialNames)
	rec.ImageURLs = decodeStrings(imageURLs)
	rec.ResourceURLs = decodeStrings(resourceURLs)
	rec.Formats = decodeStrings(formats)
	rec.LocalImagePaths = decodeStrings(localPaths)
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	var records []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeStore, "scan record: %v", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "iterate records: %v", err)
	}
	return records, nil
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Newf(errors.ErrorTypeStore, "scan item id: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Newf(errors.ErrorTypeStore, "iterate item ids: %v", err)
	}
	return ids, nil
}
