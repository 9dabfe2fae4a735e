package models

import "time"

// Record is one quilt record tracked by the sync engine. Multi-valued
// fields keep the order the API returned them in.
type Record struct {
	ItemID           string    `json:"item_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Subjects         []string  `json:"subjects"`
	Contributors     []string  `json:"contributors"`
	MemorialNames    []string  `json:"memorial_names"`
	DateCreated      string    `json:"date_created"`
	Location         string    `json:"location"`
	BlockNumber      string    `json:"block_number,omitempty"`
	SourceURL        string    `json:"source_url"`
	ImageURLs        []string  `json:"image_urls"`
	ResourceURLs     []string  `json:"resource_urls,omitempty"`
	Formats          []string  `json:"formats,omitempty"`
	LocalImagePaths  []string  `json:"local_image_paths,omitempty"`
	ImagesDownloaded bool      `json:"images_downloaded"`
	MetadataComplete bool      `json:"metadata_complete"`
	ContentHash      string    `json:"content_hash"`
	FirstSeen        time.Time `json:"first_seen"`
	LastChecked      time.Time `json:"last_checked"`
	LastUpdated      time.Time `json:"last_updated"`
}

// SyncRun records one execution of the sync engine
type SyncRun struct {
	ID               string     `json:"id"`
	Mode             string     `json:"mode"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	ItemsProcessed   int        `json:"items_processed"`
	ItemsNew         int        `json:"items_new"`
	ItemsChanged     int        `json:"items_changed"`
	ItemsUnchanged   int        `json:"items_unchanged"`
	ItemsFailed      int        `json:"items_failed"`
	ImagesDownloaded int        `json:"images_downloaded"`
	ImageFailures    int        `json:"image_failures"`
	Status           string     `json:"status"`
}

// Stats summarizes the collection as stored locally
type Stats struct {
	TotalRecords         int        `json:"total_records"`
	RecordsWithImages    int        `json:"records_with_images"`
	RecordsMissingImages int        `json:"records_missing_images"`
	TotalImageURLs       int        `json:"total_image_urls"`
	UniqueBlocks         int        `json:"unique_blocks"`
	OldestCheck          *time.Time `json:"oldest_check,omitempty"`
	NewestUpdate         *time.Time `json:"newest_update,omitempty"`
}
