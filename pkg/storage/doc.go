// Package storage provides image file management for the quilt sync engine.
//
// The storage package handles:
//   - Creating and managing the per-block image directory tree
//   - Saving images with atomic write operations
//   - Detecting already-downloaded images
//   - Deriving stable filenames from loc.gov image URLs
//
// The Manager type is the primary interface for storage operations. It
// maintains an in-memory cache of downloaded files for fast duplicate
// detection and writes through a temporary file plus rename so a crash
// never leaves a partial image behind.
//
// Usage:
//
//	manager, err := storage.NewManager("output/images")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !manager.IsDownloaded(itemID, imageURL) {
//	    path, err := manager.SaveImage(data, itemID, imageURL)
//	    if err != nil {
//	        log.Printf("Failed to save image: %v", err)
//	    }
//	}
package storage
