package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"quiltsync/pkg/models"
)

// Status classifies a record against its stored fingerprint
type Status string

const (
	StatusNew       Status = "new"
	StatusChanged   Status = "changed"
	StatusUnchanged Status = "unchanged"
)

// Hash computes the content fingerprint of a record's metadata. Multi-valued
// fields are hashed in sorted order so reordering by the API does not count
// as a change, and map marshaling gives a stable key order. The record
// itself is not modified.
func Hash(rec *models.Record) string {
	content := map[string]interface{}{
		"title":          rec.Title,
		"description":    rec.Description,
		"subjects":       sortedCopy(rec.Subjects),
		"contributors":   sortedCopy(rec.Contributors),
		"memorial_names": sortedCopy(rec.MemorialNames),
		"date_created":   rec.DateCreated,
		"location":       rec.Location,
		"image_urls":     sortedCopy(rec.ImageURLs),
	}

	// Marshaling a map of strings and string slices cannot fail
	data, _ := json.Marshal(content)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Classify compares freshly fetched metadata against the stored hash and
// returns the record's status along with the new hash.
func Classify(existingHash string, rec *models.Record) (Status, string) {
	h := Hash(rec)
	switch {
	case existingHash == "":
		return StatusNew, h
	case existingHash != h:
		return StatusChanged, h
	default:
		return StatusUnchanged, h
	}
}

func sortedCopy(s []string) []string {
	if len(s) == 0 {
		// Empty and nil hash identically
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}
