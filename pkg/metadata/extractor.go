// Package metadata normalizes raw loc.gov item payloads into Records.
// Extraction is pure: no I/O, no mutation of the input payload.
package metadata

import (
	"strconv"
	"strings"

	"quiltsync/pkg/loc"
	"quiltsync/pkg/models"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".tiff", ".tif"}

// subjectNoise filters subject headings that describe the collection rather
// than a memorialized person.
var subjectNoise = []string{"aids", "quilt", "memorial", "disease", "epidemic", "textile"}

// Extract builds a Record from an item payload. Multi-valued fields keep
// the payload's order.
func Extract(payload *loc.ItemPayload) *models.Record {
	itemID := payload.ItemID()

	rec := &models.Record{
		ItemID:        itemID,
		Title:         strings.TrimSpace(payload.Title),
		Description:   strings.TrimSpace(strings.Join(payload.Description, " ")),
		Subjects:      append([]string(nil), payload.Subjects...),
		Contributors:  append([]string(nil), payload.Contributors...),
		DateCreated:   strings.TrimSpace(payload.Date),
		Location:      strings.TrimSpace(strings.Join(payload.Location, "; ")),
		Formats:       append([]string(nil), payload.OriginalFormat...),
		SourceURL:     loc.CanonicalItemURL(itemID),
		BlockNumber:   BlockNumber(itemID, payload.Title),
		MemorialNames: MemorialNames(payload),
		ImageURLs:     ImageURLs(payload),
		ResourceURLs:  resourceURLs(payload),
	}
	if payload.URL != "" {
		rec.SourceURL = payload.URL
	}

	return rec
}

// BlockNumber extracts the quilt block number from the item id suffix, or
// failing that from titles like "AIDS Quilt Block 2621 Panel Maker Records".
// Returns the raw id suffix when neither yields a number.
func BlockNumber(itemID, title string) string {
	suffix := ""
	if idx := strings.LastIndex(itemID, "_"); idx >= 0 && idx < len(itemID)-1 {
		suffix = itemID[idx+1:]
		if n, err := strconv.Atoi(suffix); err == nil {
			return strconv.Itoa(n)
		}
	}

	parts := strings.Fields(title)
	for i, part := range parts {
		if part == "Block" && i+1 < len(parts) {
			if n, err := strconv.Atoi(parts[i+1]); err == nil {
				return strconv.Itoa(n)
			}
		}
	}

	return suffix
}

// MemorialNames pulls names of memorialized people from the description
// ("in memory of ...", "remembering ...") and from subject headings that
// are not collection-level terms. Order of first appearance is kept.
func MemorialNames(payload *loc.ItemPayload) []string {
	var names []string

	for _, desc := range payload.Description {
		names = append(names, namesFromText(desc)...)
	}

	for _, subject := range payload.Subjects {
		if personSubject(subject) {
			names = append(names, strings.TrimSpace(subject))
		}
	}

	return dedupe(names)
}

func personSubject(subject string) bool {
	s := strings.ToLower(subject)
	for _, kw := range subjectNoise {
		if strings.Contains(s, kw) {
			return false
		}
	}
	return strings.TrimSpace(subject) != ""
}

func namesFromText(text string) []string {
	var names []string
	lower := strings.ToLower(text)

	for _, marker := range []string{"in memory of", "remembering"} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		remaining := strings.TrimSpace(text[idx+len(marker):])
		// Take the phrase up to the first clause break
		for _, sep := range []string{".", ",", ";"} {
			if cut := strings.Index(remaining, sep); cut >= 0 {
				remaining = remaining[:cut]
			}
		}
		if name := strings.TrimSpace(remaining); len(name) > 1 {
			names = append(names, name)
		}
	}

	return names
}

// ImageURLs extracts the item's image URLs. The image_url array is primary,
// normalized to the full-resolution IIIF variant when the URL is an IIIF
// service URL. Resource entries are the fallback when the payload has no
// image_url field. Duplicates are removed preserving order.
func ImageURLs(payload *loc.ItemPayload) []string {
	var urls []string

	for _, u := range payload.ImageURLs {
		urls = append(urls, normalizeIIIF(u))
	}

	if len(urls) == 0 {
		for _, res := range payload.Resources {
			if res.Image != "" && hasImageExtension(res.Image) {
				urls = append(urls, res.Image)
			}
		}
	}

	return dedupe(urls)
}

// normalizeIIIF rewrites a IIIF image URL to request the full-resolution
// jpg rendition. Example input:
//
//	https://tile.loc.gov/image-services/iiif/service:afc:...:afc2019048_0001_ms0004/full/pct:6.25/0/default.jpg
//
// Non-IIIF URLs pass through unchanged.
func normalizeIIIF(u string) string {
	if !strings.Contains(u, "iiif/service:") {
		return u
	}
	idx := strings.Index(u, "/full/")
	if idx < 0 {
		return u
	}
	return u[:idx] + "/full/pct:100/0/default.jpg"
}

func resourceURLs(payload *loc.ItemPayload) []string {
	var urls []string
	for _, res := range payload.Resources {
		if res.URL != "" {
			urls = append(urls, res.URL)
		}
		if res.PDF != "" {
			urls = append(urls, res.PDF)
		}
	}
	return dedupe(urls)
}

func hasImageExtension(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
