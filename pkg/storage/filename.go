package storage

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// SafeFilename derives a stable filename for an image URL. Direct
// storage-services URLs keep their own name when it already carries the
// item id and manuscript page. IIIF URLs become
// <item_id>_<msNNNN>[_<res>].<ext>; anything else falls back to an md5
// prefix of the URL.
func SafeFilename(rawURL, itemID string) string {
	base := ""
	if u, err := url.Parse(rawURL); err == nil {
		if p, err := url.PathUnescape(u.Path); err == nil {
			base = path.Base(p)
		} else {
			base = path.Base(u.Path)
		}
	}

	var name string
	if strings.Contains(rawURL, "storage-services") &&
		strings.Contains(base, itemID) && strings.Contains(base, "_ms") {
		name = base
	} else {
		manuscript, resolution := parseManuscriptInfo(rawURL)

		ext := path.Ext(base)
		if ext == "" {
			ext = ".jpg"
		}

		switch {
		case manuscript != "" && resolution != "":
			name = itemID + "_" + manuscript + "_" + resolution + ext
		case manuscript != "":
			name = itemID + "_" + manuscript + ext
		default:
			sum := md5.Sum([]byte(rawURL))
			name = itemID + "_" + hex.EncodeToString(sum[:])[:8] + ext
		}
	}

	return sanitize(name)
}

// parseManuscriptInfo extracts the manuscript page (ms0004) and the IIIF
// resolution segment (pct100, max) from an image URL.
func parseManuscriptInfo(rawURL string) (manuscript, resolution string) {
	if strings.Contains(rawURL, "_ms") {
		for _, part := range strings.Split(rawURL, "/") {
			idx := strings.Index(part, "_ms")
			if idx < 0 {
				continue
			}
			raw := part[idx+len("_ms"):]
			// Strip any file extension: 0001.jp2 -> 0001
			if dot := strings.Index(raw, "."); dot >= 0 {
				raw = raw[:dot]
			}
			if raw != "" {
				manuscript = "ms" + raw
			}
			break
		}
	}

	if idx := strings.Index(rawURL, "/full/"); idx >= 0 {
		rest := rawURL[idx+len("/full/"):]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			rest = rest[:slash]
		}
		switch {
		case strings.HasPrefix(rest, "pct:"):
			resolution = "pct" + strings.ReplaceAll(rest[4:], ".", "_")
		case rest != "":
			resolution = strings.NewReplacer(":", "_", ".", "_").Replace(rest)
		}
	}

	return manuscript, resolution
}

func sanitize(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.', c == '-', c == '_':
			b.WriteRune(c)
		}
	}
	return b.String()
}
