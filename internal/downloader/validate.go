package downloader

import (
	"bytes"
	"image"
	"path"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"quiltsync/pkg/errors"
)

// decodableExtensions are formats the standard image decoders understand.
// JPEG 2000 and TIFF masters from the archive are accepted on weaker
// checks since stdlib cannot decode them.
var decodableExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// Validate rejects bytes that are not a plausible image: empty bodies,
// non-image content types, HTML error pages served with 200, and files
// whose header the image decoders cannot parse.
func Validate(data []byte, url, contentType string) error {
	if len(data) == 0 {
		return errors.New(errors.ErrorTypeImageInvalid, "empty image body")
	}

	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return errors.Newf(errors.ErrorTypeImageInvalid, "unexpected content type %q", contentType)
	}

	// Servers sometimes return an HTML error page with status 200
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return errors.New(errors.ErrorTypeImageInvalid, "response body is HTML, not an image")
	}

	ext := strings.ToLower(path.Ext(urlPath(url)))
	if decodableExtensions[ext] {
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return errors.Newf(errors.ErrorTypeImageInvalid, "undecodable image data: %v", err)
		}
	}

	return nil
}

func urlPath(url string) string {
	s := url
	if idx := strings.Index(s, "?"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
		if slash := strings.Index(s, "/"); slash >= 0 {
			s = s[slash:]
		}
	}
	return s
}
