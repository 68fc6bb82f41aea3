package renderer

import (
	"net/url"
	"path"
	"strings"
)

// mediaExtensions are the path suffixes aborted when media blocking is on.
var mediaExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"svg":  {},
	"mp3":  {},
	"mp4":  {},
	"avi":  {},
	"flac": {},
	"ogg":  {},
	"wav":  {},
	"webm": {},
}

// IsBlockedMedia reports whether a request URL points at a media file,
// judged by the extension of its path. Query string and fragment are
// ignored and the comparison is case-insensitive.
func IsBlockedMedia(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return false
	}
	_, ok := mediaExtensions[strings.ToLower(ext)]
	return ok
}
