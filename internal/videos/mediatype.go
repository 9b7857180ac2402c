package videos

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Extensions lists the container formats offered by the upload picker.
var Extensions = []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".mkv"}

var fallbackTypes = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// IsVideo reports whether a declared media type belongs to the video category.
// The check is an exact, case-sensitive prefix match on the declared value.
func IsVideo(mediaType string) bool {
	return strings.HasPrefix(mediaType, "video/")
}

// Validate returns ErrNotVideo for non-video media types.
func Validate(mediaType string) error {
	if !IsVideo(mediaType) {
		return fmt.Errorf("%w: %q", ErrNotVideo, mediaType)
	}
	return nil
}

// DetectMediaType picks a media type for a local file, first by extension and
// then by sniffing the leading bytes.
func DetectMediaType(name string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != "" {
		if t, ok := fallbackTypes[ext]; ok {
			return t
		}
		if t := mime.TypeByExtension(ext); t != "" {
			mediaType, _, err := mime.ParseMediaType(t)
			if err == nil {
				return mediaType
			}
			return t
		}
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(head))
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}
