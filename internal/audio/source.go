package audio

import (
	"path/filepath"
	"strings"
)

// IsRemote reports whether path is an object-storage URI rather than a
// local file. Remote inputs are submitted for recognition as-is, with no
// conversion or upload.
func IsRemote(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), "gs://")
}

// NeedsConversion reports whether a local input must be transcoded to FLAC
// before recognition.
func NeedsConversion(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

// BaseName returns the input's file name without directory or extension,
// used for naming transcripts. Works for both local paths and gs:// URIs.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
