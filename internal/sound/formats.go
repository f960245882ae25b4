package sound

import (
	"path/filepath"
	"strings"
)

// Extensions lists every asset extension accepted in profiles and the
// library. Only the decodable subset can actually be played.
var Extensions = []string{".wav", ".mp3", ".flac", ".ogg", ".aac", ".wma", ".m4a"}

var decodable = map[string]bool{".wav": true, ".mp3": true, ".flac": true, ".ogg": true}

// Ext returns the lowercased extension of path.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// IsAsset reports whether path has a supported sound extension.
func IsAsset(path string) bool {
	ext := Ext(path)
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// IsDecodable reports whether the playback engine can decode path.
func IsDecodable(path string) bool {
	return decodable[Ext(path)]
}
