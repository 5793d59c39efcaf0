package media

import (
	"path/filepath"
	"strings"
)

// mimeByExt is the fixed extension-to-MIME table for embedded media. Unknown
// extensions fall back to a generic binary type.
var mimeByExt = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
}

// audioExts lists the extensions recognized as audio when recovering
// filenames for indexed play directives.
var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".webm": true,
}

// MIMEForFilename infers a MIME type from the filename extension.
func MIMEForFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mime, ok := mimeByExt[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// isAudioFilename reports whether name carries a known audio extension.
func isAudioFilename(name string) bool {
	return audioExts[strings.ToLower(filepath.Ext(name))]
}
