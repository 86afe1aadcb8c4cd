package media

import (
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
)

var frameImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true,
}

// IsFrameImage reports whether filename looks like a stored frame.
func IsFrameImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return frameImageExtensions[ext]
}
