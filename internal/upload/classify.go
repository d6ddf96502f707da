package upload

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	textMime   = regexp.MustCompile(`^(text/|application/(json|xml|yaml|x-yaml|toml))`)
	audioExtRe = regexp.MustCompile(`(?i)\.(mp3|wav|ogg)$`)
)

// Classification flags how clients should render an attachment. It is derived
// from the declared MIME type and file name only; content is never sniffed.
type Classification struct {
	IsImage bool
	IsText  bool
	IsAudio bool
}

// Classify derives rendering flags from the declared MIME type and name.
func Classify(mime, filename string) Classification {
	mime = strings.ToLower(strings.TrimSpace(mime))
	return Classification{
		IsImage: strings.HasPrefix(mime, "image/"),
		IsText:  textMime.MatchString(mime),
		IsAudio: strings.HasPrefix(mime, "audio/") || audioExtRe.MatchString(filename),
	}
}

// storedExt keeps at most ten characters of the original extension.
func storedExt(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if len(ext) > 10 {
		ext = ext[:10]
	}
	return ext
}
