package validation

import (
	"path/filepath"
	"strings"
)

var allowedExtensions = map[string]bool{
	"mp4": true,
}

// VideoExtension returns the text after the last dot of filename. The
// match against the allow list is case sensitive.
func VideoExtension(filename string) (string, error) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		// "clip" has no dot; treat the whole name as the extension so it is
		// rejected as a format rather than as missing.
		return filename, ErrInvalidFileType
	}

	ext := filename[idx+1:]
	if ext == "" {
		return "", ErrMissingExtension
	}
	if !allowedExtensions[ext] {
		return ext, ErrInvalidFileType
	}
	return ext, nil
}

func ValidateSize(size, maxSize int64) error {
	if maxSize > 0 && size > maxSize {
		return ErrFileTooLarge
	}
	return nil
}

func SanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
