package util

import (
	"errors"
	"strings"
)

// ErrInvalidFileName rejects empty names and traversal patterns.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens path separators out of a user-supplied file name
// so it can be used as a single blob path segment.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", ErrInvalidFileName
	}
	return s, nil
}
