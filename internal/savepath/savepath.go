package savepath

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrOutsideRoot is returned when a save path does not name a file below the output root
var ErrOutsideRoot = errors.New("save path does not resolve below the output root")

var leadingParentDirs = regexp.MustCompile(`^(\.\./)+`)

// StripUpwardTraversal cleans p and removes the leading run of "../" segments.
// Parent references that cleaning cannot eliminate elsewhere in the path are kept.
func StripUpwardTraversal(p string) string {
	return leadingParentDirs.ReplaceAllString(path.Clean(p), "")
}

// RemoveQuerySuffix drops a trailing query string ("?" and everything after it)
func RemoveQuerySuffix(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

// FromSource derives the relative save path for a source path recorded in a map.
// For example: ../../src/app.ts?v=3 -> src/app.ts
func FromSource(source string) string {
	save := RemoveQuerySuffix(StripUpwardTraversal(source))
	// absolute recorded paths are anchored at the output root
	return strings.TrimLeft(save, "/")
}

// Resolve joins savePath onto root, refusing paths that would name the root
// itself or a location outside of it.
func Resolve(root, savePath string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(savePath))
	if rel == "." || rel == ".." || filepath.IsAbs(rel) ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) ||
		filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, savePath)
	}
	return filepath.Join(root, rel), nil
}
