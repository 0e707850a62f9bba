package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// mainPackage is the command the integration harness compiles, relative to the module root
const mainPackage = "cmd/mapextract"

// FindProjectRoot returns the mapextract module root, the directory the
// integration harness runs "go build ./cmd/mapextract" in. It starts at the
// caller's source file and walks up to the first go.mod that sits next to
// the command package.
func FindProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		return "", fmt.Errorf("cannot locate mapextract module: no caller information")
	}

	start := filepath.Dir(filename)
	for dir := start; ; dir = filepath.Dir(dir) {
		if isModuleRoot(dir) {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return "", fmt.Errorf("cannot locate mapextract module: no go.mod with %s above %s", mainPackage, start)
		}
	}
}

func isModuleRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(mainPackage)))
	return err == nil && info.IsDir()
}

// TestdataPath returns the absolute path of name inside the caller's testdata directory
func TestdataPath(name string) (string, error) {
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}
	p := filepath.Join(filepath.Dir(filename), "testdata", name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("testdata file %s: %w", name, err)
	}
	return p, nil
}
