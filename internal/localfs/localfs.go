package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FS provides the filesystem operations needed to materialize extracted sources
type FS interface {
	// Exists reports whether anything is present at path
	Exists(ctx context.Context, path string) (bool, error)
	// MkdirAll creates dir and any missing parents; existing directories are not an error
	MkdirAll(ctx context.Context, dir string) error
	// WriteFile writes data to path, replacing any existing file
	WriteFile(ctx context.Context, path string, data []byte) error
}

// Options configures a Client
type Options struct {
	DirMode  os.FileMode
	FileMode os.FileMode
	// Atomic writes go through a temp file in the destination directory and a rename
	Atomic bool
}

// Client implements FS on the local disk
type Client struct {
	dirMode  os.FileMode
	fileMode os.FileMode
	atomic   bool
}

// NewClient creates a new local filesystem client
func NewClient(opts Options) *Client {
	c := &Client{
		dirMode:  opts.DirMode,
		fileMode: opts.FileMode,
		atomic:   opts.Atomic,
	}
	if c.dirMode == 0 {
		c.dirMode = 0755
	}
	if c.fileMode == 0 {
		c.fileMode = 0644
	}
	return c
}

// Exists reports whether path exists
func (c *Client) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// MkdirAll creates dir with all missing parents. Concurrent callers creating
// the same directory all succeed.
func (c *Client) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, c.dirMode); err != nil {
		// a racing creator may have won between the stat and the mkdir
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			return nil
		}
		return err
	}
	return nil
}

// WriteFile writes data to path with overwrite semantics
func (c *Client) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.atomic {
		return os.WriteFile(path, data, c.fileMode)
	}
	return c.writeAtomic(path, data)
}

// writeAtomic writes data next to path and renames it into place
func (c *Client) writeAtomic(path string, data []byte) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".mapextract-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(c.fileMode); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
