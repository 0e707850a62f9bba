package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	c := NewClient(Options{})
	ctx := context.Background()

	exists, err := c.Exists(ctx, filepath.Join(dir, "missing.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("expected missing file to not exist")
	}

	path := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	exists, err = c.Exists(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("expected file to exist")
	}
}

func TestMkdirAll_Concurrent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	c := NewClient(Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.MkdirAll(context.Background(), dir)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("MkdirAll returned error: %v", err)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	for _, tc := range []struct {
		name   string
		atomic bool
	}{
		{name: "atomic", atomic: true},
		{name: "direct", atomic: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			c := NewClient(Options{Atomic: tc.atomic, FileMode: 0600})
			path := filepath.Join(dir, "out.ts")

			if err := c.WriteFile(context.Background(), path, []byte("first")); err != nil {
				t.Fatal(err)
			}
			if err := c.WriteFile(context.Background(), path, []byte("second")); err != nil {
				t.Fatal(err)
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "second" {
				t.Errorf("content = %q, want %q", got, "second")
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("mode = %v, want 0600", info.Mode().Perm())
			}

			// no temp files left behind
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				if strings.HasPrefix(e.Name(), ".mapextract-tmp-") {
					t.Errorf("temp file left behind: %s", e.Name())
				}
			}
		})
	}
}

func TestWriteFile_EmptyContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.js")
	c := NewClient(Options{Atomic: true})

	if err := c.WriteFile(context.Background(), path, nil); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("size = %d, want 0", info.Size())
	}
}

func TestWriteFile_OntoDirectory(t *testing.T) {
	dir := t.TempDir()
	c := NewClient(Options{Atomic: true})

	if err := c.WriteFile(context.Background(), dir, []byte("x")); err == nil {
		t.Fatal("expected error writing onto a directory")
	}
}

func TestWriteFile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Options{})
	path := filepath.Join(t.TempDir(), "never.txt")
	if err := c.WriteFile(ctx, path, []byte("x")); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not have been written")
	}
}
