package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/minio/highwayhash"
)

var hashKey = []byte("mapextract-manifest-content-hash")

// Manifest records what an extraction wrote
type Manifest struct {
	File       string         `json:"file,omitempty"` // generated file named by the map
	OutputRoot string         `json:"output_root"`
	Files      []ManifestFile `json:"files"`
	Collisions []Collision    `json:"collisions"`
}

// ManifestFile describes one written file
type ManifestFile struct {
	SavePath   string `json:"save_path"`
	SourcePath string `json:"source_path"`
	Size       int    `json:"size"`
	Hash       string `json:"hash"` // HighwayHash-64 of the content
	Embedded   bool   `json:"embedded"`
}

// contentHash computes the HighwayHash-64 of content as hex
func contentHash(content string) (string, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return "", err
	}
	if _, err := h.Write([]byte(content)); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// buildManifest creates the manifest for an applied plan
func buildManifest(file, outputRoot string, plan *Plan) (*Manifest, error) {
	m := &Manifest{
		File:       file,
		OutputRoot: outputRoot,
		Files:      make([]ManifestFile, 0, len(plan.Write)),
		Collisions: plan.Collisions,
	}
	if m.Collisions == nil {
		m.Collisions = make([]Collision, 0)
	}

	for _, entry := range plan.Write {
		hash, err := contentHash(entry.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to compute hash for %s: %w", entry.SavePath, err)
		}
		m.Files = append(m.Files, ManifestFile{
			SavePath:   entry.SavePath,
			SourcePath: entry.SourcePath,
			Size:       len(entry.Content),
			Hash:       hash,
			Embedded:   entry.HasContent,
		})
	}
	return m, nil
}

// unchangedSince counts files whose hash equals the hash recorded for the
// same save path in prev
func (m *Manifest) unchangedSince(prev *Manifest) int {
	if prev == nil {
		return 0
	}
	hashes := make(map[string]string, len(prev.Files))
	for _, f := range prev.Files {
		hashes[f.SavePath] = f.Hash
	}

	n := 0
	for _, f := range m.Files {
		if h, ok := hashes[f.SavePath]; ok && h == f.Hash {
			n++
		}
	}
	return n
}

// LoadManifest reads a manifest written by a previous extraction.
// A missing file yields a nil manifest and no error.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// saveManifest persists the manifest through the engine's filesystem
func (e *Engine) saveManifest(ctx context.Context, path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := e.fs.MkdirAll(ctx, filepath.Dir(path)); err != nil {
		return err
	}
	return e.fs.WriteFile(ctx, path, data)
}
