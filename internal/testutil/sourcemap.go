package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// SourceMap describes a version 3 map for fixtures. A nil entry in Contents
// marks a source without embedded content.
type SourceMap struct {
	File       string
	SourceRoot string
	Sources    []string
	Contents   []*string
}

// JSON renders the map document
func (m SourceMap) JSON() ([]byte, error) {
	doc := map[string]any{
		"version":  3,
		"sources":  m.Sources,
		"mappings": "AAAA",
	}
	if m.File != "" {
		doc["file"] = m.File
	}
	if m.SourceRoot != "" {
		doc["sourceRoot"] = m.SourceRoot
	}
	if m.Contents != nil {
		doc["sourcesContent"] = m.Contents
	}
	return json.MarshalIndent(doc, "", "  ")
}

// WriteSourceMap writes m to dir/name and returns the file path
func WriteSourceMap(t testing.TB, dir, name string, m SourceMap) string {
	t.Helper()
	data, err := m.JSON()
	if err != nil {
		t.Fatalf("failed to encode source map: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("failed to write source map: %v", err)
	}
	return p
}

// Content returns a pointer to s, for SourceMap.Contents literals
func Content(s string) *string {
	return &s
}
