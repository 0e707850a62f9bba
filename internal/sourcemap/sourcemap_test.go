package sourcemap

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicMap = `{
  "version": 3,
  "file": "bundle.js",
  "sources": ["../../src/a.ts", "./b/c.ts", "webpack:///./src/d.ts?1234"],
  "sourcesContent": ["export const a = 1;\n", "export const c = 2;\n", null],
  "names": [],
  "mappings": "AAAA"
}`

func TestParse_Basic(t *testing.T) {
	doc, err := Parse([]byte(basicMap))
	require.NoError(t, err)

	assert.Equal(t, "bundle.js", doc.File)
	assert.Equal(t, 3, doc.Len())
	assert.Equal(t, []string{"../../src/a.ts", "./b/c.ts", "webpack:///./src/d.ts?1234"}, doc.Sources())

	content, ok := doc.ContentFor("../../src/a.ts")
	assert.True(t, ok)
	assert.Equal(t, "export const a = 1;\n", content)

	_, ok = doc.ContentFor("webpack:///./src/d.ts?1234")
	assert.False(t, ok, "null sourcesContent entry should be absent")

	_, ok = doc.ContentFor("not/listed.ts")
	assert.False(t, ok)
}

func TestParse_ShortSourcesContent(t *testing.T) {
	doc, err := Parse([]byte(`{"version":3,"sources":["a.ts","b.ts"],"sourcesContent":["A"],"mappings":""}`))
	require.NoError(t, err)

	_, ok := doc.ContentFor("a.ts")
	assert.True(t, ok)
	_, ok = doc.ContentFor("b.ts")
	assert.False(t, ok)
}

func TestParse_NoSourcesContent(t *testing.T) {
	doc, err := Parse([]byte(`{"version":3,"sources":["a.ts"],"mappings":""}`))
	require.NoError(t, err)

	_, ok := doc.ContentFor("a.ts")
	assert.False(t, ok)
}

func TestParse_DuplicateSourcesFirstWins(t *testing.T) {
	doc, err := Parse([]byte(`{"version":3,"sources":["a.ts","a.ts"],"sourcesContent":["first","second"],"mappings":""}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.ts", "a.ts"}, doc.Sources())
	content, ok := doc.ContentFor("a.ts")
	assert.True(t, ok)
	assert.Equal(t, "first", content)
}

func TestParse_SourceRoot(t *testing.T) {
	tests := []struct {
		name string
		root string
		want string
	}{
		{name: "no trailing slash", root: "src", want: "src/a.ts"},
		{name: "trailing slash", root: "src/", want: "src/a.ts"},
		{name: "parent root", root: "../", want: "../a.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(`{"version":3,"sourceRoot":"` + tt.root + `","sources":["a.ts"],"sourcesContent":["A"],"mappings":""}`))
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, doc.Sources())

			content, ok := doc.ContentFor(tt.want)
			assert.True(t, ok)
			assert.Equal(t, "A", content)
		})
	}
}

func TestParse_SourceRootShadowing(t *testing.T) {
	// entry 0 is recorded as "src/a.ts", entry 1 is joined to "src/a.ts"
	doc, err := Parse([]byte(`{"version":3,"sourceRoot":"src","sources":["src/a.ts","a.ts"],"sourcesContent":["FIRST","SECOND"],"mappings":""}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"src/src/a.ts", "src/a.ts"}, doc.Sources())

	content, ok := doc.ContentFor("src/a.ts")
	assert.True(t, ok)
	assert.Equal(t, "SECOND", content)

	entries := doc.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "FIRST", entries[0].Content)
	assert.Equal(t, "SECOND", entries[1].Content)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	doc, err := Parse([]byte(`{"version":3,"sources":["a.ts"],"sourcesContent":["A"],"mappings":""}`))
	require.NoError(t, err)

	entries := doc.Entries()
	entries[0].Content = "changed"

	content, _ := doc.ContentFor("a.ts")
	assert.Equal(t, "A", content)
}

func TestParse_NullSource(t *testing.T) {
	doc, err := Parse([]byte(`{"version":3,"sources":[null,"b.ts"],"sourcesContent":["X","B"],"mappings":""}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"", "b.ts"}, doc.Sources())
}

func TestParse_VersionAsString(t *testing.T) {
	_, err := Parse([]byte(`{"version":"3","sources":[],"mappings":""}`))
	require.NoError(t, err)
}

func TestParse_IndexedMap(t *testing.T) {
	input := `{
  "version": 3,
  "file": "app.js",
  "sections": [
    {"offset": {"line": 0, "column": 0}, "map": {"version": 3, "sources": ["one.ts"], "sourcesContent": ["1"], "mappings": "AAAA"}},
    {"offset": {"line": 10, "column": 0}, "map": {"version": 3, "sourceRoot": "lib", "sources": ["two.ts"], "sourcesContent": ["2"], "mappings": "AAAA"}}
  ]
}`
	doc, err := Parse([]byte(input))
	require.NoError(t, err)

	assert.Equal(t, "app.js", doc.File)
	assert.Equal(t, []string{"one.ts", "lib/two.ts"}, doc.Sources())

	content, ok := doc.ContentFor("lib/two.ts")
	assert.True(t, ok)
	assert.Equal(t, "2", content)
}

func TestParse_XSSIPrefix(t *testing.T) {
	doc, err := Parse([]byte(")]}'\n" + basicMap))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Len())
}

func TestParse_BOM(t *testing.T) {
	doc, err := Parse(append([]byte("\xef\xbb\xbf"), basicMap...))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Len())
}

func TestParse_InlineDataURL(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(basicMap))
	bundle := "console.log(1);\n//# sourceMappingURL=data:application/json;charset=utf-8;base64," + encoded + "\n"

	doc, err := Parse([]byte(bundle))
	require.NoError(t, err)
	assert.Equal(t, "bundle.js", doc.File)
	assert.Equal(t, 3, doc.Len())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "plain javascript", input: "console.log(1);\n//# sourceMappingURL=bundle.js.map", wantErr: ErrNotSourceMap},
		{name: "empty", input: "", wantErr: ErrNotSourceMap},
		{name: "version 2", input: `{"version":2,"sources":[],"mappings":""}`, wantErr: ErrUnsupportedVersion},
		{name: "missing version", input: `{"sources":[],"mappings":""}`, wantErr: ErrMissingField},
		{name: "missing sources", input: `{"version":3,"mappings":""}`, wantErr: ErrMissingField},
		{name: "missing mappings", input: `{"version":3,"sources":[]}`, wantErr: ErrMissingField},
		{name: "url section", input: `{"version":3,"sections":[{"offset":{"line":0,"column":0},"url":"a.js.map"}]}`, wantErr: ErrURLSection},
		{name: "bad nested version", input: `{"version":3,"sections":[{"offset":{"line":0,"column":0},"map":{"version":4,"sources":[],"mappings":""}}]}`, wantErr: ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"version":3,"sources":[`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse source map JSON")
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "bundle.js.map")
	require.NoError(t, os.WriteFile(mapPath, []byte(basicMap), 0644))

	doc, err := NewLoader().Load(context.Background(), mapPath)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Len())
}

func TestLoader_LoadMissing(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.map"))
	require.Error(t, err)
}
