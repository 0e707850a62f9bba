package sourcemap

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// SupportedVersion is the only source map revision accepted by Parse
const SupportedVersion = 3

var (
	// ErrNotSourceMap is returned when the input is neither map JSON nor a
	// bundle carrying an inline base64 map.
	ErrNotSourceMap = errors.New("input is not a source map")
	// ErrUnsupportedVersion is returned for maps whose version is not 3
	ErrUnsupportedVersion = errors.New("unsupported source map version")
	// ErrMissingField is returned when a required map field is absent
	ErrMissingField = errors.New("missing required source map field")
	// ErrURLSection is returned for indexed maps that reference sections by URL
	ErrURLSection = errors.New("indexed map sections with url are not supported")
)

var (
	utf8BOM    = []byte("\xef\xbb\xbf")
	xssiPrefix = []byte(")]}'")

	inlineMapComment = regexp.MustCompile(`(?m)//[#@]\s*sourceMappingURL=data:application/json(?:;charset=[^;,]+)?;base64,([A-Za-z0-9+/=]+)`)
)

// Source is one entry of a document's source list
type Source struct {
	Path       string // recorded path, joined with sourceRoot when one is set
	Content    string
	HasContent bool
}

// Document is a parsed source map reduced to its ordered source list
type Document struct {
	File    string
	entries []Source
	byPath  map[string]int // Path -> index of its first entry
}

// Entries returns the source list in map order; duplicates are kept.
func (d *Document) Entries() []Source {
	return append([]Source(nil), d.entries...)
}

// Sources returns the source paths in map order; duplicates are kept.
func (d *Document) Sources() []string {
	paths := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		paths = append(paths, e.Path)
	}
	return paths
}

// ContentFor returns the embedded content of the first source whose Path is p.
// The second return value is false when the map does not embed that source.
func (d *Document) ContentFor(p string) (string, bool) {
	i, ok := d.byPath[p]
	if !ok {
		return "", false
	}
	return d.entries[i].Content, d.entries[i].HasContent
}

// Len returns the number of entries in the source list
func (d *Document) Len() int {
	return len(d.entries)
}

type rawMap struct {
	Version        json.Number  `json:"version"`
	File           string       `json:"file"`
	SourceRoot     string       `json:"sourceRoot"`
	Sources        []*string    `json:"sources"`
	SourcesContent []*string    `json:"sourcesContent"`
	Mappings       *string      `json:"mappings"`
	Sections       []rawSection `json:"sections"`
}

type rawSection struct {
	Offset struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"offset"`
	URL string  `json:"url"`
	Map *rawMap `json:"map"`
}

// Parse decodes a source map document. Besides plain map JSON it accepts the
// ")]}'" anti-XSSI first line and generated bundles that inline their map as
// a base64 data URL in a sourceMappingURL comment.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	trimmed := bytes.TrimSpace(data)

	if bytes.HasPrefix(trimmed, xssiPrefix) {
		if i := bytes.IndexByte(trimmed, '\n'); i >= 0 {
			trimmed = bytes.TrimSpace(trimmed[i+1:])
		} else {
			trimmed = nil
		}
	}

	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSON(trimmed)
	}

	matches := inlineMapComment.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return nil, ErrNotSourceMap
	}
	// the last sourceMappingURL comment is the one a runtime would honour
	encoded := matches[len(matches)-1][1]
	decoded, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode inline source map: %w", err)
	}
	return parseJSON(decoded)
}

func parseJSON(data []byte) (*Document, error) {
	var m rawMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse source map JSON: %w", err)
	}

	doc := &Document{File: m.File, byPath: make(map[string]int)}
	if err := doc.appendMap(&m); err != nil {
		return nil, err
	}
	return doc, nil
}

// appendMap adds the sources of m (and of its sections, for indexed maps) in order
func (d *Document) appendMap(m *rawMap) error {
	if m.Version == "" {
		return fmt.Errorf("%w: version", ErrMissingField)
	}
	v, err := m.Version.Int64()
	if err != nil || v != SupportedVersion {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, m.Version)
	}

	if m.Sections != nil {
		for i, s := range m.Sections {
			if s.Map == nil {
				if s.URL != "" {
					return fmt.Errorf("%w: section %d (%s)", ErrURLSection, i, s.URL)
				}
				return fmt.Errorf("%w: sections[%d].map", ErrMissingField, i)
			}
			if err := d.appendMap(s.Map); err != nil {
				return fmt.Errorf("section %d: %w", i, err)
			}
		}
		return nil
	}

	if m.Sources == nil {
		return fmt.Errorf("%w: sources", ErrMissingField)
	}
	if m.Mappings == nil {
		return fmt.Errorf("%w: mappings", ErrMissingField)
	}

	for i, s := range m.Sources {
		recorded := ""
		if s != nil {
			recorded = *s
		}
		src := Source{Path: joinSourceRoot(m.SourceRoot, recorded)}
		if i < len(m.SourcesContent) && m.SourcesContent[i] != nil {
			src.Content = *m.SourcesContent[i]
			src.HasContent = true
		}
		if _, seen := d.byPath[src.Path]; !seen {
			d.byPath[src.Path] = len(d.entries)
		}
		d.entries = append(d.entries, src)
	}
	return nil
}

// joinSourceRoot prefixes source with root, inserting a separator when neither side has one
func joinSourceRoot(root, source string) string {
	if root == "" {
		return source
	}
	if !strings.HasSuffix(root, "/") && !strings.HasPrefix(source, "/") {
		root += "/"
	}
	return root + source
}
