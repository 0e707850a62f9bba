package sourcemap

import (
	"context"
	"fmt"

	"github.com/viant/afs"
)

// Reader provides access to source map documents
type Reader interface {
	// Load reads and parses the document stored at location
	Load(ctx context.Context, location string) (*Document, error)
}

// Loader implements Reader on top of an afs storage service, so location may
// be a local path or any URL the service has a scheme registered for.
type Loader struct {
	fs afs.Service
}

// NewLoader creates a new loader backed by the default afs service
func NewLoader() *Loader {
	return &Loader{fs: afs.New()}
}

// Load downloads the document at location and parses it
func (l *Loader) Load(ctx context.Context, location string) (*Document, error) {
	data, err := l.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", location, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
