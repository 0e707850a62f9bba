package extract

import "fmt"

// ReadError reports a source map that could not be loaded or parsed.
// No output has been written when it is returned.
type ReadError struct {
	Location string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read source map %s: %v", e.Location, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError reports a directory or file of the output tree that could not be
// written. Files written before the failure are left in place.
type WriteError struct {
	Path   string
	Source string // source path of the entry being written, if any
	Err    error
}

func (e *WriteError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("failed to write %s (source %s): %v", e.Path, e.Source, e.Err)
	}
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
