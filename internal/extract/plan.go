package extract

// Entry is one source of the map on its way to disk
type Entry struct {
	SourcePath string // path as recorded in the map
	SavePath   string // sanitized path relative to the output root
	Content    string
	HasContent bool // false when the map lists the source without embedding it
}

// Collision records a source dropped because an earlier source claimed its save path
type Collision struct {
	SourcePath string `json:"source_path"`
	SavePath   string `json:"save_path"`
	ClaimedBy  string `json:"claimed_by"` // source path of the earlier entry
}

// Plan represents the writes an extraction will perform
type Plan struct {
	Write      []Entry
	Collisions []Collision
	Skipped    []Entry // sources without content, when configured to skip them
}

// CollidingSources returns the source paths of all collisions in map order
func (p *Plan) CollidingSources() []string {
	sources := make([]string, 0, len(p.Collisions))
	for _, c := range p.Collisions {
		sources = append(sources, c.SourcePath)
	}
	return sources
}

// SkippedSources returns the source paths of all skipped entries in map order
func (p *Plan) SkippedSources() []string {
	sources := make([]string, 0, len(p.Skipped))
	for _, e := range p.Skipped {
		sources = append(sources, e.SourcePath)
	}
	return sources
}

// Result summarizes an extraction run
type Result struct {
	OutputRoot  string
	Planned     int // files the plan writes
	Written     int // files actually written; less than Planned after a failure or in dry-run
	Overwritten int // written files that replaced an existing file
	Unchanged   int // written files whose content matches the previous manifest
	Collisions  []Collision
	Skipped     []string
	DryRun      bool
}
