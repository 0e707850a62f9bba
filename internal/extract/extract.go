package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/schaermu/mapextract/internal/config"
	"github.com/schaermu/mapextract/internal/localfs"
	"github.com/schaermu/mapextract/internal/savepath"
	"github.com/schaermu/mapextract/internal/sourcemap"
	"golang.org/x/sync/errgroup"
)

// Engine orchestrates the extraction process
type Engine struct {
	cfg    *config.Config
	reader sourcemap.Reader
	fs     localfs.FS
	logger *slog.Logger
	dryRun bool
}

// NewEngine creates a new extraction engine
func NewEngine(cfg *config.Config, reader sourcemap.Reader, fs localfs.FS, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:    cfg,
		reader: reader,
		fs:     fs,
		logger: logger,
		dryRun: dryRun,
	}
}

// Extract loads the source map at location and writes its sources below outputRoot
func (e *Engine) Extract(ctx context.Context, location, outputRoot string) (*Result, error) {
	e.logger.Info("reading source map", "location", location)

	doc, err := e.reader.Load(ctx, location)
	if err != nil {
		return nil, &ReadError{Location: location, Err: err}
	}

	return e.Run(ctx, doc, outputRoot)
}

// Run executes the extraction of an already loaded document
func (e *Engine) Run(ctx context.Context, doc *sourcemap.Document, outputRoot string) (*Result, error) {
	plan := e.Plan(doc)

	e.logger.Info("extraction plan",
		"sources", doc.Len(),
		"write", len(plan.Write),
		"collisions", len(plan.Collisions),
		"skipped", len(plan.Skipped),
		"dry_run", e.dryRun)

	// the caller reports both lists to the user through Result
	if len(plan.Collisions) > 0 {
		e.logger.Info("sources skipped because their save path is already taken",
			"sources", plan.CollidingSources())
	}
	if len(plan.Skipped) > 0 {
		e.logger.Info("sources skipped because the map embeds no content",
			"sources", plan.SkippedSources())
	}

	result := &Result{
		OutputRoot: outputRoot,
		Planned:    len(plan.Write),
		Collisions: plan.Collisions,
		Skipped:    plan.SkippedSources(),
		DryRun:     e.dryRun,
	}

	// check for dry-run mode
	if e.dryRun {
		if err := e.logPlanDetails(ctx, plan, outputRoot); err != nil {
			return result, err
		}
		e.logger.Info("dry-run complete, no files written")
		return result, nil
	}

	var prev *Manifest
	if path := e.cfg.Extract.Manifest; path != "" {
		m, err := LoadManifest(path)
		if err != nil {
			e.logger.Warn("failed to load previous manifest (will treat as fresh extraction)", "path", path, "error", err)
		}
		prev = m
	}

	written, overwritten, err := e.applyPlan(ctx, plan, outputRoot)
	result.Written = written
	result.Overwritten = overwritten
	if err != nil {
		return result, err
	}

	if path := e.cfg.Extract.Manifest; path != "" {
		m, err := buildManifest(doc.File, outputRoot, plan)
		if err != nil {
			return result, err
		}
		result.Unchanged = m.unchangedSince(prev)
		if err := e.saveManifest(ctx, path, m); err != nil {
			return result, &WriteError{Path: path, Err: fmt.Errorf("failed to save manifest: %w", err)}
		}
		e.logger.Info("manifest saved", "path", path, "unchanged", result.Unchanged)
	}

	e.logger.Info("extraction completed successfully",
		"written", written,
		"overwritten", overwritten,
		"output", outputRoot)
	return result, nil
}

// Plan computes save paths for every source of doc and filters out collisions.
// Sources are visited in map order; the first source to claim a save path keeps it.
func (e *Engine) Plan(doc *sourcemap.Document) *Plan {
	plan := &Plan{
		Write:      make([]Entry, 0, doc.Len()),
		Collisions: make([]Collision, 0),
		Skipped:    make([]Entry, 0),
	}

	claimed := make(map[string]string) // savePath -> source that claimed it
	for _, src := range doc.Entries() {
		source := src.Path
		entry := Entry{
			SourcePath: source,
			SavePath:   savepath.FromSource(source),
			Content:    src.Content,
			HasContent: src.HasContent,
		}

		// skipped sources never claim a save path
		if !entry.HasContent && e.cfg.Extract.SkipMissingContent {
			plan.Skipped = append(plan.Skipped, entry)
			continue
		}

		if first, taken := claimed[entry.SavePath]; taken {
			plan.Collisions = append(plan.Collisions, Collision{
				SourcePath: source,
				SavePath:   entry.SavePath,
				ClaimedBy:  first,
			})
			continue
		}
		claimed[entry.SavePath] = source
		plan.Write = append(plan.Write, entry)
	}

	return plan
}

// applyPlan writes every planned entry below outputRoot. The first failure
// stops any write that has not started yet.
func (e *Engine) applyPlan(ctx context.Context, plan *Plan, outputRoot string) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("extraction interrupted: %w", err)
	}

	// Ensure output directory exists
	if err := e.fs.MkdirAll(ctx, outputRoot); err != nil {
		return 0, 0, &WriteError{Path: outputRoot, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	var written, overwritten atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())

	for _, entry := range plan.Write {
		if gctx.Err() != nil {
			break
		}
		entry := entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			existed, err := e.writeEntry(gctx, entry, outputRoot)
			if err != nil {
				return err
			}
			written.Add(1)
			if existed {
				overwritten.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && int(written.Load()) < len(plan.Write) {
		// scheduling stopped on a cancelled context before any write failed
		err = ctx.Err()
	}
	if err != nil {
		var writeErr *WriteError
		if !errors.As(err, &writeErr) {
			err = fmt.Errorf("extraction interrupted: %w", err)
		}
	}
	return int(written.Load()), int(overwritten.Load()), err
}

// writeEntry writes a single entry and reports whether it replaced an existing file
func (e *Engine) writeEntry(ctx context.Context, entry Entry, outputRoot string) (bool, error) {
	dest, err := savepath.Resolve(outputRoot, entry.SavePath)
	if err != nil {
		return false, &WriteError{Path: entry.SavePath, Source: entry.SourcePath, Err: err}
	}

	existed, err := e.fs.Exists(ctx, dest)
	if err != nil {
		return false, &WriteError{Path: dest, Source: entry.SourcePath, Err: err}
	}
	if existed {
		e.logger.Info("overwriting existing file", "dest", dest, "source", entry.SourcePath)
	}

	// Ensure parent directory exists
	if err := e.fs.MkdirAll(ctx, filepath.Dir(dest)); err != nil {
		return false, &WriteError{Path: dest, Source: entry.SourcePath, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	e.logger.Debug("writing file", "dest", dest, "source", entry.SourcePath, "embedded", entry.HasContent)
	if err := e.fs.WriteFile(ctx, dest, []byte(entry.Content)); err != nil {
		return false, &WriteError{Path: dest, Source: entry.SourcePath, Err: err}
	}

	return existed, nil
}

// logPlanDetails logs detailed plan information for dry-run
func (e *Engine) logPlanDetails(ctx context.Context, plan *Plan, outputRoot string) error {
	for _, entry := range plan.Write {
		dest, err := savepath.Resolve(outputRoot, entry.SavePath)
		if err != nil {
			return &WriteError{Path: entry.SavePath, Source: entry.SourcePath, Err: err}
		}
		existed, err := e.fs.Exists(ctx, dest)
		if err != nil {
			return &WriteError{Path: dest, Source: entry.SourcePath, Err: err}
		}
		e.logger.Info("[dry-run] would write", "dest", dest, "source", entry.SourcePath, "overwrite", existed)
	}
	for _, c := range plan.Collisions {
		e.logger.Info("[dry-run] would skip", "source", c.SourcePath, "save_path", c.SavePath, "claimed_by", c.ClaimedBy)
	}
	return nil
}

func (e *Engine) workers() int {
	if e.cfg.Extract.Workers < 1 {
		return 1
	}
	return e.cfg.Extract.Workers
}
