package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schaermu/mapextract/internal/config"
	"github.com/schaermu/mapextract/internal/extract"
	"github.com/schaermu/mapextract/internal/localfs"
	"github.com/schaermu/mapextract/internal/sourcemap"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Extract flags
	outputDir          string
	dryRun             bool
	workers            int
	manifestPath       string
	skipMissingContent bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mapextract <source map>",
	Short: "Extract original sources from a JavaScript source map",
	Long: `mapextract reads a source map (version 3) and writes every source file
embedded in it to a directory tree that mirrors the original project layout.

Upward traversal segments and query suffixes are removed from recorded paths
so that every file lands below the output directory. When two sources map to
the same file, the first one wins and the others are reported.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runExtract,
}

var listCmd = &cobra.Command{
	Use:   "list <source map>",
	Short: "List the sources of a map and where they would be written",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mapextract %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/mapextract/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Extract flags
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default is <source map name>-sources)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be written without making changes")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of files written in parallel (default from config)")
	rootCmd.Flags().StringVar(&manifestPath, "manifest", "", "write a JSON manifest of the extraction to this file")
	rootCmd.Flags().BoolVar(&skipMissingContent, "skip-missing-content", false, "do not write sources the map lists without content")

	// Add commands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	location, err := resolveLocation(args[0])
	if err != nil {
		return err
	}
	outputRoot, err := resolveOutputRoot(cfg, location)
	if err != nil {
		return err
	}

	fs := localfs.NewClient(localfs.Options{
		DirMode:  cfg.DirPerm(),
		FileMode: cfg.FilePerm(),
		Atomic:   cfg.AtomicWrites(),
	})
	engine := extract.NewEngine(cfg, sourcemap.NewLoader(), fs, logger, dryRun)

	result, err := engine.Extract(ctx, location, outputRoot)
	if result != nil {
		printReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
	}
	if err != nil {
		logger.Error("extraction failed", "error", err)
		return err
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg)

	location, err := resolveLocation(args[0])
	if err != nil {
		return err
	}

	doc, err := sourcemap.NewLoader().Load(ctx, location)
	if err != nil {
		return &extract.ReadError{Location: location, Err: err}
	}

	engine := extract.NewEngine(cfg, nil, nil, logger, true)
	printPlan(cmd.OutOrStdout(), engine.Plan(doc))
	return nil
}

// applyFlags overrides configuration values with flags set on the command line
func applyFlags(cfg *config.Config) {
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if workers > 0 {
		cfg.Extract.Workers = workers
	}
	if manifestPath != "" {
		cfg.Extract.Manifest = manifestPath
	}
	if skipMissingContent {
		cfg.Extract.SkipMissingContent = true
	}
}

// resolveLocation makes local paths absolute; URLs are passed through
func resolveLocation(arg string) (string, error) {
	if strings.Contains(arg, "://") {
		return arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", arg, err)
	}
	return abs, nil
}

// resolveOutputRoot returns the configured output directory, or
// <map file name>-sources in the working directory when none is set
func resolveOutputRoot(cfg *config.Config, location string) (string, error) {
	dir := cfg.Output.Dir
	if dir == "" {
		dir = defaultOutputName(location)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory %s: %w", dir, err)
	}
	return abs, nil
}

func defaultOutputName(location string) string {
	if strings.Contains(location, "://") {
		u, _, _ := strings.Cut(location, "?")
		return path.Base(u) + "-sources"
	}
	return filepath.Base(location) + "-sources"
}

func printReport(stdout, stderr io.Writer, result *extract.Result) {
	if len(result.Collisions) > 0 {
		warn := color.New(color.FgYellow)
		warn.Fprintln(stderr, "When removing upwards traversal prefix, the following files would overwrite an existing file so they were skipped:")
		for _, c := range result.Collisions {
			warn.Fprintf(stderr, "  %s\n", c.SourcePath)
		}
	}
	if len(result.Skipped) > 0 {
		warn := color.New(color.FgYellow)
		warn.Fprintln(stderr, "The following sources have no embedded content and were skipped:")
		for _, s := range result.Skipped {
			warn.Fprintf(stderr, "  %s\n", s)
		}
	}

	if result.DryRun {
		color.New(color.FgCyan).Fprintf(stdout, "Would write %d files to %s\n", result.Planned, result.OutputRoot)
		return
	}
	if result.Written < result.Planned {
		color.New(color.FgRed).Fprintf(stdout, "Wrote %d of %d files to %s\n", result.Written, result.Planned, result.OutputRoot)
		return
	}
	color.New(color.FgGreen).Fprintf(stdout, "Wrote %d files to %s\n", result.Written, result.OutputRoot)
}

func printPlan(w io.Writer, plan *extract.Plan) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Source", "Save Path", "Size", "Status"})
	table.SetAutoWrapText(false)

	for _, e := range plan.Write {
		table.Append([]string{e.SourcePath, e.SavePath, entrySize(e), "write"})
	}
	for _, c := range plan.Collisions {
		table.Append([]string{c.SourcePath, c.SavePath, "-", "collision with " + c.ClaimedBy})
	}
	for _, e := range plan.Skipped {
		table.Append([]string{e.SourcePath, e.SavePath, "-", "no content"})
	}
	table.Render()
}

func entrySize(e extract.Entry) string {
	if !e.HasContent {
		return "-"
	}
	return strconv.Itoa(len(e.Content))
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// stdout carries the report, logs go to stderr
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	if cfgFile != "" {
		logger.Info("loading configuration", "path", cfgFile)
		return config.Load(cfgFile)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		logger.Debug("no home directory, using default configuration", "error", err)
		return config.Default(), nil
	}
	configPath := filepath.Join(home, ".config", "mapextract", "config.yaml")

	logger.Debug("loading configuration", "path", configPath)

	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"output_dir", cfg.Output.Dir,
		"workers", cfg.Extract.Workers,
		"manifest", cfg.Extract.Manifest,
		"atomic", cfg.AtomicWrites())

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
