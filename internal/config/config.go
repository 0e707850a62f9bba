package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDirMode  = "0755"
	DefaultFileMode = "0644"
	DefaultWorkers  = 4
)

// Config represents the complete mapextract configuration
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Extract ExtractConfig `yaml:"extract"`
}

// OutputConfig configures where and how extracted files are written
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	DirMode  string `yaml:"dir_mode"`
	FileMode string `yaml:"file_mode"`
	Atomic   *bool  `yaml:"atomic"`
}

// ExtractConfig configures extraction behavior
type ExtractConfig struct {
	Workers            int    `yaml:"workers"`
	Manifest           string `yaml:"manifest"`
	SkipMissingContent bool   `yaml:"skip_missing_content"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOptional behaves like Load but returns the defaults when no file exists at path
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Output.Dir = os.ExpandEnv(c.Output.Dir)
	c.Output.DirMode = os.ExpandEnv(c.Output.DirMode)
	c.Output.FileMode = os.ExpandEnv(c.Output.FileMode)
	c.Extract.Manifest = os.ExpandEnv(c.Extract.Manifest)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Output.DirMode == "" {
		c.Output.DirMode = DefaultDirMode
	}
	if c.Output.FileMode == "" {
		c.Output.FileMode = DefaultFileMode
	}
	if c.Output.Atomic == nil {
		atomic := true
		c.Output.Atomic = &atomic
	}
	if c.Extract.Workers == 0 {
		c.Extract.Workers = DefaultWorkers
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if _, err := parseMode(c.Output.DirMode); err != nil {
		return fmt.Errorf("invalid output.dir_mode: %w", err)
	}
	if _, err := parseMode(c.Output.FileMode); err != nil {
		return fmt.Errorf("invalid output.file_mode: %w", err)
	}
	if c.Extract.Workers < 1 {
		return fmt.Errorf("extract.workers must be at least 1, got %d", c.Extract.Workers)
	}
	return nil
}

// DirPerm returns the directory mode for created directories
func (c *Config) DirPerm() os.FileMode {
	m, _ := parseMode(c.Output.DirMode)
	return m
}

// FilePerm returns the file mode for written files
func (c *Config) FilePerm() os.FileMode {
	m, _ := parseMode(c.Output.FileMode)
	return m
}

// AtomicWrites reports whether files are written through a temp file and rename
func (c *Config) AtomicWrites() bool {
	return c.Output.Atomic == nil || *c.Output.Atomic
}

// parseMode parses an octal permission string such as "0755"
func parseMode(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not an octal mode", s)
	}
	if v > 0777 {
		return 0, fmt.Errorf("%q has bits outside the permission range", s)
	}
	return os.FileMode(v), nil
}
