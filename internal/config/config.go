package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
)

// ErrNotFound is returned by LoadFile when the path does not exist.
var ErrNotFound = errors.New("config file not found")

// Config is the top-level configuration for asset-scan
type Config struct {
	// Files controls which sources are discovered under the scan root
	Files FilesConfig `json:"files,omitempty" toml:"files" yaml:"files,omitempty"`

	// Output controls where and how asset records are written
	Output OutputConfig `json:"output,omitempty" toml:"output" yaml:"output,omitempty"`

	// Categories restricts emitted records to these categories (empty = all)
	Categories []string `json:"categories,omitempty" toml:"categories" yaml:"categories,omitempty"`

	// Thresholds holds the width bounds used by the category rules
	Thresholds ThresholdConfig `json:"thresholds,omitempty" toml:"thresholds" yaml:"thresholds,omitempty"`

	// Stoplist is the set of condition operands never treated as assets
	Stoplist []string `json:"stoplist,omitempty" toml:"stoplist" yaml:"stoplist,omitempty"`

	Analysis AnalysisConfig `json:"analysis,omitempty" toml:"analysis" yaml:"analysis,omitempty"`
	History  HistoryConfig  `json:"history,omitempty" toml:"history" yaml:"history,omitempty"`
	Policy   PolicyConfig   `json:"policy,omitempty" toml:"policy" yaml:"policy,omitempty"`
	Metrics  MetricsConfig  `json:"metrics,omitempty" toml:"metrics" yaml:"metrics,omitempty"`
	Tracing  TracingConfig  `json:"tracing,omitempty" toml:"tracing" yaml:"tracing,omitempty"`
	Watch    WatchConfig    `json:"watch,omitempty" toml:"watch" yaml:"watch,omitempty"`
}

// FilesConfig selects source files
type FilesConfig struct {
	// Include is a list of glob patterns matched against file base names
	Include []string `json:"include,omitempty" toml:"include" yaml:"include,omitempty"`

	// Exclude is a list of glob patterns matched against base names and root-relative paths
	Exclude []string `json:"exclude,omitempty" toml:"exclude" yaml:"exclude,omitempty"`
}

// OutputConfig controls the sink
type OutputConfig struct {
	// File is the output file name; relative paths are joined to the scan
	// root. Empty means asset_list.csv or asset_list.json by format.
	File string `json:"file,omitempty" toml:"file" yaml:"file,omitempty"`

	// Format is "csv" (append) or "json"
	Format string `json:"format,omitempty" toml:"format" yaml:"format,omitempty"`
}

// ThresholdConfig holds category width bounds
type ThresholdConfig struct {
	ControlWidth int `json:"controlWidth,omitempty" toml:"control_width" yaml:"controlWidth,omitempty"`
	ConfigMin    int `json:"configMin,omitempty" toml:"config_min" yaml:"configMin,omitempty"`
	ConfigMax    int `json:"configMax,omitempty" toml:"config_max" yaml:"configMax,omitempty"`
	StatusWidth  int `json:"statusWidth,omitempty" toml:"status_width" yaml:"statusWidth,omitempty"`

	// DataMinWidth is the smallest width reported as a Data asset
	DataMinWidth int `json:"dataMinWidth,omitempty" toml:"data_min_width" yaml:"dataMinWidth,omitempty"`
}

// CacheConfig controls incremental scan cache behavior
type CacheConfig struct {
	// Enabled turns on incremental cache usage
	Enabled *bool `json:"enabled,omitempty" toml:"enabled" yaml:"enabled,omitempty"`

	// Dir is the cache directory (relative to scan root if not absolute)
	Dir string `json:"dir,omitempty" toml:"dir" yaml:"dir,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file processing (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles,omitempty" toml:"max_parallel_files" yaml:"maxParallelFiles,omitempty"`

	// FileTimeout bounds the analysis of a single file, as a Go duration string
	FileTimeout string `json:"fileTimeout,omitempty" toml:"file_timeout" yaml:"fileTimeout,omitempty"`

	Cache CacheConfig `json:"cache,omitempty" toml:"cache" yaml:"cache,omitempty"`
}

// HistoryConfig controls the sqlite run history
type HistoryConfig struct {
	Enabled bool   `json:"enabled,omitempty" toml:"enabled" yaml:"enabled,omitempty"`
	Path    string `json:"path,omitempty" toml:"path" yaml:"path,omitempty"`
}

// PolicyConfig points at rego modules that post-process records
type PolicyConfig struct {
	Dir string `json:"dir,omitempty" toml:"dir" yaml:"dir,omitempty"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" toml:"textfile" yaml:"textfile,omitempty"`
}

// TracingConfig enables OTLP trace export when Endpoint is set
type TracingConfig struct {
	Endpoint string `json:"endpoint,omitempty" toml:"endpoint" yaml:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty" toml:"insecure" yaml:"insecure,omitempty"`
}

// WatchConfig controls watch mode
type WatchConfig struct {
	// Debounce is the quiet period before a rescan, as a Go duration string
	Debounce string `json:"debounce,omitempty" toml:"debounce" yaml:"debounce,omitempty"`

	// MinInterval is the minimum time between two rescans
	MinInterval string `json:"minInterval,omitempty" toml:"min_interval" yaml:"minInterval,omitempty"`
}

// Default output files per format, used when output.file is unset
const (
	DefaultOutputFile     = "asset_list.csv"
	DefaultJSONOutputFile = "asset_list.json"
)

const (
	DefaultCacheDir   = ".asset_scan_cache"
	DefaultHistory    = ".asset_scan_history.db"
)

// DefaultStoplist holds reset names and operator noise dropped from conditions.
var DefaultStoplist = []string{
	"rst", "reset", "rst_n", "rst_ni", "reset_n",
	"&&", "||", "==", "=", "!=", ">=", "<=", "<", ">",
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func boolPtr(v bool) *bool {
	return &v
}

// FileNames are the config names looked up in a directory, in order.
var FileNames = []string{
	"asset_scan.json",
	".asset_scan.json",
	"asset_scan.toml",
	"asset_scan.yaml",
	"asset_scan.yml",
}

// Load finds and loads the configuration file
// Search order:
//  1. FileNames in the current working directory
//  2. FileNames in <rootPath> (if different from cwd)
//  3. ~/.config/asset_scan/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	var searchPaths []string
	for _, name := range FileNames {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range FileNames {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "asset_scan", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file. The decoder is
// picked from the extension: .toml, .yaml/.yml, anything else is JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Files.Include) == 0 {
		c.Files.Include = []string{"*.v", "*.sv"}
	}
	if c.Files.Exclude == nil {
		c.Files.Exclude = []string{".git", "node_modules", DefaultCacheDir}
	}

	if c.Output.Format == "" {
		c.Output.Format = "csv"
	}

	if c.Thresholds.ControlWidth == 0 {
		c.Thresholds.ControlWidth = 1
	}
	if c.Thresholds.ConfigMin == 0 {
		c.Thresholds.ConfigMin = 2
	}
	if c.Thresholds.ConfigMax == 0 {
		c.Thresholds.ConfigMax = 9
	}
	if c.Thresholds.StatusWidth == 0 {
		c.Thresholds.StatusWidth = 1
	}
	if c.Thresholds.DataMinWidth == 0 {
		c.Thresholds.DataMinWidth = 10
	}

	if c.Stoplist == nil {
		c.Stoplist = append([]string(nil), DefaultStoplist...)
	}

	if c.Analysis.FileTimeout == "" {
		c.Analysis.FileTimeout = "10s"
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = DefaultCacheDir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(true)
	}

	if c.History.Path == "" {
		c.History.Path = DefaultHistory
	}

	if c.Watch.Debounce == "" {
		c.Watch.Debounce = "300ms"
	}
	if c.Watch.MinInterval == "" {
		c.Watch.MinInterval = "1s"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Output.Format {
	case "csv", "json":
	default:
		return fmt.Errorf("output.format must be csv or json, got %q", c.Output.Format)
	}
	if c.Thresholds.ConfigMin > c.Thresholds.ConfigMax {
		return fmt.Errorf("thresholds: configMin %d exceeds configMax %d", c.Thresholds.ConfigMin, c.Thresholds.ConfigMax)
	}
	if c.Thresholds.DataMinWidth <= c.Thresholds.ConfigMax {
		return fmt.Errorf("thresholds: dataMinWidth %d must exceed configMax %d", c.Thresholds.DataMinWidth, c.Thresholds.ConfigMax)
	}
	if c.Analysis.MaxParallelFiles < 0 {
		return fmt.Errorf("analysis.maxParallelFiles must be >= 0")
	}
	for name, value := range map[string]string{
		"analysis.fileTimeout": c.Analysis.FileTimeout,
		"watch.debounce":       c.Watch.Debounce,
		"watch.minInterval":    c.Watch.MinInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := asset.ParseCategories(c.Categories); err != nil {
		return fmt.Errorf("categories: %w", err)
	}
	if _, err := c.FileMatcher(); err != nil {
		return err
	}
	return nil
}

// CategoryFilter returns the parsed category list; invalid entries are dropped.
func (c *Config) CategoryFilter() []asset.Category {
	var out []asset.Category
	for _, name := range c.Categories {
		if cat, err := asset.ParseCategory(name); err == nil {
			out = append(out, cat)
		}
	}
	return out
}

// FileTimeout returns the per-file analysis budget.
func (c *Config) FileTimeout() time.Duration {
	d, err := time.ParseDuration(c.Analysis.FileTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// WatchTimings returns the debounce and minimum rescan interval.
func (c *Config) WatchTimings() (debounce, minInterval time.Duration) {
	debounce, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		debounce = 300 * time.Millisecond
	}
	minInterval, err = time.ParseDuration(c.Watch.MinInterval)
	if err != nil {
		minInterval = time.Second
	}
	return debounce, minInterval
}

// CacheEnabled reports whether the facts cache should be used.
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled == nil || *c.Analysis.Cache.Enabled
}

// OutputPath resolves the output file against the scan root. With no
// file configured the name follows the format, so a JSON run never lands
// on the CSV that earlier runs appended to.
func (c *Config) OutputPath(root string) string {
	file := strings.TrimSpace(c.Output.File)
	if file == "" {
		file = DefaultOutputFile
		if c.Output.Format == "json" {
			file = DefaultJSONOutputFile
		}
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(root, file)
}

// Save writes the configuration to a file, in the format implied by its extension
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf strings.Builder
		err = toml.NewEncoder(&buf).Encode(c)
		data = []byte(buf.String())
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
