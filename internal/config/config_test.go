package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.OutputPath("/work"); got != filepath.Join("/work", DefaultOutputFile) {
		t.Fatalf("csv output path = %q", got)
	}
	cfg.Output.Format = "json"
	if got := cfg.OutputPath("/work"); got != filepath.Join("/work", DefaultJSONOutputFile) {
		t.Fatalf("json output path = %q", got)
	}
	cfg.Output.Format = "csv"
	want := ThresholdConfig{ControlWidth: 1, ConfigMin: 2, ConfigMax: 9, StatusWidth: 1, DataMinWidth: 10}
	if diff := cmp.Diff(want, cfg.Thresholds); diff != "" {
		t.Fatalf("thresholds mismatch (-want +got):\n%s", diff)
	}
	if !cfg.CacheEnabled() {
		t.Fatalf("cache should default to enabled")
	}
	if cfg.FileTimeout() != 10*time.Second {
		t.Fatalf("file timeout = %v", cfg.FileTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"asset_scan.json": `{"output": {"format": "json"}, "thresholds": {"dataMinWidth": 16}, "stoplist": ["rst"]}`,
		"asset_scan.toml": "stoplist = [\"rst\"]\n[output]\nformat = \"json\"\n[thresholds]\ndata_min_width = 16\n",
		"asset_scan.yaml": "output:\n  format: json\nthresholds:\n  dataMinWidth: 16\nstoplist: [rst]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			writeFile(t, path, body)
			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if cfg.Output.Format != "json" {
				t.Fatalf("format = %q", cfg.Output.Format)
			}
			if cfg.Thresholds.DataMinWidth != 16 || cfg.Thresholds.ConfigMax != 9 {
				t.Fatalf("thresholds = %+v", cfg.Thresholds)
			}
			if diff := cmp.Diff([]string{"rst"}, cfg.Stoplist); diff != "" {
				t.Fatalf("stoplist mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadFileRejectsBadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asset_scan.json")
	writeFile(t, path, `{"thresholds": {"configMax": 12}}`)
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected dataMinWidth <= configMax to be rejected")
	}
}

func TestLoadSearchesRoot(t *testing.T) {
	root := t.TempDir()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	writeFile(t, filepath.Join(root, "asset_scan.json"), `{"output": {"file": "assets.csv"}}`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.File != "assets.csv" {
		t.Fatalf("expected config from root, got %q", cfg.Output.File)
	}
	if got := cfg.OutputPath(root); got != filepath.Join(root, "assets.csv") {
		t.Fatalf("OutputPath = %q", got)
	}
}

func TestSaveRoundTripsThroughLoadFile(t *testing.T) {
	for _, name := range []string{"c.json", "c.toml", "c.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.Categories = []string{"control", "status"}
			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if diff := cmp.Diff(cfg.Categories, loaded.Categories); diff != "" {
				t.Fatalf("categories mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateRejectsUnknownCategory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Categories = []string{"control", "secrets"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown category to be rejected")
	}
	cfg.Categories = []string{"Control", "param"}
	if got := cfg.CategoryFilter(); len(got) != 2 {
		t.Fatalf("CategoryFilter = %v", got)
	}
}
