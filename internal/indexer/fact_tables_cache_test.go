package indexer

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robert-at-pretension-io/verilog-assets/internal/facts"
)

func TestFactTablesCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeVerilog(t, dir, "counter.v", counterSource)
	res := runIndexerForTest(t, NewWithConfig(defaultTestConfig(filepath.Join(dir, ".cache"), false)), dir)
	tables := res.Tables()
	if len(tables.Assets) != 2 || len(tables.Files) != 1 {
		t.Fatalf("unexpected tables: %d assets, %d files", len(tables.Assets), len(tables.Files))
	}

	cacheDir := t.TempDir()
	if err := SaveFactTables(cacheDir, tables); err != nil {
		t.Fatalf("SaveFactTables: %v", err)
	}
	loaded, ok, err := LoadFactTables(cacheDir)
	if err != nil {
		t.Fatalf("LoadFactTables: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache to be present")
	}
	if d := facts.ComputeDelta(tables, loaded); !d.Empty() {
		t.Fatalf("reloaded tables differ: %+v", d)
	}
	if diff := cmp.Diff(tables.Assets, loaded.Assets); diff != "" {
		t.Fatalf("assets mismatch (-want +got):\n%s", diff)
	}
}

func TestFactTablesCacheMissing(t *testing.T) {
	_, ok, err := LoadFactTables(t.TempDir())
	if err != nil || ok {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}
}
