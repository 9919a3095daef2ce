package indexer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTimingJSONLWritten(t *testing.T) {
	t.Setenv(envTimingPath, "")
	dir := t.TempDir()
	writeVerilog(t, dir, "counter.v", counterSource)
	timingPath := filepath.Join(t.TempDir(), "timing.jsonl")

	idx := NewWithConfig(defaultTestConfig(filepath.Join(dir, ".cache"), false))
	idx.Timing = true
	idx.TimingPath = timingPath
	runIndexerForTest(t, idx, dir)

	raw, err := os.ReadFile(timingPath)
	if err != nil {
		t.Fatalf("read timing file: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))

	stages := map[string]bool{}
	var file scanEvent
	for _, line := range lines {
		var ev scanEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("parse timing event: %v", err)
		}
		if ev.File == "" {
			stages[ev.Stage] = true
			continue
		}
		file = ev
	}
	for _, stage := range []string{stageDiscover, stageAnalyze, stageContract, stageScan} {
		if !stages[stage] {
			t.Fatalf("missing %s stage event in:\n%s", stage, raw)
		}
	}
	if file.Stage != stageAnalyze || file.Outcome != outcomeExtracted || file.Records != 2 {
		t.Fatalf("unexpected file event %+v", file)
	}
}

func TestStageDurationsInStats(t *testing.T) {
	t.Setenv(envTimingPath, "")
	t.Setenv(envTiming, "")
	dir := t.TempDir()
	writeVerilog(t, dir, "counter.v", counterSource)

	res := runIndexerForTest(t, NewWithConfig(defaultTestConfig(filepath.Join(dir, ".cache"), false)), dir)
	for _, stage := range []string{stageDiscover, stageAnalyze, stageContract, stageScan} {
		if _, ok := res.Stats.StageMS[stage]; !ok {
			t.Fatalf("stage %s missing from %v", stage, res.Stats.StageMS)
		}
	}
	if _, ok := res.Stats.StageMS[stagePolicy]; ok {
		t.Fatalf("policy stage recorded without a policy: %v", res.Stats.StageMS)
	}
	if _, err := os.Stat(filepath.Join(dir, "timing.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("trace written without being requested: %v", err)
	}
}

func TestTimingPathFromEnv(t *testing.T) {
	t.Setenv(envTimingPath, "")
	t.Setenv(envTiming, "")
	idx := New()
	if got := idx.tracePath("/work"); got != "" {
		t.Fatalf("timing should be off by default, got %q", got)
	}

	t.Setenv(envTiming, "1")
	if got := idx.tracePath("/work"); got != filepath.Join("/work", "timing.jsonl") {
		t.Fatalf("ASSET_SCAN_TIMING path = %q", got)
	}

	t.Setenv(envTimingPath, "/tmp/t.jsonl")
	if got := idx.tracePath("/work"); got != "/tmp/t.jsonl" {
		t.Fatalf("ASSET_SCAN_TIMING_JSONL path = %q", got)
	}

	t.Setenv(envTimingPath, "")
	idx.Timing = true
	idx.TimingPath = "/out/trace.jsonl"
	if got := idx.tracePath("/work"); got != "/out/trace.jsonl" {
		t.Fatalf("--timing path = %q", got)
	}
}
