package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/config"
	"github.com/robert-at-pretension-io/verilog-assets/internal/extractor"
)

const counterSource = `module counter (
  input        clk,
  input        rst_n,
  input        en,
  output reg   done
);
  always @(posedge clk) begin
    if (en) begin
      done <= en;
    end
  end
endmodule
`

type countingExtractor struct {
	inner FactsExtractor
	count *int32
}

func (c *countingExtractor) ExtractBytes(path string, content []byte) extractor.FileFacts {
	atomic.AddInt32(c.count, 1)
	return c.inner.ExtractBytes(path, content)
}

type panickingExtractor struct {
	inner FactsExtractor
	bad   string
}

func (p *panickingExtractor) ExtractBytes(path string, content []byte) extractor.FileFacts {
	if filepath.Base(path) == p.bad {
		panic("boom")
	}
	return p.inner.ExtractBytes(path, content)
}

type blockingExtractor struct {
	release chan struct{}
}

func (b *blockingExtractor) ExtractBytes(path string, _ []byte) extractor.FileFacts {
	<-b.release
	return extractor.FileFacts{File: path}
}

// malformedExtractor reports a signal name the record contract rejects for
// the file named bad.
type malformedExtractor struct {
	inner FactsExtractor
	bad   string
}

func (m *malformedExtractor) ExtractBytes(path string, content []byte) extractor.FileFacts {
	if filepath.Base(path) != m.bad {
		return m.inner.ExtractBytes(path, content)
	}
	return extractor.FileFacts{
		File:         path,
		Symbols:      []extractor.Symbol{{Name: "Bad-Name", Kind: extractor.KindInput, Width: 1}},
		Inputs:       []string{"Bad-Name"},
		Conditionals: []extractor.UsageSignal{{Token: "Bad-Name", Context: extractor.ContextIfElse}},
	}
}

func writeVerilog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func defaultTestConfig(cacheDir string, cacheEnabled bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Analysis.Cache.Dir = cacheDir
	enabled := cacheEnabled
	cfg.Analysis.Cache.Enabled = &enabled
	return cfg
}

func runIndexerForTest(t *testing.T, idx *Indexer, rootPath string) *Result {
	t.Helper()
	res, err := idx.Run(context.Background(), rootPath)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return res
}

func TestRunClassifiesFilesInPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeVerilog(t, dir, "b/counter.v", counterSource)
	writeVerilog(t, dir, "a/Counter.sv", counterSource)
	writeVerilog(t, dir, "notes.txt", "if (en) done = 1;")

	idx := NewWithConfig(defaultTestConfig(filepath.Join(dir, ".cache"), false))
	res := runIndexerForTest(t, idx, dir)

	if res.Stats.Files != 2 || res.Stats.Extracted != 2 || res.Stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}
	var got []string
	for _, r := range res.Records {
		got = append(got, r.SourceFile+":"+string(r.Category)+":"+r.Signal)
	}
	want := []string{
		"counter.sv:Control:en",
		"counter.sv:Status:done",
		"counter.v:Control:en",
		"counter.v:Status:done",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if res.Stats.ByCategory[asset.Control] != 2 || res.Stats.ByCategory[asset.Status] != 2 {
		t.Fatalf("unexpected counts: %v", res.Stats.ByCategory)
	}
}

func TestRunHonorsCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	writeVerilog(t, dir, "counter.v", counterSource)
	cfg := defaultTestConfig(filepath.Join(dir, ".cache"), false)
	cfg.Categories = []string{"status"}

	res := runIndexerForTest(t, NewWithConfig(cfg), dir)
	if len(res.Records) != 1 || res.Records[0].Category != asset.Status {
		t.Fatalf("expected only the Status record, got %+v", res.Records)
	}
}

func TestRunEmptyTree(t *testing.T) {
	res := runIndexerForTest(t, NewWithConfig(defaultTestConfig(".cache", false)), t.TempDir())
	if len(res.Records) != 0 || res.Stats.Files != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestRunMissingRoot(t *testing.T) {
	idx := NewWithConfig(defaultTestConfig(".cache", false))
	if _, err := idx.Run(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestCacheReuseAvoidsReextract(t *testing.T) {
	dir := t.TempDir()
	writeVerilog(t, dir, "counter.v", counterSource)
	cfg := defaultTestConfig(filepath.Join(dir, ".cache"), true)

	var count int32
	idx := NewWithConfig(cfg)
	idx.extractorFactory = func() FactsExtractor {
		return &countingExtractor{inner: extractor.New(cfg.Stoplist), count: &count}
	}
	first := runIndexerForTest(t, idx, dir)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected 1 extract on first run, got %d", got)
	}

	var count2 int32
	idx2 := NewWithConfig(cfg)
	idx2.extractorFactory = func() FactsExtractor {
		return &countingExtractor{inner: extractor.New(cfg.Stoplist), count: &count2}
	}
	second := runIndexerForTest(t, idx2, dir)
	if got := atomic.LoadInt32(&count2); got != 0 {
		t.Fatalf("expected cache hit on second run, got %d extracts", got)
	}
	if second.Stats.CacheHits != 1 {
		t.Fatalf("expected 1 cache hit, got %+v", second.Stats)
	}
	if diff := cmp.Diff(first.Records, second.Records); diff != "" {
		t.Fatalf("cached records differ (-first +second):\n%s", diff)
	}
}

func TestCacheInvalidatedByContentAndVersion(t *testing.T) {
	dir := t.TempDir()
	file := writeVerilog(t, dir, "counter.v", counterSource)
	cfg := defaultTestConfig(filepath.Join(dir, ".cache"), true)

	run := func(version string) int32 {
		var count int32
		idx := NewWithConfig(cfg)
		idx.cacheVersionOverride = version
		idx.extractorFactory = func() FactsExtractor {
			return &countingExtractor{inner: extractor.New(cfg.Stoplist), count: &count}
		}
		runIndexerForTest(t, idx, dir)
		return atomic.LoadInt32(&count)
	}

	if got := run("v1"); got != 1 {
		t.Fatalf("first run extracts = %d", got)
	}
	if got := run("v2"); got != 1 {
		t.Fatalf("version change should re-extract, got %d", got)
	}
	if err := os.WriteFile(file, []byte(counterSource+"\n// edited\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got := run("v2"); got != 1 {
		t.Fatalf("content change should re-extract, got %d", got)
	}
	if got := run("v2"); got != 0 {
		t.Fatalf("unchanged file should hit cache, got %d", got)
	}
}

func TestCacheDisabledByEnv(t *testing.T) {
	t.Setenv("ASSET_SCAN_CACHE", "0")
	cfg := defaultTestConfig(".cache", true)
	if cacheEnabled(cfg) {
		t.Fatalf("ASSET_SCAN_CACHE=0 should disable the cache")
	}
}

func TestCacheVersionTracksStoplist(t *testing.T) {
	a := NewWithConfig(defaultTestConfig(".cache", true))
	cfg := defaultTestConfig(".cache", true)
	cfg.Stoplist = []string{"clr"}
	b := NewWithConfig(cfg)
	if a.cacheVersion() == b.cacheVersion() {
		t.Fatalf("different stoplists share cache version %q", a.cacheVersion())
	}
}

func TestPanicIsolatedToFile(t *testing.T) {
	dir := t.TempDir()
	writeVerilog(t, dir, "bad.v", counterSource)
	writeVerilog(t, dir, "good.v", counterSource)
	cfg := defaultTestConfig(filepath.Join(dir, ".cache"), false)

	idx := NewWithConfig(cfg)
	idx.extractorFactory = func() FactsExtractor {
		return &panickingExtractor{inner: extractor.New(cfg.Stoplist), bad: "bad.v"}
	}
	res := runIndexerForTest(t, idx, dir)

	if len(res.Errors) != 1 || filepath.Base(res.Errors[0].File) != "bad.v" {
		t.Fatalf("expected one error for bad.v, got %+v", res.Errors)
	}
	if len(res.Files) != 1 || filepath.Base(res.Files[0].Path) != "good.v" {
		t.Fatalf("expected good.v to be scanned, got %+v", res.Files)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected records from good.v, got %+v", res.Records)
	}
}

func TestContractViolationIsolatedToFile(t *testing.T) {
	dir := t.TempDir()
	writeVerilog(t, dir, "bad.v", counterSource)
	writeVerilog(t, dir, "good.v", counterSource)
	cfg := defaultTestConfig(filepath.Join(dir, ".cache"), false)

	idx := NewWithConfig(cfg)
	idx.extractorFactory = func() FactsExtractor {
		return &malformedExtractor{inner: extractor.New(cfg.Stoplist), bad: "bad.v"}
	}
	res := runIndexerForTest(t, idx, dir)

	if len(res.Errors) != 1 || filepath.Base(res.Errors[0].File) != "bad.v" {
		t.Fatalf("expected bad.v to be rejected, got %+v", res.Errors)
	}
	if !strings.Contains(res.Errors[0].Message, "record contract violation") {
		t.Fatalf("unexpected error message %q", res.Errors[0].Message)
	}
	if res.Stats.Failed != 1 || len(res.Records) != 2 {
		t.Fatalf("expected good.v records only, got stats %+v records %+v", res.Stats, res.Records)
	}
	for _, r := range res.Records {
		if r.SourceFile != "good.v" {
			t.Fatalf("record from rejected file leaked: %+v", r)
		}
	}
}

func TestFileTimeoutRecordedAsError(t *testing.T) {
	dir := t.TempDir()
	writeVerilog(t, dir, "slow.v", counterSource)
	cfg := defaultTestConfig(filepath.Join(dir, ".cache"), false)
	cfg.Analysis.FileTimeout = "20ms"

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	idx := NewWithConfig(cfg)
	idx.extractorFactory = func() FactsExtractor { return &blockingExtractor{release: release} }
	res := runIndexerForTest(t, idx, dir)

	if res.Stats.Failed != 1 || len(res.Errors) != 1 {
		t.Fatalf("expected one timed out file, got %+v", res.Stats)
	}
}

func TestExtractWithTimeoutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release := make(chan struct{})
	defer close(release)

	_, err := extractWithTimeout(ctx, time.Minute, func() extractor.FileFacts {
		<-release
		return extractor.FileFacts{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRelPath(t *testing.T) {
	if got := RelPath("/work", "/work/rtl/top.v"); got != filepath.Join("rtl", "top.v") {
		t.Fatalf("RelPath = %q", got)
	}
}
