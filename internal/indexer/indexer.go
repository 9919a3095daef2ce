package indexer

// The indexer drives one scan: discover files, extract facts per file
// (through the content-hash cache), classify, then merge the per-file
// records in path order. Files are independent, so each runs as its own
// task on a bounded errgroup; a failure or panic in one file is recorded
// as a FileError and never aborts the others. Each file's records are
// checked against the CUE contract before anything downstream sees them; a
// file that breaks the contract is rejected the same way.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/classifier"
	"github.com/robert-at-pretension-io/verilog-assets/internal/config"
	"github.com/robert-at-pretension-io/verilog-assets/internal/extractor"
	"github.com/robert-at-pretension-io/verilog-assets/internal/facts"
	"github.com/robert-at-pretension-io/verilog-assets/internal/observability"
	"github.com/robert-at-pretension-io/verilog-assets/internal/policy"
	"github.com/robert-at-pretension-io/verilog-assets/internal/validator"
)

// ErrFileTimeout is recorded when a file exceeds its analysis budget
var ErrFileTimeout = errors.New("file analysis timed out")

// Indexer runs scans over a directory tree
type Indexer struct {
	// Configuration loaded from asset_scan.{json,toml,yaml}
	Config *config.Config

	Logger *zap.Logger

	// Policy post-processes records when set
	Policy *policy.Engine

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// Optional extractor factory (for tests)
	extractorFactory func() FactsExtractor

	// Optional cache version override (for tests)
	cacheVersionOverride string
}

// FactsExtractor abstracts extraction for caching tests
type FactsExtractor interface {
	ExtractBytes(path string, content []byte) extractor.FileFacts
}

// Result is the outcome of one scan
type Result struct {
	Root     string                `json:"root"`
	Started  time.Time             `json:"started"`
	Duration time.Duration         `json:"duration"`
	Files    []FileResult          `json:"files"`
	Records  []asset.Record        `json:"records"`
	Errors   []FileError           `json:"errors,omitempty"`
	Stats    Stats                 `json:"stats"`
	Facts    []extractor.FileFacts `json:"-"`
}

// FileResult is the per-file breakdown
type FileResult struct {
	Path     string         `json:"path"`
	Records  []asset.Record `json:"records"`
	Cached   bool           `json:"cached"`
	Duration time.Duration  `json:"duration"`
}

// FileError is a file that could not be analyzed
type FileError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (e FileError) Error() string {
	return e.File + ": " + e.Message
}

// Stats summarizes a scan
type Stats struct {
	Files      int                    `json:"files"`
	Extracted  int                    `json:"extracted"`
	CacheHits  int                    `json:"cache_hits"`
	Failed     int                    `json:"failed"`
	Records    int                    `json:"records"`
	Suppressed int                    `json:"suppressed"`
	Overridden int                    `json:"overridden"`
	ByCategory map[asset.Category]int `json:"by_category"`

	// StageMS is the wall time spent in each stage
	StageMS map[string]float64 `json:"stage_ms"`
}

// Tables returns the relational facts for the scan
func (r *Result) Tables() facts.Tables {
	byFile := make(map[string][]asset.Record, len(r.Files))
	for _, f := range r.Files {
		byFile[f.Path] = f.Records
	}
	return facts.BuildTables(r.Facts, byFile)
}

// New creates a new Indexer with default configuration
func New() *Indexer {
	return &Indexer{Config: config.DefaultConfig(), Logger: zap.NewNop()}
}

// NewWithConfig creates a new Indexer with the given configuration
func NewWithConfig(cfg *config.Config) *Indexer {
	idx := New()
	idx.Config = cfg
	return idx
}

func (idx *Indexer) newExtractor() FactsExtractor {
	if idx.extractorFactory != nil {
		return idx.extractorFactory()
	}
	return extractor.New(idx.Config.Stoplist)
}

func (idx *Indexer) logger() *zap.Logger {
	if idx.Logger == nil {
		return zap.NewNop()
	}
	return idx.Logger
}

// fileOutcome is written by exactly one task, at its file's index
type fileOutcome struct {
	facts    extractor.FileFacts
	records  []asset.Record
	cached   bool
	duration time.Duration
	err      error
}

// Run executes one scan of rootPath
func (idx *Indexer) Run(ctx context.Context, rootPath string) (*Result, error) {
	runStart := time.Now()
	log := idx.logger()

	ctx, span := observability.Tracer.Start(ctx, "indexer.Run", trace.WithAttributes(attribute.String("root", rootPath)))
	defer span.End()

	timing := newScanTimer(runStart, idx.tracePath(rootPath))
	if err := timing.Err(); err != nil {
		log.Warn("timing output disabled", zap.Error(err))
	}
	defer timing.Close()

	if idx.Config == nil {
		cfg, err := config.Load(rootPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		idx.Config = cfg
	}
	cfg := idx.Config

	// 1. Discover files
	stepStart := time.Now()
	files, err := cfg.ResolveFiles(rootPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scanning files: %w", err)
	}
	log.Info("discovered source files", zap.String("root", rootPath), zap.Int("files", len(files)))
	timing.Stage(stageDiscover, stepStart)

	// 2. Extract and classify, one task per file
	stepStart = time.Now()
	var cache *factsCache
	if cacheEnabled(cfg) {
		cache = newFactsCache(resolveCacheDir(rootPath, cfg), idx.cacheVersion())
		if err := cache.Load(); err != nil {
			log.Warn("cache disabled", zap.Error(err))
			cache = nil
		}
	}

	ext := idx.newExtractor()
	cls := classifier.New(thresholds(cfg), cfg.CategoryFilter())
	timeout := cfg.FileTimeout()
	outcomes := make([]fileOutcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(cfg))
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = idx.processFile(gctx, ext, cls, cache, file, timeout, timing)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}
	if cache != nil {
		if err := cache.Save(); err != nil {
			log.Warn("cache save failed", zap.Error(err))
		}
	}
	timing.Stage(stageAnalyze, stepStart)

	// 3. Contract check and merge, in path order
	stepStart = time.Now()
	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("initialize record validator: %w", err)
	}
	res := &Result{Root: rootPath, Started: runStart, Stats: Stats{Files: len(files)}}
	for i, file := range files {
		out := outcomes[i]
		if out.err == nil && len(out.records) > 0 {
			checkStart := time.Now()
			if err := v.ValidateRecords(out.records); err != nil {
				out.err = fmt.Errorf("record contract violation: %w", err)
				timing.File(stageContract, file, outcomeRejected, len(out.records), checkStart, time.Since(checkStart))
			}
		}
		if out.err != nil {
			res.Errors = append(res.Errors, FileError{File: file, Message: out.err.Error()})
			res.Stats.Failed++
			observability.FilesTotal.WithLabelValues(outcomeFailed).Inc()
			log.Warn("file skipped", zap.String("file", file), zap.Error(out.err))
			continue
		}
		if out.cached {
			res.Stats.CacheHits++
			observability.FilesTotal.WithLabelValues(outcomeCacheHit).Inc()
		} else {
			res.Stats.Extracted++
			observability.FilesTotal.WithLabelValues(outcomeExtracted).Inc()
		}
		observability.FileDuration.Observe(out.duration.Seconds())
		res.Facts = append(res.Facts, out.facts)
		res.Files = append(res.Files, FileResult{Path: file, Records: out.records, Cached: out.cached, Duration: out.duration})
		res.Records = append(res.Records, out.records...)
	}
	timing.Stage(stageContract, stepStart)

	// 4. Policy
	if idx.Policy != nil {
		stepStart = time.Now()
		pres, err := idx.Policy.Apply(ctx, res.Records)
		if err != nil {
			return nil, fmt.Errorf("apply policy: %w", err)
		}
		res.Records = pres.Records
		res.Stats.Suppressed = pres.Suppressed
		res.Stats.Overridden = pres.Overridden
		observability.PolicySuppressedTotal.Add(float64(pres.Suppressed))
		timing.Stage(stagePolicy, stepStart)
	}

	res.Stats.Records = len(res.Records)
	res.Stats.ByCategory = asset.Counts(res.Records)
	for cat, n := range res.Stats.ByCategory {
		observability.RecordsTotal.WithLabelValues(string(cat)).Add(float64(n))
	}

	res.Duration = time.Since(runStart)
	observability.RunDuration.Observe(res.Duration.Seconds())
	timing.Stage(stageScan, runStart)
	res.Stats.StageMS = timing.StagesMS()
	span.SetAttributes(attribute.Int("files", len(files)), attribute.Int("records", len(res.Records)))

	log.Info("scan complete",
		zap.Int("files", res.Stats.Files),
		zap.Int("records", res.Stats.Records),
		zap.Int("cache_hits", res.Stats.CacheHits),
		zap.Int("failed", res.Stats.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// processFile never returns a partial outcome: either err is set or the
// facts and records are complete.
func (idx *Indexer) processFile(ctx context.Context, ext FactsExtractor, cls *classifier.Classifier, cache *factsCache, file string, timeout time.Duration, timing *scanTimer) (out fileOutcome) {
	fileStart := time.Now()
	_, span := observability.Tracer.Start(ctx, "indexer.processFile", trace.WithAttributes(attribute.String("file", file)))
	defer func() {
		if r := recover(); r != nil {
			out = fileOutcome{err: fmt.Errorf("panic: %v", r)}
			idx.logger().Error("panic while analyzing file", zap.String("file", file), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
		out.duration = time.Since(fileStart)
		outcome := outcomeExtracted
		switch {
		case out.err != nil:
			outcome = outcomeFailed
			span.SetStatus(codes.Error, out.err.Error())
		case out.cached:
			outcome = outcomeCacheHit
		}
		timing.File(stageAnalyze, file, outcome, len(out.records), fileStart, out.duration)
		span.End()
	}()

	content, err := os.ReadFile(file)
	if err != nil {
		return fileOutcome{err: fmt.Errorf("reading file: %w", err)}
	}

	var contentHash string
	if cache != nil {
		contentHash = hashContent(content)
		ff, ok, err := cache.Get(file, contentHash)
		if err != nil {
			idx.logger().Debug("cache read failed", zap.String("file", file), zap.Error(err))
		}
		if ok {
			return fileOutcome{facts: ff, records: cls.Classify(ff), cached: true}
		}
	}

	ff, err := extractWithTimeout(ctx, timeout, func() extractor.FileFacts {
		return ext.ExtractBytes(file, content)
	})
	if err != nil {
		return fileOutcome{err: err}
	}
	if cache != nil {
		if err := cache.Put(file, contentHash, ff); err != nil {
			idx.logger().Debug("cache write failed", zap.String("file", file), zap.Error(err))
		}
	}
	return fileOutcome{facts: ff, records: cls.Classify(ff)}
}

// extractWithTimeout bounds fn by timeout. fn cannot be interrupted, so on
// timeout its goroutine is abandoned and finishes in the background.
func extractWithTimeout(ctx context.Context, timeout time.Duration, fn func() extractor.FileFacts) (extractor.FileFacts, error) {
	if timeout <= 0 {
		return fn(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		facts extractor.FileFacts
		panic any
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{panic: r}
			}
		}()
		done <- result{facts: fn()}
	}()

	select {
	case r := <-done:
		if r.panic != nil {
			panic(r.panic)
		}
		return r.facts, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return extractor.FileFacts{}, fmt.Errorf("%w after %s", ErrFileTimeout, timeout)
		}
		return extractor.FileFacts{}, ctx.Err()
	}
}

func workerLimit(cfg *config.Config) int {
	if n := cfg.Analysis.MaxParallelFiles; n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

func thresholds(cfg *config.Config) classifier.Thresholds {
	t := cfg.Thresholds
	return classifier.Thresholds{
		ControlWidth: t.ControlWidth,
		ConfigMin:    t.ConfigMin,
		ConfigMax:    t.ConfigMax,
		StatusWidth:  t.StatusWidth,
		DataMinWidth: t.DataMinWidth,
	}
}

func hashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// RelPath returns path relative to root for display, or path unchanged
func RelPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
