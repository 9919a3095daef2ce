package indexer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Environment switches for the timing trace
const (
	envTimingPath = "ASSET_SCAN_TIMING_JSONL"
	envTiming     = "ASSET_SCAN_TIMING"
)

// Scan stages, in the order a run passes through them
const (
	stageDiscover = "discover"
	stageAnalyze  = "analyze"
	stageContract = "contract"
	stagePolicy   = "policy"
	stageScan     = "scan"
)

// Per-file outcomes
const (
	outcomeExtracted = "extracted"
	outcomeCacheHit  = "cache_hit"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
)

// scanEvent is one line of the timing trace. File events carry the
// outcome and the number of records the file produced.
type scanEvent struct {
	Stage     string  `json:"stage"`
	File      string  `json:"file,omitempty"`
	Outcome   string  `json:"outcome,omitempty"`
	Records   int     `json:"records,omitempty"`
	OffsetMS  float64 `json:"offset_ms"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// scanTimer measures stage durations for Stats and, when a trace path is
// set, streams every stage and file event as JSONL.
type scanTimer struct {
	origin time.Time

	mu     sync.Mutex
	stages map[string]time.Duration
	out    *os.File
	enc    *json.Encoder
	err    error
}

func newScanTimer(origin time.Time, tracePath string) *scanTimer {
	st := &scanTimer{origin: origin, stages: map[string]time.Duration{}}
	if tracePath == "" {
		return st
	}
	f, err := os.Create(tracePath)
	if err != nil {
		st.err = err
		return st
	}
	st.out = f
	st.enc = json.NewEncoder(f)
	return st
}

// Err reports why the trace could not be opened
func (st *scanTimer) Err() error {
	return st.err
}

func (st *scanTimer) Close() {
	if st.out != nil {
		_ = st.out.Close()
	}
}

// Stage records the end of a stage that began at start
func (st *scanTimer) Stage(stage string, start time.Time) {
	elapsed := time.Since(start)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stages[stage] += elapsed
	st.emit(scanEvent{Stage: stage, OffsetMS: ms(start.Sub(st.origin)), ElapsedMS: ms(elapsed)})
}

// File records what a stage did with one file
func (st *scanTimer) File(stage, file, outcome string, records int, start time.Time, elapsed time.Duration) {
	if st.enc == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.emit(scanEvent{
		Stage:     stage,
		File:      file,
		Outcome:   outcome,
		Records:   records,
		OffsetMS:  ms(start.Sub(st.origin)),
		ElapsedMS: ms(elapsed),
	})
}

// emit must be called with mu held
func (st *scanTimer) emit(ev scanEvent) {
	if st.enc != nil {
		_ = st.enc.Encode(ev)
	}
}

// StagesMS returns the accumulated stage durations in milliseconds
func (st *scanTimer) StagesMS() map[string]float64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]float64, len(st.stages))
	for stage, d := range st.stages {
		out[stage] = ms(d)
	}
	return out
}

func ms(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// tracePath picks the timing trace destination. The JSONL variable names
// a file outright; --timing or ASSET_SCAN_TIMING place timing.jsonl in the
// scan root unless TimingPath is set.
func (idx *Indexer) tracePath(rootPath string) string {
	if p := os.Getenv(envTimingPath); p != "" {
		return p
	}
	switch {
	case idx.Timing && idx.TimingPath != "":
		return idx.TimingPath
	case idx.Timing, envBool(envTiming):
		return filepath.Join(rootPath, "timing.jsonl")
	}
	return ""
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
