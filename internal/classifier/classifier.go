// Package classifier maps extracted facts to asset records.
//
// Every category is a rule run by the same engine: a token source, an
// optional name resolution through the assignment lists, and a predicate
// over the resolved symbol. Rules run in a fixed order (Control, Status,
// Config, Data, Param) and each file's records keep that order.
package classifier

import (
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/extractor"
)

// Thresholds are the width bounds the rules test against
type Thresholds struct {
	ControlWidth int
	ConfigMin    int
	ConfigMax    int
	StatusWidth  int
	DataMinWidth int
}

// DefaultThresholds returns the stock bounds
func DefaultThresholds() Thresholds {
	return Thresholds{ControlWidth: 1, ConfigMin: 2, ConfigMax: 9, StatusWidth: 1, DataMinWidth: 10}
}

// Classifier applies the category rules to one file at a time.
// It holds no per-file state and is safe for concurrent use.
type Classifier struct {
	rules   []rule
	allowed map[asset.Category]bool
}

// New builds a classifier. An empty category list enables every category.
func New(th Thresholds, categories []asset.Category) *Classifier {
	c := &Classifier{rules: rules(th)}
	if len(categories) > 0 {
		c.allowed = make(map[asset.Category]bool, len(categories))
		for _, cat := range categories {
			c.allowed[cat] = true
		}
	}
	return c
}

// Enabled reports whether records of cat are emitted
func (c *Classifier) Enabled(cat asset.Category) bool {
	return c.allowed == nil || c.allowed[cat]
}

// Classify returns the asset records for one file
func (c *Classifier) Classify(facts extractor.FileFacts) []asset.Record {
	v := newView(facts)
	var out []asset.Record
	for _, r := range c.rules {
		for _, rec := range r.apply(v) {
			if !c.Enabled(rec.Category) {
				continue
			}
			out = append(out, rec)
		}
	}
	if c.Enabled(asset.Param) {
		out = append(out, parameters(v)...)
	}
	return out
}

// FileLabel is the source-file column: the lowercased base name
func FileLabel(path string) string {
	return strings.ToLower(filepath.Base(path))
}

// view is the per-file lookup state shared by the rules
type view struct {
	facts   extractor.FileFacts
	table   extractor.SymbolTable
	inputs  map[string]bool
	outputs map[string]bool
	ports   map[string]bool
	file    string

	// matched holds signals already emitted by an earlier rule
	matched map[string]bool
	emitted map[string]bool
}

func newView(f extractor.FileFacts) *view {
	return &view{
		facts:   f,
		table:   f.Table(),
		inputs:  set(f.Inputs),
		outputs: set(f.Outputs),
		ports:   set(f.Ports),
		file:    FileLabel(f.File),
		matched: map[string]bool{},
		emitted: map[string]bool{},
	}
}

func set(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// resolve maps a usage token to the signal it stands for. A declared input
// resolves to itself (direct). Otherwise the aligned right-hand side of the
// first blocking assignment to the token is used, then the first
// non-blocking one. A target with no aligned source resolves to nothing.
func (v *view) resolve(token string) (name string, direct, ok bool) {
	if v.inputs[token] {
		return token, true, true
	}
	if v.facts.Blocking.Contains(token) {
		rhs, ok := v.facts.Blocking.SourceOf(token)
		return rhs, false, ok
	}
	if v.facts.NonBlocking.Contains(token) {
		rhs, ok := v.facts.NonBlocking.SourceOf(token)
		return rhs, false, ok
	}
	return "", false, false
}

func (v *view) assigned(name string) bool {
	return v.facts.Blocking.Contains(name) || v.facts.NonBlocking.Contains(name)
}

func (v *view) record(name string, width asset.Width, cat asset.Category, context, cia string) (asset.Record, bool) {
	key := string(cat) + "|" + context + "|" + name
	if v.emitted[key] {
		return asset.Record{}, false
	}
	v.emitted[key] = true
	v.matched[name] = true
	return asset.Record{
		Signal:     name,
		Width:      width,
		Category:   cat,
		AppearedIn: context,
		SourceFile: v.file,
		CIA:        cia,
	}, true
}

func tokensOf(usages []extractor.UsageSignal) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	for _, u := range usages {
		if seen[u.Token] {
			continue
		}
		seen[u.Token] = true
		out = append(out, u.Token)
	}
	return out
}
