// Package policy post-processes asset records with user-supplied Rego.
//
// Modules live in package assetscan and may define two rules over
// input.records (the record list, as JSON):
//
//	suppress contains i if { ... }                     # drop record i
//	overrides contains {"index": i, "cia": t} if { ... } # retag record i
//
// Either rule may be absent.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
)

const (
	suppressQuery  = "data.assetscan.suppress"
	overridesQuery = "data.assetscan.overrides"
)

// Engine evaluates policies against asset records
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
	modules []string
}

// Result is the outcome of Apply
type Result struct {
	Records    []asset.Record
	Suppressed int
	Overridden int
}

// Input is the data structure passed to OPA
type Input struct {
	Records []asset.Record `json:"records"`
}

// New creates a policy engine from every .rego file in policyDir
func New(policyDir string) (*Engine, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, fmt.Errorf("finding policy files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", policyDir)
	}
	sort.Strings(files)

	modules := make(map[string]string, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		modules[f] = string(content)
	}
	return NewFromModules(modules)
}

// NewFromModules creates a policy engine from named module sources
func NewFromModules(modules map[string]string) (*Engine, error) {
	engine := &Engine{queries: make(map[string]rego.PreparedEvalQuery)}

	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	var opts []func(*rego.Rego)
	for _, name := range names {
		opts = append(opts, rego.Module(name, modules[name]))
	}
	engine.modules = names

	for _, q := range []string{suppressQuery, overridesQuery} {
		query, err := rego.New(append(opts, rego.Query(q))...).PrepareForEval(context.Background())
		if err != nil {
			return nil, fmt.Errorf("preparing %s: %w", q, err)
		}
		engine.queries[q] = query
	}
	return engine, nil
}

// Modules returns the loaded module names
func (e *Engine) Modules() []string {
	return append([]string(nil), e.modules...)
}

// Apply evaluates the policies and returns the surviving records in order
func (e *Engine) Apply(ctx context.Context, records []asset.Record) (Result, error) {
	if records == nil {
		records = []asset.Record{}
	}
	inputMap, err := structToMap(Input{Records: records})
	if err != nil {
		return Result{}, fmt.Errorf("converting input: %w", err)
	}

	suppressed, err := e.evalSet(ctx, suppressQuery, inputMap)
	if err != nil {
		return Result{}, err
	}
	overrides, err := e.evalSet(ctx, overridesQuery, inputMap)
	if err != nil {
		return Result{}, err
	}

	drop := make(map[int]bool, len(suppressed))
	for _, v := range suppressed {
		if i, ok := toInt(v); ok {
			drop[i] = true
		}
	}
	retag := make(map[int]string, len(overrides))
	for _, v := range overrides {
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		i, ok := toInt(m["index"])
		if !ok {
			continue
		}
		retag[i] = getString(m, "cia")
	}

	res := Result{Records: make([]asset.Record, 0, len(records))}
	for i, r := range records {
		if drop[i] {
			res.Suppressed++
			continue
		}
		if tag, ok := retag[i]; ok && tag != "" && tag != r.CIA {
			r.CIA = tag
			res.Overridden++
		}
		res.Records = append(res.Records, r)
	}
	return res, nil
}

// evalSet runs a query whose value is a set. An undefined rule yields nothing.
func (e *Engine) evalSet(ctx context.Context, query string, input map[string]interface{}) ([]interface{}, error) {
	rs, err := e.queries[query].Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", query, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}
	values, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected a set, got %T", query, rs[0].Expressions[0].Value)
	}
	return values, nil
}

func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
