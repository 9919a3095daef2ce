package classifier

import (
	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/extractor"
)

// CIA tags per rule
const (
	ciaControl  = "A"
	ciaConfig   = "IA"
	ciaStatus   = "I"
	ciaDataPort = "CIA"
	ciaDataNet  = "C"
	ciaParamBit = "A"
	ciaParam    = "I"
)

// candidate is a resolved signal offered to a rule's predicate
type candidate struct {
	name   string
	symbol extractor.Symbol
	direct bool
}

type rule struct {
	category asset.Category
	context  string

	// tokens yields the usage tokens the rule inspects
	tokens func(v *view) []string

	// resolve maps tokens through the assignment lists before the predicate runs
	resolve bool

	accept func(v *view, c candidate) bool
	cia    func(c candidate) string
}

func fixed(tag string) func(candidate) string {
	return func(candidate) string { return tag }
}

func rules(th Thresholds) []rule {
	configWidth := func(w int) bool { return w >= th.ConfigMin && w <= th.ConfigMax }

	return []rule{
		{
			category: asset.Control,
			context:  asset.ContextIfElse,
			tokens:   func(v *view) []string { return tokensOf(v.facts.Conditionals) },
			resolve:  true,
			accept: func(v *view, c candidate) bool {
				return v.inputs[c.name] && c.symbol.Width == th.ControlWidth
			},
			cia: fixed(ciaControl),
		},
		{
			category: asset.Status,
			context:  asset.ContextAssignment,
			tokens:   func(v *view) []string { return v.facts.Outputs },
			accept: func(v *view, c candidate) bool {
				return v.assigned(c.name) && c.symbol.Width == th.StatusWidth
			},
			cia: fixed(ciaStatus),
		},
		{
			category: asset.Config,
			context:  asset.ContextIfElse,
			tokens:   func(v *view) []string { return tokensOf(v.facts.Conditionals) },
			resolve:  true,
			accept: func(v *view, c candidate) bool {
				return v.inputs[c.name] && configWidth(c.symbol.Width)
			},
			cia: fixed(ciaConfig),
		},
		{
			category: asset.Config,
			context:  asset.ContextCase,
			tokens:   func(v *view) []string { return tokensOf(v.facts.CaseSelectors) },
			resolve:  true,
			accept: func(v *view, c candidate) bool {
				if c.direct && !v.ports[c.name] {
					return false
				}
				return v.inputs[c.name] && configWidth(c.symbol.Width)
			},
			cia: fixed(ciaConfig),
		},
		{
			category: asset.Data,
			context:  asset.ContextAssignment,
			tokens: func(v *view) []string {
				return mergeTargets(v.facts.Blocking.LHS, v.facts.NonBlocking.LHS)
			},
			accept: func(v *view, c candidate) bool {
				if v.matched[c.name] || c.symbol.Kind == extractor.KindParameter {
					return false
				}
				return c.symbol.Width >= th.DataMinWidth
			},
			cia: func(c candidate) string {
				if c.symbol.IsPort() {
					return ciaDataPort
				}
				return ciaDataNet
			},
		},
	}
}

// apply runs one rule over the view
func (r rule) apply(v *view) []asset.Record {
	var out []asset.Record
	for _, token := range r.tokens(v) {
		c := candidate{name: token, direct: true}
		if r.resolve {
			name, direct, ok := v.resolve(token)
			if !ok {
				continue
			}
			c.name, c.direct = name, direct
		}
		sym, ok := v.table.Lookup(c.name)
		if !ok {
			continue
		}
		c.symbol = sym
		if !r.accept(v, c) {
			continue
		}
		if rec, ok := v.record(c.name, asset.Bits(sym.Width), r.category, r.context, r.cia(c)); ok {
			out = append(out, rec)
		}
	}
	return out
}

func mergeTargets(lists ...[]string) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	for _, list := range lists {
		for _, name := range list {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// parameters emits one record per parameter bit declaration and one per
// parameter/localparam name. A parameter bit yields both.
func parameters(v *view) []asset.Record {
	var out []asset.Record
	for _, d := range v.facts.ParameterDecls {
		width, context, cia := asset.Labeled(asset.LabelMultiBit), asset.ContextParameter, ciaParam
		if d.Bit {
			width, context, cia = asset.Labeled(asset.LabelOneBit), asset.ContextParameterBit, ciaParamBit
		}
		if rec, ok := v.record(d.Name, width, asset.Param, context, cia); ok {
			out = append(out, rec)
		}
	}
	return out
}
