package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/extractor"
)

// Tables is the relational fact model exported by `asset-scan facts`.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Files          []FileRow          `json:"files"`
	Symbols        []SymbolRow        `json:"symbols"`
	Ports          []PortRow          `json:"ports"`
	Parameters     []ParameterRow     `json:"parameters"`
	ParameterDecls []ParameterDeclRow `json:"parameter_decls"`
	Usages         []UsageRow         `json:"usages"`
	Assignments    []AssignmentRow    `json:"assignments"`
	Blocks         []BlockRow         `json:"blocks"`
	Assets         []AssetRow         `json:"assets"`
}

type FileRow struct {
	Path  string `json:"path"`
	Lines int    `json:"lines"`
}

type SymbolRow struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Width int    `json:"width"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

type PortRow struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	File     string `json:"file"`
}

type ParameterRow struct {
	Name   string `json:"name"`
	Folded int    `json:"folded"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

type ParameterDeclRow struct {
	Name string `json:"name"`
	Bit  bool   `json:"bit"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// UsageRow is a condition operand or case selector
type UsageRow struct {
	Token   string `json:"token"`
	Context string `json:"context"`
	File    string `json:"file"`
	Line    int    `json:"line"`
}

// AssignmentRow is one aligned lhs/rhs pair; Index is its position in the
// per-kind sequence.
type AssignmentRow struct {
	LHS         string `json:"lhs"`
	RHS         string `json:"rhs"`
	NonBlocking bool   `json:"non_blocking"`
	Index       int    `json:"index"`
	File        string `json:"file"`
	Line        int    `json:"line"`
}

type BlockRow struct {
	Kind  string `json:"kind"`
	File  string `json:"file"`
	Start int    `json:"start_line"`
	End   int    `json:"end_line"`
}

// AssetRow is a classified record keyed by the full source path
type AssetRow struct {
	Signal     string `json:"signal"`
	Width      string `json:"width"`
	Category   string `json:"category"`
	AppearedIn string `json:"appeared_in"`
	CIA        string `json:"cia"`
	File       string `json:"file"`
}

// BuildTables flattens per-file facts and the records classified from them.
// assets is keyed by FileFacts.File.
func BuildTables(files []extractor.FileFacts, assets map[string][]asset.Record) Tables {
	tables := emptyTables()

	seenFiles := make(map[string]bool)
	for _, f := range files {
		if !seenFiles[f.File] {
			seenFiles[f.File] = true
			tables.Files = append(tables.Files, FileRow{Path: f.File, Lines: f.Lines})
		}

		for _, s := range f.Symbols {
			tables.Symbols = append(tables.Symbols, SymbolRow{
				Name:  s.Name,
				Kind:  s.Kind,
				Width: s.Width,
				File:  f.File,
				Line:  s.Line,
			})
		}

		for i, p := range f.Ports {
			tables.Ports = append(tables.Ports, PortRow{Name: p, Position: i, File: f.File})
		}

		for _, p := range f.Parameters {
			tables.Parameters = append(tables.Parameters, ParameterRow{
				Name:   p.Name,
				Folded: p.Folded,
				File:   f.File,
				Line:   p.Line,
			})
		}

		for _, d := range f.ParameterDecls {
			tables.ParameterDecls = append(tables.ParameterDecls, ParameterDeclRow{
				Name: d.Name,
				Bit:  d.Bit,
				File: f.File,
				Line: d.Line,
			})
		}

		for _, u := range f.Conditionals {
			tables.Usages = append(tables.Usages, UsageRow{Token: u.Token, Context: u.Context, File: f.File, Line: u.Line})
		}
		for _, u := range f.CaseSelectors {
			tables.Usages = append(tables.Usages, UsageRow{Token: u.Token, Context: u.Context, File: f.File, Line: u.Line})
		}

		tables.Assignments = appendAssignments(tables.Assignments, f.File, f.Blocking, false)
		tables.Assignments = appendAssignments(tables.Assignments, f.File, f.NonBlocking, true)

		for _, b := range f.Blocks {
			tables.Blocks = append(tables.Blocks, BlockRow{Kind: b.Kind, File: f.File, Start: b.Start, End: b.End})
		}

		for _, r := range assets[f.File] {
			tables.Assets = append(tables.Assets, AssetRow{
				Signal:     r.Signal,
				Width:      r.Width.String(),
				Category:   string(r.Category),
				AppearedIn: r.AppearedIn,
				CIA:        r.CIA,
				File:       f.File,
			})
		}
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

func appendAssignments(rows []AssignmentRow, file string, pairs extractor.AssignmentPairs, nonBlocking bool) []AssignmentRow {
	for i := 0; i < pairs.Len(); i++ {
		row := AssignmentRow{LHS: pairs.LHS[i], NonBlocking: nonBlocking, Index: i, File: file}
		if i < len(pairs.RHS) {
			row.RHS = pairs.RHS[i]
		}
		if i < len(pairs.Lines) {
			row.Line = pairs.Lines[i]
		}
		rows = append(rows, row)
	}
	return rows
}
