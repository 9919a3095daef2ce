package extractor

import (
	"fmt"
	"os"

	"github.com/robert-at-pretension-io/verilog-assets/internal/source"
)

// Version identifies the extraction rules; cached facts from another
// version are discarded.
const Version = "3"

// Extractor turns Verilog/SystemVerilog sources into FileFacts
type Extractor struct {
	stoplist []string
}

// FileFacts contains all extracted information from a single source file
type FileFacts struct {
	File           string             `json:"file"`
	Lines          int                `json:"lines"`
	Symbols        []Symbol           `json:"symbols"`
	Parameters     []ParameterBinding `json:"parameters"`
	ParameterDecls []ParameterDecl    `json:"parameter_decls"`
	Ports          []string           `json:"ports"`
	Inputs         []string           `json:"inputs"`
	Outputs        []string           `json:"outputs"`
	Conditionals   []UsageSignal      `json:"conditionals"`
	CaseSelectors  []UsageSignal      `json:"case_selectors"`
	Blocking       AssignmentPairs    `json:"blocking"`
	NonBlocking    AssignmentPairs    `json:"non_blocking"`
	Blocks         []source.Block     `json:"blocks"`
}

// Table returns the symbol table for the file
func (f FileFacts) Table() SymbolTable {
	return NewSymbolTable(f.Symbols)
}

// New creates an Extractor that drops the given condition operands
func New(stoplist []string) *Extractor {
	return &Extractor{stoplist: append([]string(nil), stoplist...)}
}

// Extract reads and analyzes one file
func (e *Extractor) Extract(filePath string) (FileFacts, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return FileFacts{File: filePath}, fmt.Errorf("reading file: %w", err)
	}
	return e.ExtractBytes(filePath, content), nil
}

// ExtractBytes analyzes already loaded content. It never fails: text that
// does not match a rule contributes nothing.
func (e *Extractor) ExtractBytes(filePath string, content []byte) FileFacts {
	return e.ExtractDocument(filePath, source.Normalize(content))
}

// ExtractDocument runs the declaration and usage stages over a normalized document
func (e *Extractor) ExtractDocument(filePath string, doc source.Document) FileFacts {
	lines := doc.Lines

	bindings := ExtractParameters(lines)
	env := ParameterEnv(lines, bindings)
	declared := ExtractWidths(lines, bindings, env)
	table := NewSymbolTable(append(declared, ParameterSymbols(bindings)...))

	blocking, nonBlocking := ExtractAssignments(lines)

	return FileFacts{
		File:           filePath,
		Lines:          len(lines),
		Symbols:        table.Symbols(),
		Parameters:     bindings,
		ParameterDecls: ExtractParameterDecls(lines),
		Ports:          ExtractPorts(doc.Text()),
		Inputs:         mergeNames(ExtractInputs(lines), declaredOfKind(table, KindInput)),
		Outputs:        mergeNames(ExtractOutputs(lines), declaredOfKind(table, KindOutput)),
		Conditionals:   ExtractConditionals(lines, e.stoplist),
		CaseSelectors:  ExtractCaseOperands(lines),
		Blocking:       blocking,
		NonBlocking:    nonBlocking,
		Blocks:         source.TrackBlocks(lines),
	}
}

func declaredOfKind(table SymbolTable, kind string) []string {
	var out []string
	for _, s := range table.Symbols() {
		if s.Kind == kind {
			out = append(out, s.Name)
		}
	}
	return out
}

// mergeNames concatenates name lists, keeping the first occurrence
func mergeNames(lists ...[]string) []string {
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
