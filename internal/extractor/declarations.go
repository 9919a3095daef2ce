package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/verilog-assets/internal/source"
	"github.com/robert-at-pretension-io/verilog-assets/internal/widthexpr"
)

// Symbol kinds
const (
	KindInput     = "input"
	KindOutput    = "output"
	KindInout     = "inout"
	KindNet       = "net"
	KindParameter = "parameter"
)

// Symbol is a declared name with its resolved bit width
type Symbol struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Width int    `json:"width"`
	Line  int    `json:"line"`
}

// IsPort reports whether the symbol was declared with a direction
func (s Symbol) IsPort() bool {
	return s.Kind == KindInput || s.Kind == KindOutput || s.Kind == KindInout
}

// SymbolTable maps names to their first declaration
type SymbolTable struct {
	byName map[string]Symbol
	order  []string
}

// NewSymbolTable builds a table; the first declaration of a name wins.
func NewSymbolTable(symbols []Symbol) SymbolTable {
	t := SymbolTable{byName: make(map[string]Symbol, len(symbols))}
	for _, s := range symbols {
		if s.Name == "" || s.Width < 1 {
			continue
		}
		if _, ok := t.byName[s.Name]; ok {
			continue
		}
		t.byName[s.Name] = s
		t.order = append(t.order, s.Name)
	}
	return t
}

// Lookup returns the symbol for name
func (t SymbolTable) Lookup(name string) (Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Width returns the width of name, or false when it has none
func (t SymbolTable) Width(name string) (int, bool) {
	s, ok := t.byName[name]
	return s.Width, ok
}

// Symbols returns the symbols in declaration order
func (t SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}

// Len returns the number of symbols
func (t SymbolTable) Len() int {
	return len(t.order)
}

// ParameterBinding is a parameter consumed as an upper index: Folded is the
// declared value minus one.
type ParameterBinding struct {
	Name   string `json:"name"`
	Folded int    `json:"folded"`
	Line   int    `json:"line"`
}

// ParameterDecl is a parameter or localparam name, tagged when declared as parameter bit
type ParameterDecl struct {
	Name string `json:"name"`
	Bit  bool   `json:"bit"`
	Line int    `json:"line"`
}

// ExtractParameters returns one binding per `parameter <name> = <integer>`.
func ExtractParameters(lines []source.Line) []ParameterBinding {
	var out []ParameterBinding
	for _, l := range lines {
		for _, m := range matchParameter(l.Code) {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			out = append(out, ParameterBinding{Name: m[0], Folded: v - 1, Line: l.Number})
		}
	}
	return out
}

// ParameterEnv evaluates every parameter and localparam with a constant
// value, in declaration order, so later constants may use earlier ones.
func ParameterEnv(lines []source.Line, bindings []ParameterBinding) widthexpr.Env {
	env := make(widthexpr.Env, len(bindings))
	for _, b := range bindings {
		env[b.Name] = b.Folded + 1
	}
	for _, l := range lines {
		for _, m := range matchConstant(l.Code) {
			if _, ok := env[m[0]]; ok {
				continue
			}
			if v, err := widthexpr.Eval(m[1], env); err == nil {
				env[m[0]] = v
			}
		}
	}
	return env
}

// ExtractParameterDecls returns the parameter bit declarations followed by
// every parameter/localparam name, per line. A parameter bit therefore
// appears in both groups.
func ExtractParameterDecls(lines []source.Line) []ParameterDecl {
	var bits, generic []ParameterDecl
	for _, l := range lines {
		if m := matchParameterBit(l.Code); m != nil {
			bits = append(bits, ParameterDecl{Name: m[0], Bit: true, Line: l.Number})
		}
		for _, name := range matchParameterNames(strings.TrimSpace(l.Code)) {
			generic = append(generic, ParameterDecl{Name: name, Line: l.Number})
		}
	}
	return append(bits, generic...)
}

// Substituter rewrites parameter names inside declaration text.
type Substituter struct {
	rules []substitution
}

type substitution struct {
	trigger *regexp.Regexp
	bound   *regexp.Regexp
	bare    *regexp.Regexp
	folded  string
	value   string
}

// NewSubstituter compiles the rewrite rules for bindings.
func NewSubstituter(bindings []ParameterBinding) *Substituter {
	s := &Substituter{}
	for _, b := range bindings {
		name := regexp.QuoteMeta(b.Name)
		s.rules = append(s.rules, substitution{
			trigger: regexp.MustCompile(`\b` + name + `\s*-\s*1\b`),
			bound:   regexp.MustCompile(`([\[:]\s*)` + name + `\s*-\s*1(\s*[:\]])`),
			bare:    regexp.MustCompile(`\b` + name + `\b`),
			folded:  strconv.Itoa(b.Folded),
			value:   strconv.Itoa(b.Folded + 1),
		})
	}
	return s
}

// Apply rewrites code. For each binding used as NAME-1, a whole bound NAME-1
// becomes the folded value, so [WIDTH-1:0] reads [7:0]; remaining uses of the
// name become its declared value in parentheses.
func (s *Substituter) Apply(code string) string {
	for _, r := range s.rules {
		if !r.trigger.MatchString(code) {
			continue
		}
		code = r.bound.ReplaceAllString(code, "${1}"+r.folded+"${2}")
		code = r.bare.ReplaceAllString(code, "("+r.value+")")
	}
	return code
}

// SubstituteParameters applies the bindings to a single piece of code.
func SubstituteParameters(code string, bindings []ParameterBinding) string {
	return NewSubstituter(bindings).Apply(code)
}

// declaration is one comma-separated segment of a port or net declaration.
type declaration struct {
	kind  string
	msb   string
	lsb   string
	names []string
	line  int
}

// ExtractWidths resolves the width of every port and net declaration.
// Bounds are rewritten with the parameter bindings, then evaluated against
// env; a declaration whose range cannot be evaluated is skipped.
func ExtractWidths(lines []source.Line, bindings []ParameterBinding, env widthexpr.Env) []Symbol {
	subst := NewSubstituter(bindings)
	rewritten := make([]source.Line, len(lines))
	for i, l := range lines {
		rewritten[i] = source.Line{Number: l.Number, Code: subst.Apply(l.Code)}
	}

	var out []Symbol
	for _, d := range scanDeclarations(rewritten) {
		width := 1
		if d.msb != "" {
			w, err := widthexpr.Width(d.msb, d.lsb, env)
			if err != nil || w < 1 {
				continue
			}
			width = w
		}
		for _, name := range d.names {
			out = append(out, Symbol{Name: name, Kind: d.kind, Width: width, Line: d.line})
		}
	}
	return out
}

// scanDeclarations splits code into segments at ',', ';', '(' and ')' and
// groups them into declarations. A segment starting with a direction or net
// keyword opens a declaration; later comma-separated plain names join it.
func scanDeclarations(lines []source.Line) []declaration {
	type segment struct {
		text string
		sep  byte // separator preceding the segment
		line int
	}

	var (
		segs  []segment
		cur   strings.Builder
		sep   byte
		start = 0
		depth = 0 // [] and {} nesting; separators inside are literal
	)
	for _, l := range lines {
		code := blankStrings(l.Code) + "\n"
		for i := 0; i < len(code); i++ {
			c := code[i]
			if start == 0 && c != ' ' && c != '\t' && c != '\n' {
				start = l.Number
			}
			switch {
			case c == '[' || c == '{':
				depth++
			case (c == ']' || c == '}') && depth > 0:
				depth--
			case depth == 0 && (c == ',' || c == ';' || c == '(' || c == ')'):
				segs = append(segs, segment{text: cur.String(), sep: sep, line: start})
				cur.Reset()
				sep = c
				start = 0
				continue
			}
			cur.WriteByte(c)
		}
	}
	segs = append(segs, segment{text: cur.String(), sep: sep, line: start})

	var (
		out  []declaration
		open *declaration
	)
	for _, s := range segs {
		fields := strings.Fields(s.text)
		if len(fields) == 0 {
			open = nil
			continue
		}
		if kind, ok := declarationKind(fields); ok {
			d, ok := parseDeclaration(kind, s.text)
			if !ok {
				open = nil
				continue
			}
			d.line = s.line
			out = append(out, d)
			open = &out[len(out)-1]
			continue
		}
		if open != nil && s.sep == ',' {
			if name, ok := declaredName(s.text); ok {
				open.names = append(open.names, name)
				continue
			}
		}
		open = nil
	}
	return out
}

// declarationKind inspects the leading keywords of a segment
func declarationKind(fields []string) (string, bool) {
	first := fields[0]
	if i := strings.IndexByte(first, '['); i > 0 {
		first = first[:i]
	}
	if kind, ok := directionKeywords[first]; ok {
		return kind, true
	}
	if netKeywords[first] {
		return KindNet, true
	}
	return "", false
}

// parseDeclaration extracts the packed range and the first name
func parseDeclaration(kind, text string) (declaration, bool) {
	d := declaration{kind: kind}
	body := text
	if eq := strings.IndexByte(body, '='); eq >= 0 {
		body = body[:eq]
	}
	if loc := rangePattern.FindStringIndex(body); loc != nil {
		bounds := body[loc[0]+1 : loc[1]-1]
		colon := strings.IndexByte(bounds, ':')
		if colon < 0 {
			return d, false
		}
		d.msb = strings.TrimSpace(bounds[:colon])
		d.lsb = strings.TrimSpace(bounds[colon+1:])
		body = body[:loc[0]] + " " + body[loc[1]:]
	}
	name, ok := declaredName(body)
	if !ok {
		return d, false
	}
	d.names = []string{name}
	return d, true
}

// declaredName returns the last plain identifier of a declaration segment,
// ignoring keywords, unpacked dimensions and initializers.
func declaredName(text string) (string, bool) {
	if eq := strings.IndexByte(text, '='); eq >= 0 {
		text = text[:eq]
	}
	text = rangePattern.ReplaceAllString(text, " ")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	name := fields[len(fields)-1]
	if typeKeywords[name] || !isIdent(name) {
		return "", false
	}
	for _, f := range fields[:len(fields)-1] {
		if !typeKeywords[f] {
			return "", false
		}
	}
	return name, true
}

// ParameterSymbols turns integer parameter bindings into symbols of width 32.
func ParameterSymbols(bindings []ParameterBinding) []Symbol {
	out := make([]Symbol, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, Symbol{Name: b.Name, Kind: KindParameter, Width: 32, Line: b.Line})
	}
	return out
}

// ExtractPorts returns the port names listed in every module header, in
// order. ANSI and classic headers are both accepted; a #(...) parameter
// port list is skipped.
func ExtractPorts(text string) []string {
	text = blankStrings(text)
	var (
		ports []string
		seen  = map[string]bool{}
	)
	for _, loc := range modulePattern.FindAllStringIndex(text, -1) {
		i := skipSpace(text, loc[1])
		if i < len(text) && text[i] == '#' {
			i = skipSpace(text, i+1)
			if i >= len(text) || text[i] != '(' {
				continue
			}
			params, ok := balanced(text, i)
			if !ok {
				continue
			}
			i = skipSpace(text, i+len(params)+2)
		}
		if i >= len(text) || text[i] != '(' {
			continue
		}
		list, ok := balanced(text, i)
		if !ok {
			continue
		}
		for _, part := range splitTopLevel(list, ',') {
			name, ok := portName(part)
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			ports = append(ports, name)
		}
	}
	return ports
}

func portName(part string) (string, bool) {
	if eq := strings.IndexByte(part, '='); eq >= 0 {
		part = part[:eq]
	}
	part = rangePattern.ReplaceAllString(part, " ")
	fields := strings.Fields(part)
	if len(fields) == 0 {
		return "", false
	}
	name := fields[len(fields)-1]
	if typeKeywords[name] || !isIdent(name) {
		return "", false
	}
	return name, true
}

func skipSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n') {
		i++
	}
	return i
}

// splitTopLevel splits s at sep outside (), [] and {}.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		last  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}
