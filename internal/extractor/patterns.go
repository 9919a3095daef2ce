package extractor

import (
	"regexp"
	"strings"
)

var (
	// Pattern: parameter [type] [range] <name> = <integer>
	parameterPattern = regexp.MustCompile(`\bparameter\s+(?:(?:integer|int|bit|logic|unsigned|signed)\s+)?(?:\[[^\]]*\]\s*)?([a-z_][\w$]*)\s*=\s*(\d+)\b`)

	// Pattern: parameter|localparam [type] [range] <name> = <expr>
	constantPattern = regexp.MustCompile(`\b(?:parameter|localparam)\s+(?:(?:integer|int|bit|logic|unsigned|signed)\s+)?(?:\[[^\]]*\]\s*)?([a-z_][\w$]*)\s*=\s*([^,;)]+)`)

	// Pattern: parameter bit <name> = <integer>
	parameterBitPattern = regexp.MustCompile(`parameter\s+bit\s+([a-z_][\w$]*)\s*=\s*(\d+)`)

	// Pattern: line starting with parameter|localparam, optional range
	parameterHeaderPattern = regexp.MustCompile(`^\s*(?:parameter|localparam)\b\s*(?:\[[^\]]+\]\s*)?`)

	// Pattern: <name> = inside a parameter body (not ==)
	parameterNamePattern = regexp.MustCompile(`([a-z_][\w$]*)\s*=(?:[^=]|$)`)

	// Pattern: if ( at any position, including else if
	ifPattern = regexp.MustCompile(`\bif\s*\(`)

	// Pattern: case|casez|casex (
	casePattern = regexp.MustCompile(`\bcase[zx]?\s*\(`)

	// Pattern: condition operators, longest first
	conditionOperatorPattern = regexp.MustCompile(`===|!==|==|!=|<=|>=|\|\||&&|<|>`)

	// Pattern: module <name>
	modulePattern = regexp.MustCompile(`\b(?:module|macromodule)\s+([a-z_][\w$]*)`)

	// Pattern: leading net-type keyword before input/output
	netPrefixPattern = regexp.MustCompile(`^(?:wire|reg|logic|var)\s+`)

	// Pattern: trailing lvalue before an assignment operator
	lvaluePattern = regexp.MustCompile(`([a-z_][\w$]*)\s*(?:\[[^\]]*\]\s*)*$`)

	// Pattern: bare literal right-hand side (spaces removed)
	literalPattern = regexp.MustCompile(`^(?:[0-9][0-9_]*|[0-9]*'[s]?[bhdo][0-9a-fxz_?]+|'[01xz]|\{[0-9]+\{(?:[0-9]*'[s]?[bhdo][0-9a-fxz_?]+|[0-9]+)\}\})$`)

	// Pattern: = <initializer> up to the next separator
	initializerPattern = regexp.MustCompile(`=[^,;]*`)

	identPattern = regexp.MustCompile(`^[a-z_][\w$]*$`)
	rangePattern = regexp.MustCompile(`\[[^\]]*\]`)
)

// typeKeywords are dropped when reducing a declaration to its names.
var typeKeywords = map[string]bool{
	"input": true, "output": true, "inout": true,
	"wire": true, "reg": true, "logic": true, "var": true, "tri": true,
	"signed": true, "unsigned": true, "bit": true, "integer": true, "int": true,
}

var directionKeywords = map[string]string{
	"input":  KindInput,
	"output": KindOutput,
	"inout":  KindInout,
}

var netKeywords = map[string]bool{
	"wire":  true,
	"reg":   true,
	"logic": true,
}

// matchParameter returns [name, value] for every parameter with an integer value
func matchParameter(code string) [][]string {
	var out [][]string
	for _, m := range parameterPattern.FindAllStringSubmatch(code, -1) {
		out = append(out, []string{m[1], m[2]})
	}
	return out
}

// matchConstant returns [name, expr] for every parameter or localparam assignment
func matchConstant(code string) [][]string {
	var out [][]string
	for _, m := range constantPattern.FindAllStringSubmatch(code, -1) {
		out = append(out, []string{m[1], strings.TrimSpace(m[2])})
	}
	return out
}

// matchParameterBit returns [name] if line declares a parameter bit
func matchParameterBit(code string) []string {
	if m := parameterBitPattern.FindStringSubmatch(code); m != nil {
		return []string{m[1]}
	}
	return nil
}

// matchParameterNames returns every name assigned in a parameter/localparam line
func matchParameterNames(code string) []string {
	loc := parameterHeaderPattern.FindStringIndex(code)
	if loc == nil {
		return nil
	}
	var names []string
	for _, m := range parameterNamePattern.FindAllStringSubmatch(code[loc[1]:], -1) {
		names = append(names, m[1])
	}
	return names
}

// matchConditions returns the contents of every if (...) on the line
func matchConditions(code string) []string {
	return balancedAfter(code, ifPattern)
}

// matchCaseSelector returns the contents of every case (...) on the line
func matchCaseSelector(code string) []string {
	return balancedAfter(code, casePattern)
}

// balancedAfter returns the parenthesized text following each match of re.
// Every match of re must end with the opening parenthesis.
func balancedAfter(code string, re *regexp.Regexp) []string {
	var out []string
	for _, loc := range re.FindAllStringIndex(code, -1) {
		if inner, ok := balanced(code, loc[1]-1); ok {
			out = append(out, inner)
		}
	}
	return out
}

// balanced returns the text between code[open] == '(' and its matching ')'.
func balanced(code string, open int) (string, bool) {
	depth := 0
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return code[open+1 : i], true
			}
		}
	}
	return "", false
}

// matchLValue returns the assigned name at the end of text
func matchLValue(text string) (string, bool) {
	m := lvaluePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil || typeKeywords[m[1]] {
		return "", false
	}
	return m[1], true
}

// isLiteral reports whether a space-free right-hand side is a bare literal
func isLiteral(rhs string) bool {
	return literalPattern.MatchString(rhs)
}

func isIdent(s string) bool {
	return identPattern.MatchString(s)
}

// blankStrings replaces the body of string literals with spaces so quoted
// text never looks like code. Offsets are preserved.
func blankStrings(code string) string {
	if !strings.Contains(code, `"`) {
		return code
	}
	b := []byte(code)
	in := false
	for i := 0; i < len(b); i++ {
		switch {
		case in && b[i] == '\\' && i+1 < len(b) && b[i+1] != '\n':
			b[i], b[i+1] = ' ', ' '
			i++
		case b[i] == '"':
			in = !in
		case in && b[i] != '\n':
			b[i] = ' '
		}
	}
	return string(b)
}
