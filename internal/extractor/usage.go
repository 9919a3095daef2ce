package extractor

import (
	"strings"

	"github.com/robert-at-pretension-io/verilog-assets/internal/source"
)

// Usage contexts
const (
	ContextIfElse        = "if_else"
	ContextCase          = "case"
	ContextAssignmentLHS = "assignment_lhs"
	ContextAssignmentRHS = "assignment_rhs"
)

// UsageSignal is a token observed in a usage context
type UsageSignal struct {
	Token   string `json:"token"`
	Context string `json:"context"`
	Line    int    `json:"line"`
}

// AssignmentPairs holds index-aligned assignment targets and sources.
// len(LHS) == len(RHS) == len(Lines) always holds.
type AssignmentPairs struct {
	LHS   []string `json:"lhs"`
	RHS   []string `json:"rhs"`
	Lines []int    `json:"lines"`
}

// Len returns the number of pairs
func (p AssignmentPairs) Len() int {
	return len(p.LHS)
}

// IndexOf returns the first index whose target is name, or -1
func (p AssignmentPairs) IndexOf(name string) int {
	for i, l := range p.LHS {
		if l == name {
			return i
		}
	}
	return -1
}

// SourceOf returns the aligned right-hand side of the first assignment to name.
// A missing or ragged index reports false.
func (p AssignmentPairs) SourceOf(name string) (string, bool) {
	i := p.IndexOf(name)
	if i < 0 || i >= len(p.RHS) {
		return "", false
	}
	return p.RHS[i], true
}

// Contains reports whether name is assigned
func (p AssignmentPairs) Contains(name string) bool {
	return p.IndexOf(name) >= 0
}

func (p AssignmentPairs) with(lhs, rhs string, line int) AssignmentPairs {
	return AssignmentPairs{
		LHS:   append(p.LHS, lhs),
		RHS:   append(p.RHS, rhs),
		Lines: append(p.Lines, line),
	}
}

// ExtractInputs returns the names declared on lines starting with input
func ExtractInputs(lines []source.Line) []string {
	return extractDirection(lines, "input")
}

// ExtractOutputs returns the names declared on lines starting with output
func ExtractOutputs(lines []source.Line) []string {
	return extractDirection(lines, "output")
}

// extractDirection looks at each ';'-separated statement of a line on its
// own, so a net declared after a port on the same line never becomes a
// port. The inline comment is already split off into Line.Comment. A
// statement with no ',' names its last token; otherwise every token after
// the keyword is a name until the next direction keyword.
func extractDirection(lines []source.Line, keyword string) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	add := func(name string) {
		name = strings.Trim(name, ",;")
		if name == "" || seen[name] || typeKeywords[name] || !isIdent(name) {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, l := range lines {
		for _, stmt := range splitTopLevel(l.Code, ';') {
			words, list := directionNames(stmt, keyword)
			if len(words) == 0 {
				continue
			}
			if !list {
				add(words[len(words)-1])
				continue
			}
			for _, w := range words[1:] {
				// a following declaration in the same ANSI list ends this one
				if _, ok := directionKeywords[strings.Trim(w, ",;")]; ok {
					break
				}
				add(w)
			}
		}
	}
	return out
}

// directionNames reduces one statement that opens with keyword to its
// words, ranges and initializers removed. list reports a ','-separated
// declaration.
func directionNames(stmt, keyword string) (words []string, list bool) {
	info := strings.TrimSpace(stmt)
	info = netPrefixPattern.ReplaceAllString(info, "")
	if !strings.HasPrefix(info, keyword) || strings.Contains(info, "?") {
		return nil, false
	}
	if rest := info[len(keyword):]; rest != "" && isWordByte(rest[0]) {
		return nil, false
	}
	info = initializerPattern.ReplaceAllString(info, " ")
	info = rangePattern.ReplaceAllString(info, " ")
	return strings.Fields(info), strings.Contains(info, ",")
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// ExtractConditionals returns the operands of every if (...) condition,
// split on comparison and logical operators, minus the stoplist.
func ExtractConditionals(lines []source.Line, stoplist []string) []UsageSignal {
	stop := make(map[string]bool, len(stoplist))
	for _, s := range stoplist {
		stop[strings.ToLower(s)] = true
	}

	var out []UsageSignal
	for _, l := range lines {
		for _, cond := range matchConditions(blankStrings(l.Code)) {
			for _, operand := range conditionOperatorPattern.Split(cond, -1) {
				token := cleanOperand(operand)
				if token == "" || stop[token] {
					continue
				}
				out = append(out, UsageSignal{Token: token, Context: ContextIfElse, Line: l.Number})
			}
		}
	}
	return out
}

// cleanOperand strips negation, grouping and whitespace from an operand
func cleanOperand(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '!', '~', '(', ')', ' ', '\t':
			return -1
		}
		return r
	}, s)
}

// ExtractCaseOperands returns each case selector verbatim, trimmed
func ExtractCaseOperands(lines []source.Line) []UsageSignal {
	var out []UsageSignal
	for _, l := range lines {
		for _, sel := range matchCaseSelector(blankStrings(l.Code)) {
			sel = strings.TrimSpace(sel)
			if sel == "" {
				continue
			}
			out = append(out, UsageSignal{Token: sel, Context: ContextCase, Line: l.Number})
		}
	}
	return out
}

// ExtractAssignments returns the blocking (lhs = rhs, assign lhs = rhs) and
// non-blocking (lhs <= rhs) pairs. Only ';'-terminated statements count, and
// a pair whose right-hand side is a bare literal is dropped.
func ExtractAssignments(lines []source.Line) (blocking, nonBlocking AssignmentPairs) {
	for _, l := range lines {
		for _, stmt := range terminatedStatements(blankStrings(l.Code)) {
			lhs, rhs, nb, ok := splitAssignment(stmt)
			if !ok {
				continue
			}
			if nb {
				nonBlocking = nonBlocking.with(lhs, rhs, l.Number)
			} else {
				blocking = blocking.with(lhs, rhs, l.Number)
			}
		}
	}
	return blocking, nonBlocking
}

// terminatedStatements splits code at top-level ';' and drops the
// unterminated tail.
func terminatedStatements(code string) []string {
	parts := splitTopLevel(code, ';')
	return parts[:len(parts)-1]
}

// splitAssignment finds the first top-level assignment operator in stmt.
func splitAssignment(stmt string) (lhs, rhs string, nonBlocking, ok bool) {
	if head := strings.Fields(stmt); len(head) > 0 {
		switch head[0] {
		case "parameter", "localparam", "input", "output", "inout":
			return "", "", false, false
		}
	}

	depth := 0
	op, width := -1, 0
scan:
	for i := 0; i < len(stmt); i++ {
		switch c := stmt[i]; c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth > 0 {
				continue
			}
			if i+1 < len(stmt) && stmt[i+1] == '=' {
				for i+1 < len(stmt) && stmt[i+1] == '=' {
					i++
				}
				continue
			}
			if i == 0 {
				break scan
			}
			switch prev := stmt[i-1]; {
			case prev == '<':
				if i >= 2 && stmt[i-2] == '<' {
					break scan
				}
				op, width, nonBlocking = i-1, 2, true
			case strings.IndexByte("+-*/%&|^>!~", prev) >= 0:
				break scan
			default:
				op, width = i, 1
			}
			break scan
		}
	}
	if op < 0 {
		return "", "", false, false
	}

	name, found := matchLValue(stmt[:op])
	if !found {
		return "", "", false, false
	}
	rhs = strings.ReplaceAll(stmt[op+width:], " ", "")
	rhs = strings.ReplaceAll(rhs, "\t", "")
	if rhs == "" || isLiteral(rhs) {
		return "", "", false, false
	}
	return name, rhs, nonBlocking, true
}
