package source

import (
	"regexp"
	"strings"
)

// State is the position of the block tracker relative to a procedural block.
type State int

const (
	Idle State = iota
	InAlways
	InIf
	InElse
)

func (s State) String() string {
	switch s {
	case InAlways:
		return "in_always"
	case InIf:
		return "in_if"
	case InElse:
		return "in_else"
	default:
		return "idle"
	}
}

// Block is a completed always block.
type Block struct {
	Kind  string `json:"kind"`
	Start int    `json:"start_line"`
	End   int    `json:"end_line"`
}

var (
	alwaysRe = regexp.MustCompile(`^(always_ff|always_comb|always_latch|always)\b`)
	openRe   = regexp.MustCompile(`\b(begin|case|casez|casex|fork)\b`)
	closeRe  = regexp.MustCompile(`\b(end|endcase|join|join_any|join_none)\b`)
	ifRe     = regexp.MustCompile(`^(else\s+)?if\b`)
	elseRe   = regexp.MustCompile(`^else\b`)
	doneRe   = regexp.MustCompile(`(;|\b(end|endcase|join|join_any|join_none)\b)\s*$`)
	trailRe  = regexp.MustCompile(`\belse\s*$`)
)

// BlockTracker is a streaming state machine over normalized lines. Depth
// counts begin/case/fork openers against their closers; a block completes
// when depth is balanced after a finished statement and the next line does
// not continue it with else.
type BlockTracker struct {
	state   State
	depth   int
	pending bool
	open    Block
}

// State returns the current tracker state.
func (t *BlockTracker) State() State {
	return t.state
}

// Depth returns the current nesting depth.
func (t *BlockTracker) Depth() int {
	return t.depth
}

// Feed consumes one line and returns any block it completed.
func (t *BlockTracker) Feed(line Line) []Block {
	code := stripStrings(strings.TrimSpace(line.Code))
	if code == "" {
		return nil
	}

	var done []Block
	if t.pending {
		if elseRe.MatchString(code) {
			t.pending = false
		} else {
			done = append(done, t.finish())
		}
	}

	if t.state == Idle {
		kw := alwaysRe.FindString(code)
		if kw == "" {
			return done
		}
		t.open = Block{Kind: kw, Start: line.Number, End: line.Number}
		t.state = InAlways
		code = skipEventControl(strings.TrimSpace(code[len(kw):]))
	}

	t.consume(code, line.Number)
	return done
}

// Close flushes a block left open at end of input.
func (t *BlockTracker) Close() []Block {
	if t.state == Idle {
		return nil
	}
	return []Block{t.finish()}
}

func (t *BlockTracker) consume(code string, number int) {
	t.open.End = number
	if code == "" {
		return
	}

	switch {
	case ifRe.MatchString(code):
		if t.depth == 0 {
			t.state = InIf
		}
	case elseRe.MatchString(code):
		if t.depth == 0 {
			t.state = InElse
		}
	}

	t.depth += len(openRe.FindAllString(code, -1)) - len(closeRe.FindAllString(code, -1))
	if t.depth < 0 {
		t.depth = 0
	}
	if t.depth > 0 {
		return
	}

	if trailRe.MatchString(code) {
		t.state = InElse
		return
	}
	if doneRe.MatchString(code) {
		t.pending = true
	}
}

func (t *BlockTracker) finish() Block {
	b := t.open
	t.state = Idle
	t.depth = 0
	t.pending = false
	t.open = Block{}
	return b
}

// TrackBlocks runs a BlockTracker over all lines.
func TrackBlocks(lines []Line) []Block {
	var (
		t      BlockTracker
		blocks []Block
	)
	for _, l := range lines {
		blocks = append(blocks, t.Feed(l)...)
	}
	return append(blocks, t.Close()...)
}

// skipEventControl drops a leading @*, @(...) or @name.
func skipEventControl(code string) string {
	if !strings.HasPrefix(code, "@") {
		return code
	}
	rest := strings.TrimSpace(code[1:])
	switch {
	case strings.HasPrefix(rest, "*"):
		return strings.TrimSpace(rest[1:])
	case strings.HasPrefix(rest, "("):
		depth := 0
		for i, c := range rest {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return strings.TrimSpace(rest[i+1:])
				}
			}
		}
		return ""
	default:
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(rest[i:])
	}
}

// stripStrings blanks out string literals so keywords inside them are not counted.
func stripStrings(code string) string {
	if !strings.Contains(code, `"`) {
		return code
	}
	var b strings.Builder
	in := false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case in && c == '\\':
			i++
		case c == '"':
			in = !in
			b.WriteByte('"')
		case !in:
			b.WriteByte(c)
		}
	}
	return b.String()
}
