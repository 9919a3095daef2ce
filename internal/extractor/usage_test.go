package extractor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testStoplist = []string{"rst", "reset", "rst_n", "rst_ni", "reset_n", "&&", "||", "==", "=", "!=", ">=", "<=", "<", ">"}

func TestExtractInputs(t *testing.T) {
	src := `input clk;
input [3:0] mode; // operating mode
input a, b;
input wire c,
input logic [7:0] d
input e = 1'b0, f;
wire input_valid;
input sel ? x : y;
`
	got := ExtractInputs(lines(src))
	want := []string{"clk", "mode", "a", "b", "c", "d", "e", "f"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractOutputs(t *testing.T) {
	got := ExtractOutputs(lines("output done;\noutput reg [7:0] q, r;\nreg output_en;"))
	want := []string{"done", "q", "r"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDirectionPerStatement(t *testing.T) {
	src := "module m(en, done); input en; wire h; output done; wire busy; input ready;\ninput a; output reg [1:0] q, r; logic s;"
	if diff := cmp.Diff([]string{"en", "ready", "a"}, ExtractInputs(lines(src))); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"done", "q", "r"}, ExtractOutputs(lines(src))); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractConditionals(t *testing.T) {
	src := `if (!rst_n) q <= 0;
else if (en && (mode == 2'b01)) q <= d;
if (a) x = 1; if (b != c) y = 2;
if (~reset) z = 0;`
	var got []string
	for _, u := range ExtractConditionals(lines(src), testStoplist) {
		if u.Context != ContextIfElse {
			t.Fatalf("context = %q", u.Context)
		}
		got = append(got, u.Token)
	}
	want := []string{"en", "mode", "2'b01", "a", "b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("conditionals mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCaseOperands(t *testing.T) {
	got := ExtractCaseOperands(lines("case (sel)\ncasez ( opcode[3:0] )\nunique casex ({a, b})\nendcase"))
	var tokens []string
	for _, u := range got {
		tokens = append(tokens, u.Token)
	}
	want := []string{"sel", "opcode[3:0]", "{a, b}"}
	if diff := cmp.Diff(want, tokens); diff != "" {
		t.Fatalf("case operands mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractAssignments(t *testing.T) {
	src := `assign y = a & b;
always @(posedge clk) done <= ready;
always @(posedge clk) flag <= 1'b1;
if (rst) q <= 0; else q <= d;
cnt = cnt + 1;
bus = 8'hff;
zero = '0;
wide = {4{1'b0}};
if (a <= b) x = c;
wire [7:0] w = r ^ s;
f = a == b;
acc += d;
z <= (
parameter P = q;
for (i = 0; i < 4; i = i + 1) mem[i] <= din;`

	blocking, nonBlocking := ExtractAssignments(lines(src))

	wantBlocking := AssignmentPairs{
		LHS:   []string{"y", "cnt", "x", "w", "f"},
		RHS:   []string{"a&b", "cnt+1", "c", "r^s", "a==b"},
		Lines: []int{1, 5, 9, 10, 11},
	}
	wantNonBlocking := AssignmentPairs{
		LHS:   []string{"done", "q", "mem"},
		RHS:   []string{"ready", "d", "din"},
		Lines: []int{2, 4, 15},
	}
	if diff := cmp.Diff(wantBlocking, blocking); diff != "" {
		t.Fatalf("blocking mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantNonBlocking, nonBlocking); diff != "" {
		t.Fatalf("non-blocking mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignmentPairsSourceOf(t *testing.T) {
	p := AssignmentPairs{LHS: []string{"a", "b", "a"}, RHS: []string{"x", "y"}, Lines: []int{1, 2, 3}}
	if src, ok := p.SourceOf("a"); !ok || src != "x" {
		t.Fatalf("SourceOf(a) = %q, %v", src, ok)
	}
	if _, ok := p.SourceOf("missing"); ok {
		t.Fatalf("SourceOf(missing) should fail")
	}
	ragged := AssignmentPairs{LHS: []string{"a", "b"}, RHS: []string{"x"}}
	if _, ok := ragged.SourceOf("b"); ok {
		t.Fatalf("ragged index must not resolve")
	}
}

func TestIsLiteral(t *testing.T) {
	for _, lit := range []string{"0", "1'b1", "8'hff", "'b0", "'h1f", "32'd10", "'0", "'1", "{8{1'b0}}", "4'sb1010"} {
		if !isLiteral(lit) {
			t.Fatalf("isLiteral(%q) = false", lit)
		}
	}
	for _, expr := range []string{"ready", "a+1", "8'hff&mask", "{a,b}", "cnt0"} {
		if isLiteral(expr) {
			t.Fatalf("isLiteral(%q) = true", expr)
		}
	}
}
