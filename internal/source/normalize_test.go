package source

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeStripsCommentsAndFoldsCase(t *testing.T) {
	src := "module Top(input CLK); // Main clock\n" +
		"/* block\n   comment */ wire [7:0] Bus;\n" +
		"assign Msg = \"a // b\";\n"

	doc := Normalize([]byte(src))
	want := []Line{
		{Number: 1, Code: "module top(input clk);", Comment: "main clock"},
		{Number: 2, Code: ""},
		{Number: 3, Code: "  wire [7:0] bus;"},
		{Number: 4, Code: `assign msg = "a // b";`},
	}
	if diff := cmp.Diff(want, doc.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeUnterminatedBlockComment(t *testing.T) {
	doc := Normalize([]byte("input a;\n/* never closed\ninput b;\n"))
	for _, l := range doc.Lines {
		if l.Code == "input b;" {
			t.Fatalf("code inside unterminated comment leaked: %+v", doc.Lines)
		}
	}
	if doc.Lines[0].Code != "input a;" {
		t.Fatalf("first line = %q", doc.Lines[0].Code)
	}
}

func TestDecodeDropsInvalidBytes(t *testing.T) {
	raw := []byte("input \xff\xfeclk;\r\n")
	got := Decode(raw)
	if got != "input clk;\n" {
		t.Fatalf("Decode = %q", got)
	}
}

func TestDecodeUTF16WithBOM(t *testing.T) {
	// "wire a;" in UTF-16LE with a byte order mark
	raw := []byte{0xff, 0xfe, 'w', 0, 'i', 0, 'r', 0, 'e', 0, ' ', 0, 'a', 0, ';', 0}
	if got := Decode(raw); got != "wire a;" {
		t.Fatalf("Decode = %q", got)
	}
}

func TestStripCommentsKeepsCase(t *testing.T) {
	got := StripComments("Input A; // x\n/* y */Output B;")
	if got != "Input A; \n Output B;" && got != "Input A;\n Output B;" {
		t.Fatalf("StripComments = %q", got)
	}
}

func TestDocumentText(t *testing.T) {
	doc := NormalizeText("A\nB")
	if doc.Text() != "a\nb" {
		t.Fatalf("Text = %q", doc.Text())
	}
}
