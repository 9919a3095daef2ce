package facts

import "testing"

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := Tables{
		Symbols: []SymbolRow{
			{Name: "a", Kind: "input", Width: 1, File: "f.v", Line: 1},
		},
		Assets: []AssetRow{
			{Signal: "a", Width: "1", Category: "Control", AppearedIn: "if_else", CIA: "A", File: "f.v"},
		},
	}
	next := Tables{
		Symbols: []SymbolRow{
			{Name: "a", Kind: "input", Width: 4, File: "f.v", Line: 1},
		},
		Assets: []AssetRow{
			{Signal: "a", Width: "4", Category: "Config", AppearedIn: "if_else", CIA: "IA", File: "f.v"},
		},
	}

	delta := ComputeDelta(prev, next)

	if len(delta.Added.Symbols) != 1 || delta.Added.Symbols[0].Width != 4 {
		t.Fatalf("expected widened symbol added, got %+v", delta.Added.Symbols)
	}
	if len(delta.Removed.Symbols) != 1 || delta.Removed.Symbols[0].Width != 1 {
		t.Fatalf("expected 1-bit symbol removed, got %+v", delta.Removed.Symbols)
	}
	if len(delta.Added.Assets) != 1 || delta.Added.Assets[0].Category != "Config" {
		t.Fatalf("expected Config asset added, got %+v", delta.Added.Assets)
	}
	if len(delta.Removed.Assets) != 1 || delta.Removed.Assets[0].Category != "Control" {
		t.Fatalf("expected Control asset removed, got %+v", delta.Removed.Assets)
	}
	if delta.Empty() {
		t.Fatalf("delta should not be empty")
	}
}

func TestComputeDeltaIdentical(t *testing.T) {
	tables := Tables{Files: []FileRow{{Path: "f.v", Lines: 3}}}
	if delta := ComputeDelta(tables, tables); !delta.Empty() {
		t.Fatalf("expected empty delta, got %+v", delta)
	}
}
