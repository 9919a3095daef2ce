package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
	"github.com/robert-at-pretension-io/verilog-assets/internal/extractor"
	"github.com/robert-at-pretension-io/verilog-assets/internal/source"
)

func TestBuildTablesPopulatesCoreRelations(t *testing.T) {
	files := []extractor.FileFacts{
		{
			File:    "rtl/b.v",
			Lines:   4,
			Symbols: []extractor.Symbol{{Name: "en", Kind: extractor.KindInput, Width: 1, Line: 2}},
			Ports:   []string{"en"},
			Conditionals: []extractor.UsageSignal{
				{Token: "en", Context: extractor.ContextIfElse, Line: 3},
			},
			Blocking: extractor.AssignmentPairs{LHS: []string{"q"}, RHS: []string{"en"}, Lines: []int{3}},
			Blocks:   []source.Block{{Kind: "always", Start: 3, End: 4}},
		},
		{File: "rtl/a.v", Lines: 1},
	}
	assets := map[string][]asset.Record{
		"rtl/b.v": {{Signal: "en", Width: asset.Bits(1), Category: asset.Control, AppearedIn: asset.ContextIfElse, SourceFile: "b.v", CIA: "A"}},
	}

	tables := BuildTables(files, assets)

	if len(tables.Files) != 2 || tables.Files[0].Path != "rtl/a.v" {
		t.Fatalf("expected sorted file rows, got %+v", tables.Files)
	}
	if len(tables.Symbols) != 1 || len(tables.Ports) != 1 || len(tables.Usages) != 1 {
		t.Fatalf("unexpected relations: %+v", tables)
	}
	if len(tables.Assignments) != 1 || tables.Assignments[0].NonBlocking {
		t.Fatalf("expected one blocking assignment, got %+v", tables.Assignments)
	}
	if len(tables.Blocks) != 1 || tables.Blocks[0].End != 4 {
		t.Fatalf("unexpected blocks: %+v", tables.Blocks)
	}
	if len(tables.Assets) != 1 || tables.Assets[0].File != "rtl/b.v" || tables.Assets[0].Width != "1" {
		t.Fatalf("unexpected assets: %+v", tables.Assets)
	}
}
