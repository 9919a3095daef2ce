package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// Empty reports whether the delta has no rows
func (d Delta) Empty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len returns the total number of rows across relations
func (t Tables) Len() int {
	return len(t.Files) + len(t.Symbols) + len(t.Ports) + len(t.Parameters) +
		len(t.ParameterDecls) + len(t.Usages) + len(t.Assignments) + len(t.Blocks) + len(t.Assets)
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Files = diffRows(from.Files, to.Files, func(r FileRow) string {
		return r.Path + "|" + intKey(r.Lines)
	})
	out.Symbols = diffRows(from.Symbols, to.Symbols, func(r SymbolRow) string {
		return r.Name + "|" + r.Kind + "|" + intKey(r.Width) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Ports = diffRows(from.Ports, to.Ports, func(r PortRow) string {
		return r.Name + "|" + intKey(r.Position) + "|" + r.File
	})
	out.Parameters = diffRows(from.Parameters, to.Parameters, func(r ParameterRow) string {
		return r.Name + "|" + intKey(r.Folded) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.ParameterDecls = diffRows(from.ParameterDecls, to.ParameterDecls, func(r ParameterDeclRow) string {
		return r.Name + "|" + boolKey(r.Bit) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Usages = diffRows(from.Usages, to.Usages, func(r UsageRow) string {
		return r.Token + "|" + r.Context + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Assignments = diffRows(from.Assignments, to.Assignments, func(r AssignmentRow) string {
		return r.LHS + "|" + r.RHS + "|" + boolKey(r.NonBlocking) + "|" + intKey(r.Index) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Blocks = diffRows(from.Blocks, to.Blocks, func(r BlockRow) string {
		return r.Kind + "|" + r.File + "|" + intKey(r.Start) + "|" + intKey(r.End)
	})
	out.Assets = diffRows(from.Assets, to.Assets, func(r AssetRow) string {
		return r.Signal + "|" + r.Width + "|" + r.Category + "|" + r.AppearedIn + "|" + r.CIA + "|" + r.File
	})

	return out
}

func emptyTables() Tables {
	return Tables{
		Files:          []FileRow{},
		Symbols:        []SymbolRow{},
		Ports:          []PortRow{},
		Parameters:     []ParameterRow{},
		ParameterDecls: []ParameterDeclRow{},
		Usages:         []UsageRow{},
		Assignments:    []AssignmentRow{},
		Blocks:         []BlockRow{},
		Assets:         []AssetRow{},
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}
