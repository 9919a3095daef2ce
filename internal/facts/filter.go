package facts

// FilterTablesByFiles returns a new Tables object containing only rows whose file
// or path is present in the provided file set.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	out := emptyTables()
	if len(files) == 0 {
		return out
	}

	out.Files = filterRows(tables.Files, files, func(r FileRow) string { return r.Path })
	out.Symbols = filterRows(tables.Symbols, files, func(r SymbolRow) string { return r.File })
	out.Ports = filterRows(tables.Ports, files, func(r PortRow) string { return r.File })
	out.Parameters = filterRows(tables.Parameters, files, func(r ParameterRow) string { return r.File })
	out.ParameterDecls = filterRows(tables.ParameterDecls, files, func(r ParameterDeclRow) string { return r.File })
	out.Usages = filterRows(tables.Usages, files, func(r UsageRow) string { return r.File })
	out.Assignments = filterRows(tables.Assignments, files, func(r AssignmentRow) string { return r.File })
	out.Blocks = filterRows(tables.Blocks, files, func(r BlockRow) string { return r.File })
	out.Assets = filterRows(tables.Assets, files, func(r AssetRow) string { return r.File })

	return out
}

// FilterDeltaByFiles returns a new Delta containing only rows for the specified files.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}

func filterRows[T any](rows []T, files map[string]bool, file func(T) string) []T {
	out := []T{}
	for _, row := range rows {
		if files[file(row)] {
			out = append(out, row)
		}
	}
	return out
}
