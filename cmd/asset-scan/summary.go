package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
)

// renderSummary prints per-category counts for one scan
func renderSummary(out *scanOutcome) string {
	res := out.Result
	var b strings.Builder

	b.WriteString(titleStyle.Render("Asset scan") + " " + mutedStyle.Render(res.Root) + "\n")
	for _, cat := range asset.Categories {
		fmt.Fprintf(&b, "  %-8s %s\n", cat, countStyle.Render(fmt.Sprint(res.Stats.ByCategory[cat])))
	}
	fmt.Fprintf(&b, "  %-8s %s\n", "Total", countStyle.Render(fmt.Sprint(res.Stats.Records)))

	fmt.Fprintf(&b, "%d files scanned, %d from cache", res.Stats.Files, res.Stats.CacheHits)
	if res.Stats.Failed > 0 {
		b.WriteString(", " + warnStyle.Render(fmt.Sprintf("%d failed", res.Stats.Failed)))
	}
	if res.Stats.Suppressed > 0 || res.Stats.Overridden > 0 {
		fmt.Fprintf(&b, ", policy suppressed %d and overrode %d", res.Stats.Suppressed, res.Stats.Overridden)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%d records written to %s\n", out.Written, out.Output)
	if out.Run != nil {
		b.WriteString(mutedStyle.Render("run "+out.Run.ID) + "\n")
	}
	return b.String()
}

// renderDelta prints added and removed records, one per line
func renderDelta(added, removed []asset.Record) string {
	var b strings.Builder
	for _, r := range added {
		b.WriteString(addedStyle.Render("+ "+describe(r)) + "\n")
	}
	for _, r := range removed {
		b.WriteString(removedStyle.Render("- "+describe(r)) + "\n")
	}
	return b.String()
}

func describe(r asset.Record) string {
	return fmt.Sprintf("%s %s %s [%s] %s %s", r.SourceFile, r.Signal, r.Width, r.Category, r.AppearedIn, r.CIA)
}
