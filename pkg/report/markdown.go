package report

import (
	"fmt"
	"strings"

	"github.com/coolbeans/stigdiff/pkg/batch"
	"github.com/coolbeans/stigdiff/pkg/detail"
	"github.com/coolbeans/stigdiff/pkg/reconcile"
)

func compareMarkdown(result reconcile.Result, options Options) string {
	var sb strings.Builder
	sb.WriteString("## Rule ID comparison\n\n")
	writeCompareMarkdown(&sb, result, options)
	return sb.String()
}

func writeCompareMarkdown(sb *strings.Builder, result reconcile.Result, options Options) {
	if result.SourcePath != "" {
		sb.WriteString(fmt.Sprintf("- **DISA:** `%s`\n", result.SourcePath))
	}
	for _, path := range result.ConvertedPaths {
		sb.WriteString(fmt.Sprintf("- **PowerSTIG:** `%s`\n", path))
	}

	summary := result.Summary()
	sb.WriteString("\n| Missing | Matched | Added |\n|---:|---:|---:|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d |\n\n", summary.Missing, summary.Matched, summary.Added))

	writeMarkdownList(sb, "Missing", result.Missing)
	if options.ShowMatched {
		writeMarkdownList(sb, "Matched", result.Matched)
	}
	writeMarkdownList(sb, "Added", result.Added)

	for _, warning := range result.Warnings {
		sb.WriteString(fmt.Sprintf("> **Warning:** %s\n\n", warning))
	}
}

func writeMarkdownList(sb *strings.Builder, label string, ids []string) {
	sb.WriteString(fmt.Sprintf("### %s (%d)\n\n", label, len(ids)))
	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("- `%s`\n", id))
	}
	if len(ids) > 0 {
		sb.WriteString("\n")
	}
}

func batchMarkdown(run *batch.Report, options Options) string {
	var sb strings.Builder
	sb.WriteString("# Batch comparison\n\n")
	sb.WriteString(fmt.Sprintf("Run `%s`: compared %d, unmatched %d, failed %d.\n\n",
		run.RunID, run.Compared, run.Unmatched, run.Failed))

	sb.WriteString("| Benchmark | Converted | Status | Missing | Added |\n|---|---|---|---:|---:|\n")
	for _, entry := range run.Entries {
		summary := entry.Result.Summary()
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d |\n",
			baseName(entry.Benchmark), baseName(entry.Converted), entry.Status, summary.Missing, summary.Added))
	}
	sb.WriteString("\n")

	for _, entry := range run.Entries {
		if entry.Status != batch.StatusCompared {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", baseName(entry.Benchmark)))
		writeCompareMarkdown(&sb, entry.Result, options)
	}
	return sb.String()
}

// DetailMarkdown renders a rule detail as a Markdown document.
func DetailMarkdown(rule detail.RuleDetail) string {
	var sb strings.Builder

	title := rule.Title
	if title == "" {
		title = "(untitled)"
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", rule.RuleID))
	sb.WriteString(fmt.Sprintf("**%s**\n\n", title))

	if !rule.Found {
		sb.WriteString("_No details found for this rule in the selected files._\n")
		return sb.String()
	}

	sb.WriteString("| Field | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Rule | `%s` |\n", rule.SVID))
	sb.WriteString(fmt.Sprintf("| Severity | %s |\n", orNone(rule.Severity)))
	if len(rule.CCIs) > 0 {
		sb.WriteString(fmt.Sprintf("| CCI | %s |\n", strings.Join(rule.CCIs, ", ")))
	}
	sb.WriteString("\n")

	writeSection(&sb, "Discussion", rule.Discussion())
	writeSection(&sb, "Check", rule.CheckContent)
	writeSection(&sb, "Fix", rule.FixText)

	if rule.ConvertedSnippet != "" {
		sb.WriteString(fmt.Sprintf("## Converted (`%s`)\n\n```xml\n%s\n```\n\n", baseName(rule.ConvertedFile), rule.ConvertedSnippet))
	}
	if rule.ReferencesXML != "" {
		sb.WriteString(fmt.Sprintf("## References\n\n```xml\n%s\n```\n", rule.ReferencesXML))
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, heading, body string) {
	sb.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", heading, orNone(body)))
}

func orNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(none)"
	}
	return value
}

func escapeCell(value string) string {
	return strings.ReplaceAll(strings.ReplaceAll(value, "|", `\|`), "\n", " ")
}
