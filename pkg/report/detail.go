package report

import (
	"fmt"
	"strings"

	"github.com/coolbeans/stigdiff/pkg/detail"
)

// FormatDetail renders one rule detail.
func FormatDetail(rule detail.RuleDetail, format Format) string {
	switch format {
	case FormatJSON:
		return formatJSON(rule)
	case FormatYAML:
		return formatYAML(rule)
	case FormatMarkdown:
		return DetailMarkdown(rule)
	default:
		return detailText(rule)
	}
}

func detailText(rule detail.RuleDetail) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Rule: %s\n", rule.RuleID))
	if !rule.Found {
		sb.WriteString("No details found for this rule in the selected files.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("SV: %s\n", rule.SVID))
	sb.WriteString(fmt.Sprintf("Title: %s\n", orUnknown(rule.Title)))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", orUnknown(rule.Severity)))
	if len(rule.CCIs) > 0 {
		sb.WriteString(fmt.Sprintf("CCI: %s\n", strings.Join(rule.CCIs, ", ")))
	}

	writeTextSection(&sb, "Description", rule.Description)
	writeTextSection(&sb, "Check", rule.CheckContent)
	writeTextSection(&sb, "Fix", rule.FixText)
	if rule.ReferencesXML != "" {
		writeTextSection(&sb, "References", rule.ReferencesXML)
	}
	if rule.ConvertedFile != "" {
		writeTextSection(&sb, "Converted ("+rule.ConvertedFile+")", rule.ConvertedSnippet)
	}
	return sb.String()
}

func writeTextSection(sb *strings.Builder, heading, body string) {
	sb.WriteString(fmt.Sprintf("\n%s:\n%s\n", heading, orNone(body)))
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(unknown)"
	}
	return value
}
