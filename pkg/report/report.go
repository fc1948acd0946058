// Package report renders comparison results, batch runs, rule details and
// converter failures as text, JSON, YAML or Markdown.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/stigdiff/pkg/batch"
	"github.com/coolbeans/stigdiff/pkg/convlog"
	"github.com/coolbeans/stigdiff/pkg/reconcile"
)

// Format names an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name case-insensitively; "md" and "yml" are
// accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q: use text, json, yaml or markdown", name)
	}
}

// Options controls optional sections of text and Markdown output.
type Options struct {
	// ShowMatched lists matched ids as well as missing and added ones.
	ShowMatched bool
}

// FormatCompare renders a single comparison.
func FormatCompare(result reconcile.Result, format Format, options Options) string {
	switch format {
	case FormatJSON:
		return formatJSON(result)
	case FormatYAML:
		return formatYAML(result)
	case FormatMarkdown:
		return compareMarkdown(result, options)
	default:
		var sb strings.Builder
		writeCompareText(&sb, result, options)
		return sb.String()
	}
}

// FormatBatch renders a batch run.
func FormatBatch(run *batch.Report, format Format, options Options) string {
	if run == nil {
		return ""
	}
	switch format {
	case FormatJSON:
		return formatJSON(run)
	case FormatYAML:
		return formatYAML(run)
	case FormatMarkdown:
		return batchMarkdown(run, options)
	default:
		return batchText(run, options)
	}
}

// FormatFailures renders converter failures in natural rule order.
func FormatFailures(failures []convlog.Failure, format Format) string {
	switch format {
	case FormatJSON:
		if failures == nil {
			failures = []convlog.Failure{}
		}
		return formatJSON(failures)
	case FormatYAML:
		return formatYAML(failures)
	case FormatMarkdown:
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("## Failed rule conversions (%d)\n\n", len(failures)))
		if len(failures) > 0 {
			sb.WriteString("| Rule | Error |\n|---|---|\n")
			for _, failure := range failures {
				sb.WriteString(fmt.Sprintf("| %s | %s |\n", failure.RuleID, escapeCell(failure.Error)))
			}
		}
		return sb.String()
	default:
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Failed rule conversions (%d):\n", len(failures)))
		for _, failure := range failures {
			sb.WriteString(failure.String() + "\n")
		}
		return sb.String()
	}
}

// writeCompareText writes the block printed per pair in batch mode:
//
//	Missing (n):
//	  V-1
//	Added (n):
//	  V-2.a
func writeCompareText(sb *strings.Builder, result reconcile.Result, options Options) {
	writeList(sb, "Missing", result.Missing)
	if options.ShowMatched {
		writeList(sb, "Matched", result.Matched)
	}
	writeList(sb, "Added", result.Added)
	for _, warning := range result.Warnings {
		sb.WriteString(fmt.Sprintf("[WARN] %s\n", warning))
	}
}

func writeList(sb *strings.Builder, label string, ids []string) {
	sb.WriteString(fmt.Sprintf("%s (%d):\n", label, len(ids)))
	for _, id := range ids {
		sb.WriteString("  " + id + "\n")
	}
}

func batchText(run *batch.Report, options Options) string {
	var sb strings.Builder
	for _, entry := range run.Entries {
		switch entry.Status {
		case batch.StatusUnmatched:
			sb.WriteString(fmt.Sprintf("[WARN] No PowerSTIG match for DISA '%s' (key '%s').\n", baseName(entry.Benchmark), entry.Key))
			continue
		case batch.StatusFailed:
			sb.WriteString(fmt.Sprintf("[WARN] Could not compare DISA '%s' with '%s': %s\n", baseName(entry.Benchmark), baseName(entry.Converted), entry.Error))
			continue
		}

		sb.WriteString("=== Compare ===\n")
		sb.WriteString(fmt.Sprintf("DISA: %s\n", entry.Benchmark))
		sb.WriteString(fmt.Sprintf("PowerSTIG: %s\n", entry.Converted))
		writeCompareText(&sb, entry.Result, options)
		for _, failure := range entry.FailedMissing {
			sb.WriteString(fmt.Sprintf("  note: %s\n", failure))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Completed. Compared %d DISA file(s).\n", run.ComparedBenchmarks()))
	return sb.String()
}

// FormatValue renders any value as YAML for FormatYAML and as JSON
// otherwise.
func FormatValue(value any, format Format) string {
	if format == FormatYAML {
		return formatYAML(value)
	}
	return formatJSON(value)
}

func formatJSON(value any) string {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data) + "\n"
}

func formatYAML(value any) string {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Sprintf("error: %q\n", err.Error())
	}
	return string(data)
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
