// Package reconcile compares the rule identifiers of a DISA benchmark with
// those of its PowerSTIG conversion.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coolbeans/stigdiff/pkg/filename"
	"github.com/coolbeans/stigdiff/pkg/ruleid"
	"github.com/coolbeans/stigdiff/pkg/xccdf"
)

// Result is the outcome of one comparison. Every list is deduplicated and in
// natural rule order.
type Result struct {
	// SourcePath is the benchmark file, when the comparison read one.
	SourcePath string `json:"source_path,omitempty" yaml:"source_path,omitempty"`

	// ConvertedPaths are the converted files whose ids were compared.
	ConvertedPaths []string `json:"converted_paths,omitempty" yaml:"converted_paths,omitempty"`

	// Missing are benchmark base keys with no converted counterpart.
	Missing []string `json:"missing" yaml:"missing"`

	// Matched are benchmark base keys present in the conversion.
	Matched []string `json:"matched" yaml:"matched"`

	// Added are converted variants and converted ids with no benchmark base.
	Added []string `json:"added" yaml:"added"`

	// Warnings describe documents that were only partially read.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Summary holds the counts of a Result.
type Summary struct {
	Source  int `json:"source" yaml:"source"`
	Missing int `json:"missing" yaml:"missing"`
	Matched int `json:"matched" yaml:"matched"`
	Added   int `json:"added" yaml:"added"`
}

// String returns a one-line rendering of the counts.
func (s Summary) String() string {
	return fmt.Sprintf("source=%d matched=%d missing=%d added=%d", s.Source, s.Matched, s.Missing, s.Added)
}

// Summary returns the counts of r.
func (r Result) Summary() Summary {
	return Summary{
		Source:  len(r.Missing) + len(r.Matched),
		Missing: len(r.Missing),
		Matched: len(r.Matched),
		Added:   len(r.Added),
	}
}

// Identical reports whether nothing is missing and nothing was added.
func (r Result) Identical() bool {
	return len(r.Missing) == 0 && len(r.Added) == 0
}

// Compare reconciles benchmark identifiers against converted identifiers.
//
// sourceKeys may be base keys or raw benchmark ids; both are normalized and
// unmappable values dropped. A converted id is added when it is a variant
// (V-<n>.<suffix>) or when its base key is absent from the benchmark. Compare
// is pure and never fails.
func Compare(sourceKeys, convertedRaw []string) Result {
	source := ruleid.BaseKeys(sourceKeys)
	converted := ruleid.BaseKeys(convertedRaw)

	result := Result{
		Missing: []string{},
		Matched: []string{},
		Added:   []string{},
	}

	for _, key := range source.Values() {
		if converted.Has(key) {
			result.Matched = append(result.Matched, key)
		} else {
			result.Missing = append(result.Missing, key)
		}
	}

	added := ruleid.NewSet()
	for _, raw := range convertedRaw {
		raw = strings.TrimSpace(raw)
		if ruleid.IsVariant(raw) {
			added.Add(raw)
			continue
		}
		if base := ruleid.Normalize(raw); base != "" && !source.Has(base) {
			added.Add(raw)
		}
	}
	result.Added = added.Values()

	return result
}

// CompareFiles extracts and compares a benchmark and a converted file.
// Extraction problems are recorded in Result.Warnings and also returned
// joined; the result still reflects everything that could be read.
func CompareFiles(sourcePath, convertedPath string) (Result, error) {
	sourceIDs, sourceErr := xccdf.ExtractIDs(sourcePath, xccdf.RoleSource)
	convertedIDs, convertedErr := xccdf.ExtractIDs(convertedPath, xccdf.RoleConverted)

	result := Compare(sourceIDs, convertedIDs)
	result.SourcePath = sourcePath
	result.ConvertedPaths = []string{convertedPath}

	err := errors.Join(sourceErr, convertedErr)
	result.Warnings = warningsOf(sourceErr, convertedErr)
	return result, err
}

// CompareFolder compares a benchmark against the union of identifiers in
// every converted XML file directly inside dir. Org settings files, by name
// or by root element, are skipped.
func CompareFolder(sourcePath, dir string) (Result, error) {
	paths, err := ConvertedFiles(dir)
	if err != nil {
		return Result{SourcePath: sourcePath, Missing: []string{}, Matched: []string{}, Added: []string{}}, err
	}

	sourceIDs, sourceErr := xccdf.ExtractIDs(sourcePath, xccdf.RoleSource)
	errs := []error{sourceErr}

	var convertedIDs []string
	for _, path := range paths {
		ids, err := xccdf.ExtractIDs(path, xccdf.RoleConverted)
		convertedIDs = append(convertedIDs, ids...)
		errs = append(errs, err)
	}

	result := Compare(sourceIDs, convertedIDs)
	result.SourcePath = sourcePath
	result.ConvertedPaths = paths
	result.Warnings = warningsOf(errs...)
	return result, errors.Join(errs...)
}

// CompareAuto dispatches to CompareFolder when convertedPath is a directory
// and to CompareFiles otherwise.
func CompareAuto(sourcePath, convertedPath string) (Result, error) {
	info, err := os.Stat(convertedPath)
	if err == nil && info.IsDir() {
		return CompareFolder(sourcePath, convertedPath)
	}
	return CompareFiles(sourcePath, convertedPath)
}

// ConvertedFiles lists the converted rule files directly inside dir in name
// order, skipping org settings files.
func ConvertedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".xml") {
			continue
		}
		if filename.IsOrganizationalSettingsName(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if isOrg, err := xccdf.IsOrganizationalSettings(path); err == nil && isOrg {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func warningsOf(errs ...error) []string {
	var warnings []string
	for _, err := range errs {
		if err != nil {
			warnings = append(warnings, err.Error())
		}
	}
	return warnings
}
