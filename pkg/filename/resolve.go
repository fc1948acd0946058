package filename

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OrganizationalSettingsMarker appears in the filenames of PowerSTIG org
// settings files, which are never comparison targets.
const OrganizationalSettingsMarker = ".org.default"

// Index is a case-insensitive lookup of converted filenames to paths.
type Index struct {
	byName map[string]string
	byKey  map[string]string
}

// NewIndex builds an index over converted file paths. When two paths share a
// name the first one wins.
func NewIndex(paths []string) *Index {
	index := &Index{
		byName: make(map[string]string, len(paths)),
		byKey:  make(map[string]string, len(paths)),
	}
	for _, path := range paths {
		base := filepath.Base(path)
		name := strings.ToLower(base)
		if _, exists := index.byName[name]; !exists {
			index.byName[name] = path
		}
		if key := ConvertedKey(base); key != "" {
			if _, exists := index.byKey[key]; !exists {
				index.byKey[key] = path
			}
		}
	}
	return index
}

// Len returns the number of distinct names indexed.
func (i *Index) Len() int {
	return len(i.byName)
}

// Lookup returns the path of the first candidate present in the index.
func (i *Index) Lookup(derivation Derivation) (string, bool) {
	for _, candidate := range derivation.Candidates() {
		if path, ok := i.byName[strings.ToLower(candidate)]; ok {
			return path, true
		}
	}
	return "", false
}

// LookupKey returns the path whose ConvertedKey equals key.
func (i *Index) LookupKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	path, ok := i.byKey[key]
	return path, ok
}

// Resolve finds the converted file for a benchmark in dir by probing both
// candidate spellings, ignoring case. It returns ErrNoDerivation when the
// benchmark name cannot be parsed and ErrNotFound when neither candidate
// exists.
func Resolve(dir, benchmarkFilename string) (string, error) {
	derivation, ok := Derive(benchmarkFilename)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoDerivation, benchmarkFilename)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	if path, ok := NewIndex(paths).Lookup(derivation); ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: tried %s in %s", ErrNotFound, strings.Join(derivation.Candidates(), ", "), dir)
}

// BenchmarkKey returns the folder pairing key of a benchmark filename: the
// lower-cased derived stem with any ".0" product minor removed, e.g.
// "dotnetframework-4-2.7". Unparseable names return "".
func BenchmarkKey(benchmarkFilename string) string {
	derivation, ok := Derive(benchmarkFilename)
	if !ok {
		return ""
	}
	return derivation.Key()
}

// Key returns the folder pairing key of the derivation.
func (d Derivation) Key() string {
	return canonicalKey(d.Stem())
}

// ConvertedKey returns the folder pairing key of a converted filename, built
// the same way as BenchmarkKey so the two compare equal. Org settings files
// return "".
func ConvertedKey(convertedFilename string) string {
	name := filepath.Base(strings.TrimSpace(convertedFilename))
	if IsOrganizationalSettingsName(name) {
		return ""
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return ""
	}
	return canonicalKey(stem)
}

// IsOrganizationalSettingsName reports whether name carries the org settings
// marker.
func IsOrganizationalSettingsName(name string) bool {
	return strings.Contains(strings.ToLower(name), OrganizationalSettingsMarker)
}

func canonicalKey(stem string) string {
	return strings.ToLower(removeZeroMinor(stem))
}
