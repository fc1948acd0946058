package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coolbeans/stigdiff/pkg/filename"
	"github.com/coolbeans/stigdiff/pkg/xccdf"
)

// ScanBenchmarks returns every *.xml file under dir whose name contains
// filter, ignoring case, in path order. An empty filter keeps every file.
func ScanBenchmarks(dir, filter string) ([]string, error) {
	lowerFilter := strings.ToLower(filter)
	return walkXML(dir, func(path string) bool {
		return strings.Contains(strings.ToLower(filepath.Base(path)), lowerFilter)
	})
}

// ScanConverted returns every *.xml file under dir that is a rule file. A
// file is excluded when its name contains one of excludePatterns or when its
// root element is OrganizationalSettings; either signal is enough.
func ScanConverted(dir string, excludePatterns []string) ([]string, error) {
	return walkXML(dir, func(path string) bool {
		name := strings.ToLower(filepath.Base(path))
		if filename.IsOrganizationalSettingsName(name) {
			return false
		}
		for _, pattern := range excludePatterns {
			if pattern != "" && strings.Contains(name, strings.ToLower(pattern)) {
				return false
			}
		}
		isOrg, err := xccdf.IsOrganizationalSettings(path)
		return err != nil || !isOrg
	})
}

func walkXML(dir string, keep func(path string) bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}
		if keep(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
