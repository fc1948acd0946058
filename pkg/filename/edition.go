package filename

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Windows Server benchmarks are published once and converted separately for
// member servers and domain controllers.
const (
	EditionMemberServer     = "MS"
	EditionDomainController = "DC"
)

var (
	editionSegment  = regexp.MustCompile(`(?i)_(MS|DC)_STIG_`)
	stigSegment     = regexp.MustCompile(`(?i)_STIG_`)
	windowsOSStem   = regexp.MustCompile(`(?i)^U_MS_(Windows(?:_Server)?(?:_\d{1,4})?_STIG)_V\d+R\d+_Manual-xccdf$`)
	windowsOSEdited = regexp.MustCompile(`(?i)^U_MS_Windows(?:_Server)?(?:_\d{1,4})?_(?:MS|DC)_STIG_V\d+R\d+_Manual-xccdf$`)
)

// Editions lists the editions a Windows OS benchmark is split into.
func Editions() []string {
	return []string{EditionMemberServer, EditionDomainController}
}

// HasEdition reports whether a benchmark filename already carries an MS or DC
// edition segment.
func HasEdition(name string) bool {
	return editionSegment.MatchString(filepath.Base(name))
}

// StripEdition replaces "_MS_STIG_" or "_DC_STIG_" with "_STIG_".
func StripEdition(name string) string {
	return editionSegment.ReplaceAllString(name, "_STIG_")
}

// WithEdition returns name with its edition set to edition, replacing any
// existing one. Only the first "_STIG_" segment is rewritten.
func WithEdition(name, edition string) string {
	stripped := StripEdition(name)
	location := stigSegment.FindStringIndex(stripped)
	if location == nil {
		return stripped
	}
	return stripped[:location[0]] + "_" + strings.ToUpper(edition) + stripped[location[0]:]
}

// IsWindowsOSBenchmark reports whether name is a Windows client or server
// operating system benchmark, with or without an edition segment.
func IsWindowsOSBenchmark(name string) bool {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return windowsOSStem.MatchString(stem) || windowsOSEdited.MatchString(stem)
}
