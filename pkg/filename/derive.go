// Package filename predicts PowerSTIG converted filenames from DISA benchmark
// filenames and pairs folders of the two.
//
// DISA publishes benchmarks as
//
//	U_MS_<product tokens>_[<MS|DC>_]STIG_V<major>R<minor>_Manual-xccdf.xml
//
// and PowerSTIG writes the converted rules as
//
//	<Product>[Site]-[<version>-][<EDITION>-]<major>.<minor>.xml
//
// for example U_MS_IIS_10-0_Site_STIG_V2R13_Manual-xccdf.xml becomes
// IISSite-10.0-2.13.xml.
package filename

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrNoDerivation is returned when a benchmark filename does not follow
	// the DISA naming template.
	ErrNoDerivation = errors.New("filename does not match the DISA benchmark template")

	// ErrNotFound is returned when neither candidate spelling exists.
	ErrNotFound = errors.New("converted file not found")
)

var (
	benchmarkPattern    = regexp.MustCompile(`(?i)^U_(?:MS_)?(.+?)_(?:(MS|DC)_)?STIG_V(\d+)R(\d+)(?:_Manual)?-xccdf\.xml$`)
	productVersionToken = regexp.MustCompile(`^(\d+)(?:-(\d+))?$`)
	zeroMinorSegment    = regexp.MustCompile(`-(\d+)\.0-`)
	integerSegment      = regexp.MustCompile(`-(\d+)-`)
)

// Derivation is the parsed form of a DISA benchmark filename.
type Derivation struct {
	// Source is the benchmark filename without directory.
	Source string `json:"source"`
	// BaseName is the PascalCased product name, e.g. DotNetFramework.
	BaseName string `json:"base_name"`
	// SiteSuffix is "Site" when the product token run ended in Site.
	SiteSuffix string `json:"site_suffix,omitempty"`
	// ProductVersion is the first numeric product token, e.g. 4.0 or 2022.
	ProductVersion string `json:"product_version,omitempty"`
	// Edition is MS or DC for Windows member server and domain controller
	// benchmarks.
	Edition string `json:"edition,omitempty"`
	// Major and Minor are the benchmark V<major>R<minor> values.
	Major string `json:"major"`
	Minor string `json:"minor"`
}

// Derive parses a benchmark filename (a directory part is ignored). The second
// result is false when the name does not fit the DISA template.
func Derive(benchmarkFilename string) (Derivation, bool) {
	name := filepath.Base(strings.TrimSpace(benchmarkFilename))
	match := benchmarkPattern.FindStringSubmatch(name)
	if match == nil {
		return Derivation{}, false
	}

	derivation := Derivation{
		Source:  name,
		Edition: strings.ToUpper(match[2]),
		Major:   trimLeadingZeros(match[3]),
		Minor:   trimLeadingZeros(match[4]),
	}

	tokens := splitTokens(match[1])
	if len(tokens) > 0 && strings.EqualFold(tokens[len(tokens)-1], "Site") {
		derivation.SiteSuffix = "Site"
		tokens = tokens[:len(tokens)-1]
	}

	caser := cases.Title(language.Und, cases.NoLower)
	var nameBuilder strings.Builder
	for _, token := range tokens {
		if derivation.ProductVersion == "" {
			if version, ok := productVersion(token); ok {
				derivation.ProductVersion = version
				continue
			}
		}
		nameBuilder.WriteString(caser.String(alphanumeric(token)))
	}

	derivation.BaseName = nameBuilder.String()
	if derivation.BaseName == "" {
		return Derivation{}, false
	}
	return derivation, true
}

// DeriveConvertedName returns the direct converted filename candidate.
func DeriveConvertedName(benchmarkFilename string) (string, bool) {
	derivation, ok := Derive(benchmarkFilename)
	if !ok {
		return "", false
	}
	return derivation.Name(), true
}

// Version returns the benchmark version as <major>.<minor>.
func (d Derivation) Version() string {
	return d.Major + "." + d.Minor
}

// Stem returns the converted filename without extension.
func (d Derivation) Stem() string {
	segments := []string{d.BaseName + d.SiteSuffix}
	if d.ProductVersion != "" {
		segments = append(segments, d.ProductVersion)
	}
	if d.Edition != "" {
		segments = append(segments, d.Edition)
	}
	segments = append(segments, d.Version())
	return strings.Join(segments, "-")
}

// Name returns the direct converted filename candidate.
func (d Derivation) Name() string {
	return d.Stem() + ".xml"
}

// Candidates returns the direct candidate followed by the alternate spelling
// with a ".0" minor product version toggled. Converter releases disagree on
// whether "4-0" is written as "4.0" or "4", so exactly these two spellings are
// probed.
func (d Derivation) Candidates() []string {
	direct := d.Name()
	alternate := ToggleZeroMinor(direct)
	if alternate == direct {
		return []string{direct}
	}
	return []string{direct, alternate}
}

// WithBaseName returns a copy of d using a different product name.
func (d Derivation) WithBaseName(baseName string) Derivation {
	d.BaseName = baseName
	return d
}

func (d Derivation) String() string {
	return fmt.Sprintf("%s -> %s", d.Source, strings.Join(d.Candidates(), " | "))
}

// ToggleZeroMinor removes a literal ".0" that immediately follows the first
// hyphen-delimited integer segment, or inserts one when absent:
// "X-4.0-2.7.xml" <-> "X-4-2.7.xml". Names without such a segment are returned
// unchanged.
func ToggleZeroMinor(name string) string {
	if removed := removeZeroMinor(name); removed != name {
		return removed
	}
	if location := integerSegment.FindStringSubmatchIndex(name); location != nil {
		return name[:location[0]] + "-" + name[location[2]:location[3]] + ".0-" + name[location[1]:]
	}
	return name
}

func removeZeroMinor(name string) string {
	location := zeroMinorSegment.FindStringSubmatchIndex(name)
	if location == nil {
		return name
	}
	return name[:location[0]] + "-" + name[location[2]:location[3]] + "-" + name[location[1]:]
}

// productVersion reports whether token is a purely numeric product version
// ("2022", "10-0") and returns it with the hyphen replaced by a dot.
func productVersion(token string) (string, bool) {
	match := productVersionToken.FindStringSubmatch(token)
	if match == nil {
		return "", false
	}
	if match[2] == "" {
		return match[1], true
	}
	return match[1] + "." + match[2], true
}

func splitTokens(run string) []string {
	var tokens []string
	for _, token := range strings.Split(run, "_") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// alphanumeric drops separators that would otherwise leak into the name.
func alphanumeric(token string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, token)
}

func trimLeadingZeros(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
