// Package ruleid normalizes DISA and PowerSTIG rule identifiers into a single
// comparable key space and orders them the way reviewers read rule numbers.
//
// DISA benchmarks identify rules as "SV-225223r961038_rule" (with a separate
// "V-225223" group id); PowerSTIG output uses "V-225223" and sometimes dotted
// sub-check variants such as "V-225223.a". Both reduce to the base key
// "V-225223".
package ruleid

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind classifies a raw identifier by the scheme it belongs to.
type Kind int

const (
	// KindUnmappable is an identifier matching neither the SV- nor V- form.
	KindUnmappable Kind = iota
	// KindSV is a DISA vulnerability identifier such as SV-1234r5_rule.
	KindSV
	// KindV is a plain V- identifier such as V-1234.
	KindV
	// KindVariant is a converted sub-check identifier such as V-1234.a.
	KindVariant
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindSV:
		return "SV"
	case KindV:
		return "V"
	case KindVariant:
		return "VARIANT"
	default:
		return "UNMAPPABLE"
	}
}

// MarshalJSON implements json.Marshaler for Kind.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

var (
	svDigitsPattern = regexp.MustCompile(`(?i)^SV-(\d+)`)
	vDigitsPattern  = regexp.MustCompile(`(?i)^V-(\d+)`)
	variantPattern  = regexp.MustCompile(`(?i)^V-\d+\.[A-Za-z0-9]+$`)
)

// Normalize maps a raw identifier to its base key "V-<digits>". Revision and
// "_rule" suffixes on SV- ids and dotted suffixes on V- ids are discarded.
// Identifiers matching neither form return "" and must be dropped by the
// caller rather than guessed at.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if match := svDigitsPattern.FindStringSubmatch(trimmed); match != nil {
		return "V-" + match[1]
	}
	if match := vDigitsPattern.FindStringSubmatch(trimmed); match != nil {
		return "V-" + match[1]
	}
	return ""
}

// IsVariant reports whether raw is a dotted sub-check identifier like V-1234.a.
func IsVariant(raw string) bool {
	return variantPattern.MatchString(strings.TrimSpace(raw))
}

// IsSV reports whether raw uses the DISA SV- scheme.
func IsSV(raw string) bool {
	return svDigitsPattern.MatchString(strings.TrimSpace(raw))
}

// IsV reports whether raw uses the V- scheme, variants included.
func IsV(raw string) bool {
	return vDigitsPattern.MatchString(strings.TrimSpace(raw))
}

// Classify returns the Kind of a raw identifier.
func Classify(raw string) Kind {
	switch {
	case IsSV(raw):
		return KindSV
	case IsVariant(raw):
		return KindVariant
	case IsV(raw):
		return KindV
	default:
		return KindUnmappable
	}
}
