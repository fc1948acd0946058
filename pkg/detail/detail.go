// Package detail looks up the full record of one rule in a benchmark and,
// for V-form identifiers, the matching fragment of the converted output.
package detail

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/coolbeans/stigdiff/pkg/reconcile"
	"github.com/coolbeans/stigdiff/pkg/ruleid"
	"github.com/coolbeans/stigdiff/pkg/xccdf"
)

// DefaultMaxSnippet bounds the converted snippet, in runes.
const DefaultMaxSnippet = 4000

// TruncationMarker ends every snippet that was cut to fit the bound.
const TruncationMarker = "\n... [truncated]"

// ErrRuleNotFound is returned when the benchmark has no rule for the id.
var ErrRuleNotFound = errors.New("rule not found")

// RuleDetail is everything known about one rule.
type RuleDetail struct {
	// RuleID is the identifier that was looked up, or the owning V-form id
	// when an SV id was looked up.
	RuleID string `json:"rule_id" yaml:"rule_id"`

	// SVID is the benchmark Rule id, e.g. SV-225223r961038_rule.
	SVID string `json:"sv_id,omitempty" yaml:"sv_id,omitempty"`

	Title        string   `json:"title,omitempty" yaml:"title,omitempty"`
	Severity     string   `json:"severity,omitempty" yaml:"severity,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	FixText      string   `json:"fix_text,omitempty" yaml:"fix_text,omitempty"`
	CheckContent string   `json:"check_content,omitempty" yaml:"check_content,omitempty"`
	CCIs         []string `json:"ccis,omitempty" yaml:"ccis,omitempty"`

	// ReferencesXML holds the raw ident and reference elements of the rule.
	ReferencesXML string `json:"references_xml,omitempty" yaml:"references_xml,omitempty"`

	// ConvertedFile and ConvertedSnippet locate the rule in converted output.
	// They are always empty for SV-form lookups.
	ConvertedFile    string `json:"converted_file,omitempty" yaml:"converted_file,omitempty"`
	ConvertedSnippet string `json:"converted_snippet,omitempty" yaml:"converted_snippet,omitempty"`

	// Found reports whether the benchmark contained the rule.
	Found bool `json:"found" yaml:"found"`
}

// Discussion returns the VulnDiscussion part of the description, or the whole
// description when it carries no such markup.
func (d RuleDetail) Discussion() string {
	if match := vulnDiscussionPattern.FindStringSubmatch(d.Description); match != nil {
		return strings.TrimSpace(match[1])
	}
	return d.Description
}

// Options tunes Lookup.
type Options struct {
	// MaxSnippet bounds the converted snippet in runes. Zero means
	// DefaultMaxSnippet.
	MaxSnippet int
}

var vulnDiscussionPattern = regexp.MustCompile(`(?s)<VulnDiscussion>(.*?)</VulnDiscussion>`)

// Lookup resolves id in the benchmark at sourcePath. When id is V-form and
// convertedPath is not empty it also searches the converted file, or every
// converted file in the folder, for the first matching node.
//
// A rule that cannot be found yields a RuleDetail with Found false and an
// error wrapping ErrRuleNotFound. A missing converted match is not an error.
func Lookup(id, sourcePath, convertedPath string, opts Options) (RuleDetail, error) {
	id = strings.TrimSpace(id)
	detail := RuleDetail{RuleID: id}
	if id == "" {
		return detail, fmt.Errorf("%w: empty id", ErrRuleNotFound)
	}

	document, err := xccdf.LoadFile(sourcePath)
	if err != nil {
		return detail, err
	}

	svForm := ruleid.IsSV(id)
	var rule *xccdf.Node
	if svForm {
		rule = findBySV(document.Root, id)
	} else {
		rule = findByV(document.Root, id)
	}
	if rule == nil {
		return detail, fmt.Errorf("%w: %s in %s", ErrRuleNotFound, id, sourcePath)
	}

	populate(&detail, document, rule)
	if svForm {
		detail.RuleID = owningVID(rule)
	}

	if !svForm && convertedPath != "" {
		if err := attachConverted(&detail, id, convertedPath, opts.maxSnippet()); err != nil {
			return detail, err
		}
	}

	if svForm {
		detail.ConvertedFile = ""
		detail.ConvertedSnippet = ""
	}
	return detail, nil
}

func (o Options) maxSnippet() int {
	if o.MaxSnippet <= 0 {
		return DefaultMaxSnippet
	}
	return o.MaxSnippet
}

// findByV matches a Rule whose id equals id, whose parent Group id equals
// the base key, or whose id normalizes to the base key.
func findByV(root *xccdf.Node, id string) *xccdf.Node {
	base := ruleid.Normalize(id)
	var byGroup, byBase *xccdf.Node

	exact := root.Find(func(node *xccdf.Node) bool {
		if !node.Is("Rule") {
			return false
		}
		ruleID, _ := node.Attr("id")
		ruleID = strings.TrimSpace(ruleID)
		if strings.EqualFold(ruleID, id) {
			return true
		}
		if base == "" {
			return false
		}
		if byGroup == nil && node.Parent.Is("Group") {
			if groupID, _ := node.Parent.Attr("id"); strings.EqualFold(strings.TrimSpace(groupID), base) {
				byGroup = node
			}
		}
		if byBase == nil && ruleid.Normalize(ruleID) == base {
			byBase = node
		}
		return false
	})

	switch {
	case exact != nil:
		return exact
	case byGroup != nil:
		return byGroup
	default:
		return byBase
	}
}

// findBySV matches a Rule that has an ident child whose text or system
// attribute contains sv, or whose own id starts with sv. A match must not run
// on into further digits, so SV-1 never selects SV-10r1_rule.
func findBySV(root *xccdf.Node, sv string) *xccdf.Node {
	folded := strings.ToUpper(strings.TrimSpace(sv))
	return root.Find(func(node *xccdf.Node) bool {
		if !node.Is("Rule") {
			return false
		}
		if ruleID, _ := node.Attr("id"); svBoundaryAt(strings.ToUpper(strings.TrimSpace(ruleID)), folded, 0) {
			return true
		}
		for _, ident := range node.ChildrenNamed("ident") {
			if containsSV(ident.InnerText(), folded) {
				return true
			}
			if system, _ := ident.Attr("system"); containsSV(system, folded) {
				return true
			}
		}
		return false
	})
}

// containsSV reports whether folded occurs in text at a digit boundary.
func containsSV(text, folded string) bool {
	upper := strings.ToUpper(text)
	for offset := 0; offset < len(upper); {
		index := strings.Index(upper[offset:], folded)
		if index < 0 {
			return false
		}
		if svBoundaryAt(upper, folded, offset+index) {
			return true
		}
		offset += index + 1
	}
	return false
}

// svBoundaryAt reports whether upper holds folded at index and the next byte,
// if any, is not a digit.
func svBoundaryAt(upper, folded string, index int) bool {
	if folded == "" || !strings.HasPrefix(upper[index:], folded) {
		return false
	}
	end := index + len(folded)
	return end == len(upper) || upper[end] < '0' || upper[end] > '9'
}

// owningVID prefers the enclosing Group id and falls back to the normalized
// Rule id.
func owningVID(rule *xccdf.Node) string {
	if rule.Parent.Is("Group") {
		if groupID, _ := rule.Parent.Attr("id"); ruleid.IsV(groupID) {
			return strings.TrimSpace(groupID)
		}
	}
	ruleID, _ := rule.Attr("id")
	return ruleid.Normalize(ruleID)
}

func populate(detail *RuleDetail, document *xccdf.Document, rule *xccdf.Node) {
	detail.Found = true
	detail.SVID, _ = rule.Attr("id")
	detail.SVID = strings.TrimSpace(detail.SVID)
	detail.Title = firstText(rule, "title", "Rule_Title")
	detail.Severity, _ = rule.Attr("severity")
	if detail.Severity == "" {
		detail.Severity = firstText(rule, "severity", "Severity")
	}

	var descriptions []string
	for _, description := range rule.ChildrenNamed("description") {
		if text := description.InnerText(); text != "" {
			descriptions = append(descriptions, text)
		}
	}
	if len(descriptions) == 0 {
		if text := firstText(rule, "Rule_Description"); text != "" {
			descriptions = append(descriptions, text)
		}
	}
	detail.Description = strings.Join(descriptions, "\n\n")

	detail.FixText = firstText(rule, "fixtext", "Fix_Text")

	if check := rule.Child("check"); check != nil && check.Child("check-content") != nil {
		detail.CheckContent = check.Child("check-content").InnerText()
	} else {
		detail.CheckContent = firstText(rule, "check-content")
	}

	var references []string
	for _, child := range rule.Children {
		if !child.Is("ident") && !child.Is("reference") {
			continue
		}
		references = append(references, document.Snippet(child))
		if system, _ := child.Attr("system"); child.Is("ident") && strings.Contains(strings.ToLower(system), "cci") {
			detail.CCIs = append(detail.CCIs, child.InnerText())
		}
	}
	detail.ReferencesXML = strings.Join(references, "\n")
}

func firstText(node *xccdf.Node, names ...string) string {
	for _, name := range names {
		if child := node.Child(name); child != nil {
			if text := child.InnerText(); text != "" {
				return text
			}
		}
	}
	return ""
}

// attachConverted searches one converted file or every converted file in a
// folder. Unreadable converted files are skipped so a single bad sibling
// does not hide a match elsewhere.
func attachConverted(detail *RuleDetail, id, convertedPath string, limit int) error {
	paths := []string{convertedPath}
	if info, err := os.Stat(convertedPath); err == nil && info.IsDir() {
		files, err := reconcile.ConvertedFiles(convertedPath)
		if err != nil {
			return err
		}
		paths = files
	}

	for _, path := range paths {
		document, err := xccdf.LoadFile(path)
		if err != nil {
			continue
		}
		if node := FindConverted(document.Root, id); node != nil {
			detail.ConvertedFile = path
			detail.ConvertedSnippet = Truncate(document.Snippet(node), limit)
			return nil
		}
	}
	return nil
}

// FindConverted returns the first node whose id attribute equals id, or the
// parent of the first RuleId/VulnId/BenchmarkId element whose text equals id.
// When id is a base key a node carrying one of its variants also matches,
// after any exact match.
func FindConverted(root *xccdf.Node, id string) *xccdf.Node {
	base := ruleid.Normalize(id)
	lookingForBase := base != "" && strings.EqualFold(base, id)

	var exact, variant *xccdf.Node
	root.Walk(func(node *xccdf.Node) bool {
		for _, candidate := range convertedIDs(node) {
			if strings.EqualFold(candidate, id) {
				exact = owningNode(node)
				return false
			}
			if lookingForBase && variant == nil && ruleid.IsVariant(candidate) && ruleid.Normalize(candidate) == base {
				variant = owningNode(node)
			}
		}
		return true
	})
	if exact != nil {
		return exact
	}
	return variant
}

// owningNode lifts an id element to the rule that contains it.
func owningNode(node *xccdf.Node) *xccdf.Node {
	if xccdf.IsConvertedIDElement(node) && node.Parent != nil {
		return node.Parent
	}
	return node
}

func convertedIDs(node *xccdf.Node) []string {
	var ids []string
	if value, ok := node.Attr("id"); ok {
		ids = append(ids, strings.TrimSpace(value))
	}
	if xccdf.IsConvertedIDElement(node) {
		ids = append(ids, node.InnerText())
	}
	return ids
}

// Truncate bounds s to limit runes. A cut string ends with TruncationMarker
// and the result, marker included, never exceeds limit. A limit shorter than
// the marker yields the marker alone.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(TruncationMarker)
	if keep < 0 {
		return TruncationMarker
	}
	return string(runes[:keep]) + TruncationMarker
}
