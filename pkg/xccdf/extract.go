// Package xccdf extracts rule identifiers and rule details from DISA XCCDF
// benchmarks and PowerSTIG converted documents. All element matching is by
// local name so the varying default namespaces of DISA releases resolve
// without configuration.
package xccdf

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

// Role identifies which side of a comparison a document belongs to.
type Role int

const (
	// RoleSource is a DISA XCCDF benchmark.
	RoleSource Role = iota
	// RoleConverted is a PowerSTIG converted document.
	RoleConverted
)

// String returns the string representation of a Role.
func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleConverted:
		return "converted"
	default:
		return "unknown"
	}
}

// Element names PowerSTIG converters have used to carry rule identifiers as
// text rather than as an id attribute.
var convertedIDElements = []string{"RuleId", "VulnId", "BenchmarkId"}

// OrganizationalSettingsRoot is the root element of PowerSTIG org settings
// files, which hold thresholds rather than rules.
const OrganizationalSettingsRoot = "OrganizationalSettings"

// ErrUnreadable is wrapped by extraction errors caused by I/O failures.
var ErrUnreadable = errors.New("document unreadable")

// ParseWarning reports that a document could not be parsed as XML. Recovered
// counts identifiers salvaged by the line-oriented fallback scan; when it is
// non-zero the accompanying result is usable.
type ParseWarning struct {
	Path      string
	Role      Role
	Recovered int
	Err       error
}

func (w *ParseWarning) Error() string {
	if w.Recovered > 0 {
		return fmt.Sprintf("%s document %s is malformed (%v); recovered %d ids by text scan", w.Role, w.Path, w.Err, w.Recovered)
	}
	return fmt.Sprintf("%s document %s is malformed: %v", w.Role, w.Path, w.Err)
}

func (w *ParseWarning) Unwrap() error {
	return w.Err
}

// textIDPattern matches id="V-..." and id="SV-..." attribute text for the
// fallback scan.
var textIDPattern = regexp.MustCompile(`(?i)\bid\s*=\s*["']((?:SV|V)-[^"']*)["']`)

// ExtractIDs returns the raw rule identifiers of the document at path.
//
// Source documents are streamed, collecting the id attribute of every Rule
// element; if XML decoding fails the file is re-read line by line for id
// attributes in SV- or V- form. Converted documents are loaded fully and
// yield every id attribute starting with V- plus the text of RuleId, VulnId
// and BenchmarkId elements starting with V-.
//
// ExtractIDs never panics and always returns a non-nil slice. A non-nil error
// describes why the result may be incomplete; it is a *ParseWarning for
// malformed XML or wraps ErrUnreadable for I/O failures.
func ExtractIDs(path string, role Role) ([]string, error) {
	switch role {
	case RoleSource:
		return extractSourceIDs(path)
	case RoleConverted:
		return extractConvertedIDs(path)
	default:
		return []string{}, fmt.Errorf("unknown document role %d", role)
	}
}

func extractSourceIDs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return []string{}, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer file.Close()

	ids, decodeErr := ScanRuleIDs(file)
	if decodeErr == nil {
		return ids, nil
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return orEmpty(ids), &ParseWarning{Path: path, Role: RoleSource, Recovered: len(ids), Err: decodeErr}
	}
	recovered, scanErr := ScanTextIDs(file)
	if scanErr != nil {
		return orEmpty(ids), &ParseWarning{Path: path, Role: RoleSource, Recovered: len(ids), Err: errors.Join(decodeErr, scanErr)}
	}

	merged := mergeUnique(ids, recovered)
	return merged, &ParseWarning{Path: path, Role: RoleSource, Recovered: len(merged), Err: decodeErr}
}

// ScanRuleIDs streams r and returns the trimmed id attribute of each element
// locally named Rule. On a decode error the ids read so far are returned
// alongside it.
func ScanRuleIDs(r io.Reader) ([]string, error) {
	decoder := newDecoder(r)
	ids := []string{}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return ids, nil
		}
		if err != nil {
			return ids, fmt.Errorf("failed to decode XML: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "Rule") {
			continue
		}
		for _, attr := range start.Attr {
			if !strings.EqualFold(attr.Name.Local, "id") {
				continue
			}
			if id := strings.TrimSpace(attr.Value); id != "" {
				ids = append(ids, id)
			}
			break
		}
	}
}

// ScanTextIDs reads r line by line and returns every id attribute value in
// SV- or V- form. It works on truncated or mis-encoded files the XML decoder
// rejects.
func ScanTextIDs(r io.Reader) ([]string, error) {
	reader := bufio.NewReader(r)
	ids := []string{}

	for {
		line, err := reader.ReadString('\n')
		for _, match := range textIDPattern.FindAllStringSubmatch(line, -1) {
			if id := strings.TrimSpace(match[1]); id != "" {
				ids = append(ids, id)
			}
		}
		if err == io.EOF {
			return ids, nil
		}
		if err != nil {
			return ids, fmt.Errorf("failed to scan text: %w", err)
		}
	}
}

func extractConvertedIDs(path string) ([]string, error) {
	document, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return []string{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		return []string{}, &ParseWarning{Path: path, Role: RoleConverted, Err: err}
	}
	return ConvertedIDs(document), nil
}

// ConvertedIDs collects identifiers from a loaded converted document: id
// attributes starting with V- first, then RuleId/VulnId/BenchmarkId element
// text starting with V-. Duplicates are left for the caller's key set.
func ConvertedIDs(document *Document) []string {
	ids := []string{}
	if document == nil {
		return ids
	}

	document.Root.Walk(func(node *Node) bool {
		if value, ok := node.Attr("id"); ok {
			if id := strings.TrimSpace(value); hasVPrefix(id) {
				ids = append(ids, id)
			}
		}
		return true
	})

	document.Root.Walk(func(node *Node) bool {
		if IsConvertedIDElement(node) {
			if id := node.InnerText(); hasVPrefix(id) {
				ids = append(ids, id)
			}
		}
		return true
	})

	return ids
}

// IsConvertedIDElement reports whether node is a RuleId, VulnId or
// BenchmarkId element.
func IsConvertedIDElement(node *Node) bool {
	for _, name := range convertedIDElements {
		if node.Is(name) {
			return true
		}
	}
	return false
}

// IsOrganizationalSettings reports whether the root element of the XML file
// at path is OrganizationalSettings. Only the first start element is read.
func IsOrganizationalSettings(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer file.Close()

	root, err := RootName(file)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(root, OrganizationalSettingsRoot), nil
}

// RootName returns the local name of the first element in r.
func RootName(r io.Reader) (string, error) {
	decoder := newDecoder(r)
	for {
		token, err := decoder.RawToken()
		if err != nil {
			return "", fmt.Errorf("failed to read root element: %w", err)
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// newDecoder returns a lenient decoder: HTML entities are accepted and
// declared non-UTF-8 encodings are transcoded.
func newDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder
}

func hasVPrefix(id string) bool {
	return len(id) >= 2 && strings.EqualFold(id[:2], "V-")
}

func mergeUnique(first, second []string) []string {
	seen := make(map[string]bool, len(first)+len(second))
	merged := make([]string, 0, len(first)+len(second))
	for _, list := range [][]string{first, second} {
		for _, id := range list {
			folded := strings.ToUpper(id)
			if seen[folded] {
				continue
			}
			seen[folded] = true
			merged = append(merged, id)
		}
	}
	return merged
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// FirstElementText returns the text of the first element in r locally named
// local. The second result is false when no such element exists.
func FirstElementText(r io.Reader, local string) (string, bool, error) {
	decoder := newDecoder(r)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to decode XML: %w", err)
		}
		start, ok := token.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, local) {
			continue
		}
		var text string
		if err := decoder.DecodeElement(&text, &start); err != nil {
			return "", false, fmt.Errorf("failed to decode <%s>: %w", local, err)
		}
		return strings.TrimSpace(text), true, nil
	}
}
