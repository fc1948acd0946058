// Package convlog reads PowerSTIG converter output and records which rules
// failed to convert.
package convlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/coolbeans/stigdiff/pkg/ruleid"
)

// clixmlLineBreak is how PowerShell serializes CRLF inside CLIXML error
// records.
const clixmlLineBreak = "_x000D__x000A_"

// failurePattern matches "Conversion for V-1234 failed. Error: <text>".
var failurePattern = regexp.MustCompile(`(?i)Conversion for (V-\S+?)\s+failed.*?Error:\s*(.*)$`)

// Failure is one rule the converter could not process.
type Failure struct {
	RuleID string `json:"rule_id" yaml:"rule_id"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// String renders the failure as "V-1 failed: reason", or "V-1 failed." when
// no reason was logged.
func (f Failure) String() string {
	if f.Error == "" {
		return f.RuleID + " failed."
	}
	return f.RuleID + " failed: " + f.Error
}

// ParseLine recognizes a converter failure line. Text before the marker,
// such as a timestamp or stream prefix, is ignored.
func ParseLine(line string) (Failure, bool) {
	match := failurePattern.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return Failure{}, false
	}

	id := strings.TrimRight(match[1], ".:,")
	if ruleid.Normalize(id) == "" {
		return Failure{}, false
	}

	message := strings.ReplaceAll(match[2], clixmlLineBreak, " ")
	message = strings.Trim(strings.TrimSpace(message), `"`)
	return Failure{RuleID: id, Error: strings.TrimSpace(message)}, true
}

// FailureLog accumulates failures keyed by rule id, case-insensitively. It is
// safe for concurrent use; the zero value is not, use NewFailureLog.
type FailureLog struct {
	mu       sync.RWMutex
	failures map[string]Failure
}

// NewFailureLog creates an empty log.
func NewFailureLog() *FailureLog {
	return &FailureLog{failures: make(map[string]Failure)}
}

// Record stores a failure, replacing any earlier one for the same rule.
func (l *FailureLog) Record(failure Failure) {
	failure.RuleID = strings.TrimSpace(failure.RuleID)
	if failure.RuleID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[strings.ToUpper(failure.RuleID)] = failure
}

// Lookup returns the failure recorded for id.
func (l *FailureLog) Lookup(id string) (Failure, bool) {
	if l == nil {
		return Failure{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	failure, ok := l.failures[strings.ToUpper(strings.TrimSpace(id))]
	return failure, ok
}

// Has reports whether id failed.
func (l *FailureLog) Has(id string) bool {
	_, ok := l.Lookup(id)
	return ok
}

// Len returns the number of failed rules.
func (l *FailureLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.failures)
}

// Failures returns every failure in natural rule order.
func (l *FailureLog) Failures() []Failure {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	ids := make([]string, 0, len(l.failures))
	byID := make(map[string]Failure, len(l.failures))
	for _, failure := range l.failures {
		ids = append(ids, failure.RuleID)
		byID[failure.RuleID] = failure
	}
	l.mu.RUnlock()

	ruleid.Sort(ids)
	failures := make([]Failure, 0, len(ids))
	for _, id := range ids {
		failures = append(failures, byID[id])
	}
	return failures
}

// Succeeded returns the converted ids that did not fail, deduplicated and in
// natural order.
func (l *FailureLog) Succeeded(convertedIDs []string) []string {
	var succeeded []string
	for _, id := range ruleid.Dedupe(convertedIDs) {
		if ruleid.IsV(id) && !l.Has(id) {
			succeeded = append(succeeded, id)
		}
	}
	return succeeded
}

// Parse scans converter output and records every failure line into log. It
// returns the number of failure lines seen.
func Parse(r io.Reader, log *FailureLog) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	count := 0
	for scanner.Scan() {
		failure, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		log.Record(failure)
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read converter log: %w", err)
	}
	return count, nil
}

// ParseFile parses the converter log at path into log.
func ParseFile(path string, log *FailureLog) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open converter log %s: %w", path, err)
	}
	defer file.Close()
	return Parse(file, log)
}
