// Package split copies a Windows Server benchmark into member server and
// domain controller editions so each pairs with its PowerSTIG conversion.
package split

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/coolbeans/stigdiff/pkg/filename"
	"github.com/coolbeans/stigdiff/pkg/xccdf"
)

var (
	// ErrNotWindowsOS is returned for benchmarks that are not Windows
	// operating system benchmarks.
	ErrNotWindowsOS = errors.New("not a Windows OS benchmark")

	// ErrExists is returned when a target exists and overwriting is off.
	ErrExists = errors.New("target already exists")
)

// Action is what happened to one target file.
type Action string

const (
	ActionCreated     Action = "created"
	ActionOverwritten Action = "overwritten"

	// ActionSkipped marks a target that resolves to the source itself.
	ActionSkipped Action = "skipped"
)

// Options configures Split.
type Options struct {
	// Dest is the output directory. Empty means the source's directory.
	Dest string

	// Overwrite replaces existing targets.
	Overwrite bool

	// Logger receives one line per written file. Nil discards them.
	Logger *slog.Logger
}

// Target is one written, or skipped, file.
type Target struct {
	Edition string `json:"edition" yaml:"edition"`
	Path    string `json:"path" yaml:"path"`
	Action  Action `json:"action" yaml:"action"`

	// LogPath is the copied sibling converter log, if the source had one.
	LogPath string `json:"log_path,omitempty" yaml:"log_path,omitempty"`
}

// Result lists the targets of one split.
type Result struct {
	Source  string   `json:"source" yaml:"source"`
	Targets []Target `json:"targets" yaml:"targets"`
}

// String summarizes the result as "Created: a; Overwritten: b".
func (r Result) String() string {
	parts := make([]string, 0, len(r.Targets))
	for _, target := range r.Targets {
		label := strings.ToUpper(string(target.Action[:1])) + string(target.Action[1:])
		parts = append(parts, fmt.Sprintf("%s: %s", label, filepath.Base(target.Path)))
	}
	return strings.Join(parts, "; ")
}

// IsWindowsOS reports whether the benchmark at path is a Windows OS
// benchmark, first by filename and then by its first title element.
func IsWindowsOS(path string) (bool, error) {
	if filename.IsWindowsOSBenchmark(path) {
		return true, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open benchmark: %w", err)
	}
	defer file.Close()

	title, ok, err := xccdf.FirstElementText(file, "title")
	if err != nil || !ok {
		return false, err
	}
	return isWindowsOSTitle(title), nil
}

func isWindowsOSTitle(title string) bool {
	lower := strings.ToLower(title)
	if !strings.Contains(lower, "windows") {
		return false
	}
	return strings.Contains(lower, "server") ||
		strings.Contains(lower, "windows 10") ||
		strings.Contains(lower, "windows 11")
}

// TargetNames returns the MS and DC filenames for a benchmark filename.
func TargetNames(name string) map[string]string {
	base := filepath.Base(name)
	names := make(map[string]string, 2)
	for _, edition := range filename.Editions() {
		names[edition] = filename.WithEdition(base, edition)
	}
	return names
}

// Split writes the MS and DC copies of the benchmark at source. Existing
// targets fail the whole split with ErrExists unless Overwrite is set; no
// file is written in that case.
func Split(source string, options Options) (Result, error) {
	result := Result{Source: source}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if _, err := os.Stat(source); err != nil {
		return result, fmt.Errorf("failed to stat benchmark: %w", err)
	}
	windows, err := IsWindowsOS(source)
	if err != nil {
		return result, err
	}
	if !windows {
		return result, fmt.Errorf("%s: %w", filepath.Base(source), ErrNotWindowsOS)
	}

	dest := options.Dest
	if dest == "" {
		dest = filepath.Dir(source)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return result, fmt.Errorf("failed to stat destination: %w", err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("destination %s is not a directory", dest)
	}

	names := TargetNames(source)
	var existing []string
	for _, edition := range filename.Editions() {
		target := Target{Edition: edition, Path: filepath.Join(dest, names[edition])}
		if samePath(target.Path, source) {
			target.Action = ActionSkipped
		} else if _, err := os.Stat(target.Path); err == nil {
			if !options.Overwrite {
				existing = append(existing, filepath.Base(target.Path))
			}
			target.Action = ActionOverwritten
		} else {
			target.Action = ActionCreated
		}
		result.Targets = append(result.Targets, target)
	}
	if len(existing) > 0 {
		return result, fmt.Errorf("%s: %w", strings.Join(existing, ", "), ErrExists)
	}

	sourceLog := logPath(source)
	if _, err := os.Stat(sourceLog); err != nil {
		sourceLog = ""
	}

	for i := range result.Targets {
		target := &result.Targets[i]
		if target.Action == ActionSkipped {
			continue
		}
		if err := copyFile(source, target.Path); err != nil {
			return result, err
		}
		if sourceLog != "" {
			target.LogPath = logPath(target.Path)
			if err := copyFile(sourceLog, target.LogPath); err != nil {
				return result, err
			}
		}
		logger.Info("wrote edition", "edition", target.Edition, "path", target.Path, "action", target.Action)
	}
	return result, nil
}

func logPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".log"
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return strings.EqualFold(absA, absB)
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", from, err)
	}
	defer in.Close()

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", to, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy to %s: %w", to, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", to, err)
	}
	return nil
}
