// Package batch pairs folders of DISA benchmarks with PowerSTIG conversions
// and compares every pair.
package batch

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/stigdiff/pkg/convlog"
	"github.com/coolbeans/stigdiff/pkg/reconcile"
)

// DefaultConcurrency is the number of pairs compared at once.
const DefaultConcurrency = 4

// Status is the outcome of one benchmark in a run.
type Status string

const (
	// StatusCompared means the pair was compared; warnings may still apply.
	StatusCompared Status = "compared"

	// StatusUnmatched means no converted file was found for the benchmark.
	StatusUnmatched Status = "unmatched"

	// StatusFailed means the comparison could not read either document.
	StatusFailed Status = "failed"
)

// Options configures a Runner.
type Options struct {
	// BenchmarkFilter is the filename substring benchmarks must contain.
	BenchmarkFilter string

	// ExcludePatterns are filename substrings excluding converted files.
	ExcludePatterns []string

	// Concurrency bounds parallel comparisons. Zero means
	// DefaultConcurrency.
	Concurrency int

	// Alias maps derived product names to converted product names.
	Alias Aliaser

	// Failures, when set, annotates missing ids the converter reported as
	// failed.
	Failures *convlog.FailureLog

	// Logger receives progress and warnings. Nil discards them.
	Logger *slog.Logger
}

// Entry is the outcome for one pair.
type Entry struct {
	Pair `yaml:",inline"`

	Status Status           `json:"status" yaml:"status"`
	Result reconcile.Result `json:"result" yaml:"result"`

	// FailedMissing lists missing ids that the converter log explains.
	FailedMissing []convlog.Failure `json:"failed_missing,omitempty" yaml:"failed_missing,omitempty"`

	// Error describes why the entry is failed or partial.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-" yaml:"-"`
}

// Report is the outcome of one batch run.
type Report struct {
	RunID        string    `json:"run_id" yaml:"run_id"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	Duration     string    `json:"duration" yaml:"duration"`
	BenchmarkDir string    `json:"benchmark_dir" yaml:"benchmark_dir"`
	ConvertedDir string    `json:"converted_dir" yaml:"converted_dir"`

	Entries []Entry `json:"entries" yaml:"entries"`

	// Skipped are benchmark files whose names do not follow the DISA
	// template.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	Compared  int `json:"compared" yaml:"compared"`
	Unmatched int `json:"unmatched" yaml:"unmatched"`
	Failed    int `json:"failed" yaml:"failed"`
}

// ComparedBenchmarks counts distinct benchmarks with at least one compared
// pair.
func (r *Report) ComparedBenchmarks() int {
	seen := make(map[string]bool)
	for _, entry := range r.Entries {
		if entry.Status == StatusCompared {
			seen[entry.Benchmark] = true
		}
	}
	return len(seen)
}

// Runner compares benchmark and converted folders.
type Runner struct {
	options Options
	logger  *slog.Logger
}

// NewRunner creates a Runner, filling unset options with defaults.
func NewRunner(options Options) *Runner {
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{options: options, logger: logger}
}

// Run scans both folders, pairs the files and compares every pair. Only a
// failure to scan a folder, or cancellation of ctx, returns an error;
// per-pair problems are recorded on the entries.
func (runner *Runner) Run(ctx context.Context, benchmarkDir, convertedDir string) (*Report, error) {
	started := time.Now()
	report := &Report{
		RunID:        uuid.New().String(),
		StartedAt:    started,
		BenchmarkDir: benchmarkDir,
		ConvertedDir: convertedDir,
	}
	logger := runner.logger.With("run_id", report.RunID)

	benchmarks, err := ScanBenchmarks(benchmarkDir, runner.options.BenchmarkFilter)
	if err != nil {
		return nil, err
	}
	converted, err := ScanConverted(convertedDir, runner.options.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	logger.Debug("scanned folders", "benchmarks", len(benchmarks), "converted", len(converted))

	pairs, skipped := PairFiles(benchmarks, converted, runner.options.Alias)
	report.Skipped = skipped
	for _, path := range skipped {
		logger.Debug("benchmark name not derivable", "benchmark", path)
	}

	entries, err := runner.ComparePairs(ctx, pairs)
	if err != nil {
		return nil, err
	}
	report.Entries = entries

	for _, entry := range entries {
		switch entry.Status {
		case StatusCompared:
			report.Compared++
		case StatusUnmatched:
			report.Unmatched++
			logger.Warn("no converted match for benchmark", "benchmark", entry.Benchmark, "key", entry.Key)
		case StatusFailed:
			report.Failed++
			logger.Warn("comparison failed", "benchmark", entry.Benchmark, "converted", entry.Converted, "error", entry.Error)
		}
		if entry.Status == StatusCompared && entry.Err != nil {
			logger.Warn("comparison partial", "benchmark", entry.Benchmark, "converted", entry.Converted, "error", entry.Error)
		}
	}

	report.Duration = time.Since(started).Round(time.Millisecond).String()
	logger.Info("batch complete",
		"compared", report.Compared,
		"unmatched", report.Unmatched,
		"failed", report.Failed,
		"duration", report.Duration)
	return report, nil
}

// ComparePairs compares pairs with bounded concurrency. Entries come back in
// the order of pairs regardless of completion order.
func (runner *Runner) ComparePairs(ctx context.Context, pairs []Pair) ([]Entry, error) {
	entries := make([]Entry, len(pairs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runner.options.Concurrency)

	for i, pair := range pairs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			entries[i] = runner.compare(pair)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (runner *Runner) compare(pair Pair) Entry {
	entry := Entry{Pair: pair}
	if pair.Converted == "" {
		entry.Status = StatusUnmatched
		return entry
	}

	result, err := reconcile.CompareFiles(pair.Benchmark, pair.Converted)
	entry.Result = result
	entry.Status = StatusCompared
	if err != nil {
		entry.Err = err
		entry.Error = err.Error()
		if result.Summary().Source == 0 {
			entry.Status = StatusFailed
		}
	}

	if runner.options.Failures != nil {
		for _, id := range result.Missing {
			if failure, ok := runner.options.Failures.Lookup(id); ok {
				entry.FailedMissing = append(entry.FailedMissing, failure)
			}
		}
	}
	return entry
}
