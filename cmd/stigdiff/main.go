package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coolbeans/stigdiff/pkg/batch"
	"github.com/coolbeans/stigdiff/pkg/config"
	"github.com/coolbeans/stigdiff/pkg/convlog"
	"github.com/coolbeans/stigdiff/pkg/detail"
	"github.com/coolbeans/stigdiff/pkg/filename"
	"github.com/coolbeans/stigdiff/pkg/reconcile"
	"github.com/coolbeans/stigdiff/pkg/report"
	"github.com/coolbeans/stigdiff/pkg/split"
	"github.com/coolbeans/stigdiff/pkg/tui"
	"github.com/coolbeans/stigdiff/pkg/watch"
	"github.com/coolbeans/stigdiff/pkg/xccdf"
)

var version = "0.1.0"

// Global state set up before every command runs
var (
	settings = config.Default()
	logger   = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stigdiff",
		Short: "Reconcile DISA STIG rule IDs with PowerSTIG conversions",
		Long: `stigdiff compares DISA XCCDF benchmarks with their PowerSTIG converted
counterparts and reports which rule identifiers were dropped, kept or added
by the conversion.

It can:
  - Compare one benchmark with a converted file or folder
  - Pair and compare whole folders of benchmarks and conversions
  - Predict converted filenames from DISA benchmark filenames
  - Show rule details side by side with the converted XML
  - Split Windows Server benchmarks into MS and DC editions
  - Summarize failed rule conversions from converter logs`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultPath+" if present)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")

	// Add subcommands
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(deriveCmd())
	rootCmd.AddCommand(detailCmd())
	rootCmd.AddCommand(splitCmd())
	rootCmd.AddCommand(failuresCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(tuiCmd())

	return rootCmd
}

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logFormat, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	handlerOptions := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(logFormat) {
	case "text":
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), handlerOptions))
	case "json":
		logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOptions))
	default:
		return fmt.Errorf("invalid --log-format %q: use text or json", logFormat)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	settings = loaded
	logger.Debug("configuration loaded", "path", configPath, "format", settings.Format, "concurrency", settings.Concurrency)
	return nil
}

// outputFormat returns the --format flag, falling back to the configured
// format when the flag is not set.
func outputFormat(cmd *cobra.Command) (report.Format, error) {
	name := settings.Format
	if cmd.Flags().Changed("format") {
		name, _ = cmd.Flags().GetString("format")
	}
	return report.ParseFormat(name)
}

func reportOptions(cmd *cobra.Command) report.Options {
	showMatched := settings.ShowMatched
	if cmd.Flags().Changed("matched") {
		showMatched, _ = cmd.Flags().GetBool("matched")
	}
	return report.Options{ShowMatched: showMatched}
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "Output format: text, json, yaml, markdown")
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <benchmark.xml> <converted.xml|dir>",
		Short: "Compare one benchmark with a converted file or folder",
		Long: `Compare the rule IDs of a DISA benchmark with a PowerSTIG converted file.

When the second argument is a folder, every converted file in it is read
and their IDs are combined, unless --resolve is given, in which case the
converted file predicted from the benchmark filename is used.

Example:
  stigdiff compare U_MS_DotNet_Framework_4-0_STIG_V2R7_Manual-xccdf.xml DotNetFramework-4-2.7.xml
  stigdiff compare U_MS_IIS_10-0_Site_STIG_V2R9_Manual-xccdf.xml ./processed --resolve --matched`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			resolve, _ := cmd.Flags().GetBool("resolve")

			converted := args[1]
			if resolve {
				converted, err = filename.Resolve(args[1], args[0])
				if err != nil {
					return fmt.Errorf("failed to resolve converted file: %w", err)
				}
				logger.Info("resolved converted file", "benchmark", args[0], "converted", converted)
			}

			result, err := reconcile.CompareAuto(args[0], converted)
			if err != nil {
				if errors.Is(err, xccdf.ErrUnreadable) && result.Summary().Source == 0 && len(result.Added) == 0 {
					return err
				}
				logger.Warn("comparison incomplete", "error", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), report.FormatCompare(result, format, reportOptions(cmd)))
			return nil
		},
	}

	addFormatFlag(cmd)
	cmd.Flags().Bool("matched", false, "Also list matched rule IDs")
	cmd.Flags().Bool("resolve", false, "Treat the folder argument as a search path for the predicted converted file")

	return cmd
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <benchmarkDir> <convertedDir>",
		Short: "Pair and compare folders of benchmarks and conversions",
		Long: `Scan a folder of DISA benchmarks and a folder of PowerSTIG conversions,
pair each benchmark with its converted file and compare every pair.

Windows OS benchmarks without an MS/DC edition are compared with both the
member server and domain controller conversions. Benchmarks without a match
are reported and the run continues.

Example:
  stigdiff batch ./disa ./processed
  stigdiff batch ./disa ./processed --failures-log convert.log --format markdown`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			options, err := batchOptions(cmd)
			if err != nil {
				return err
			}

			run, err := batch.NewRunner(options).Run(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.FormatBatch(run, format, reportOptions(cmd)))
			return nil
		},
	}

	addBatchFlags(cmd)
	return cmd
}

func addBatchFlags(cmd *cobra.Command) {
	addFormatFlag(cmd)
	cmd.Flags().Bool("matched", false, "Also list matched rule IDs")
	cmd.Flags().IntP("concurrency", "c", 0, "Pairs compared at once (default from config)")
	cmd.Flags().String("filter", "", "Substring benchmark filenames must contain (default from config)")
	cmd.Flags().StringSlice("failures-log", nil, "Converter log files whose failures annotate missing IDs")
}

func batchOptions(cmd *cobra.Command) (batch.Options, error) {
	options := batch.Options{
		BenchmarkFilter: settings.BenchmarkFilter,
		ExcludePatterns: settings.ExcludePatterns,
		Concurrency:     settings.Concurrency,
		Alias:           settings.Alias,
		Logger:          logger,
	}
	if cmd.Flags().Changed("concurrency") {
		options.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if cmd.Flags().Changed("filter") {
		options.BenchmarkFilter, _ = cmd.Flags().GetString("filter")
	}

	logs, _ := cmd.Flags().GetStringSlice("failures-log")
	if len(logs) > 0 {
		failures, err := loadFailures(logs)
		if err != nil {
			return options, err
		}
		options.Failures = failures
	}
	return options, nil
}

func loadFailures(paths []string) (*convlog.FailureLog, error) {
	failures := convlog.NewFailureLog()
	for _, path := range paths {
		count, err := convlog.ParseFile(path, failures)
		if err != nil {
			return nil, err
		}
		logger.Debug("parsed converter log", "path", path, "failures", count)
	}
	return failures, nil
}

func deriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive <benchmark filename>...",
		Short: "Predict converted filenames for DISA benchmark filenames",
		Long: `Print the converted filename PowerSTIG is expected to write for each DISA
benchmark filename, with the alternate ".0" spelling and the folder pairing key.

Example:
  stigdiff derive U_MS_DotNet_Framework_4-0_STIG_V2R7_Manual-xccdf.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			var derivations []filename.Derivation
			for _, name := range args {
				derivation, ok := filename.Derive(name)
				if !ok {
					logger.Warn("filename does not follow the DISA benchmark pattern", "name", name)
					continue
				}
				if alias := settings.Alias(derivation.BaseName); alias != derivation.BaseName {
					derivation = derivation.WithBaseName(alias)
				}
				derivations = append(derivations, derivation)
			}
			if len(derivations) == 0 {
				return filename.ErrNoDerivation
			}

			out := cmd.OutOrStdout()
			switch format {
			case report.FormatText, report.FormatMarkdown:
				for _, derivation := range derivations {
					fmt.Fprintf(out, "%s\n", derivation.Source)
					for _, candidate := range derivation.Candidates() {
						fmt.Fprintf(out, "  -> %s\n", candidate)
					}
					fmt.Fprintf(out, "  key: %s\n", derivation.Key())
				}
			default:
				fmt.Fprint(out, report.FormatValue(derivations, format))
			}
			return nil
		},
	}

	addFormatFlag(cmd)
	return cmd
}

func detailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detail <rule-id> <benchmark.xml> [converted.xml|dir]",
		Short: "Show the detail of one rule",
		Long: `Show the title, severity, discussion, check and fix text of a rule in a
DISA benchmark. For V- IDs the matching converted XML is shown as well.

Example:
  stigdiff detail V-225238 U_MS_DotNet_Framework_4-0_STIG_V2R7_Manual-xccdf.xml DotNetFramework-4-2.7.xml
  stigdiff detail SV-225238r615940_rule U_MS_DotNet_Framework_4-0_STIG_V2R7_Manual-xccdf.xml`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			maxSnippet := settings.MaxSnippet
			if cmd.Flags().Changed("max-snippet") {
				maxSnippet, _ = cmd.Flags().GetInt("max-snippet")
			}

			converted := ""
			if len(args) == 3 {
				converted = args[2]
			}

			rule, err := detail.Lookup(args[0], args[1], converted, detail.Options{MaxSnippet: maxSnippet})
			if err != nil && !errors.Is(err, detail.ErrRuleNotFound) {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.FormatDetail(rule, format))
			return nil
		},
	}

	addFormatFlag(cmd)
	cmd.Flags().Int("max-snippet", 0, "Maximum converted snippet length in characters (default from config)")

	return cmd
}

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <windows-os-benchmark.xml>",
		Short: "Copy a Windows OS benchmark into MS and DC editions",
		Long: `PowerSTIG converts Windows Server benchmarks separately for member servers
and domain controllers. split writes _MS_STIG_ and _DC_STIG_ copies of a
benchmark, and of its converter log if one sits beside it.

Example:
  stigdiff split U_MS_Windows_Server_2022_STIG_V2R1_Manual-xccdf.xml --dest ./disa`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			dest, _ := cmd.Flags().GetString("dest")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			result, err := split.Split(args[0], split.Options{Dest: dest, Overwrite: overwrite, Logger: logger})
			if errors.Is(err, split.ErrExists) {
				return fmt.Errorf("%w (use --overwrite to replace)", err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case report.FormatText, report.FormatMarkdown:
				fmt.Fprintln(out, result.String())
			default:
				fmt.Fprint(out, report.FormatValue(result, format))
			}
			return nil
		},
	}

	addFormatFlag(cmd)
	cmd.Flags().StringP("dest", "d", "", "Destination folder (default: the benchmark's folder)")
	cmd.Flags().Bool("overwrite", false, "Replace existing edition files")

	return cmd
}

func failuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures <converter.log>...",
		Short: "List failed rule conversions from converter logs",
		Long: `Parse "Conversion for V-#### failed" lines from PowerSTIG converter logs.

With --converted, the rule IDs of a converted file that did not fail are
listed as well.

Example:
  stigdiff failures convert.log
  stigdiff failures convert.log --converted DotNetFramework-4-2.7.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			failures, err := loadFailures(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, report.FormatFailures(failures.Failures(), format))

			converted, _ := cmd.Flags().GetString("converted")
			if converted == "" {
				return nil
			}
			ids, err := xccdf.ExtractIDs(converted, xccdf.RoleConverted)
			if err != nil {
				logger.Warn("converted file read with problems", "path", converted, "error", err)
			}
			succeeded := failures.Succeeded(ids)
			fmt.Fprintf(out, "Succeeded (%d):\n", len(succeeded))
			for _, id := range succeeded {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	}

	addFormatFlag(cmd)
	cmd.Flags().String("converted", "", "Converted file whose non-failed rule IDs are listed")

	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <benchmarkDir> <convertedDir>",
		Short: "Rerun the batch comparison whenever files change",
		Long: `Run a batch comparison, then watch both folders and run it again each time
benchmark or converted files are written. Stop with Ctrl+C.

Example:
  stigdiff watch ./disa ./processed`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			options, err := batchOptions(cmd)
			if err != nil {
				return err
			}
			debounce, err := settings.Debounce()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := batch.NewRunner(options)
			out := cmd.OutOrStdout()
			rerun := func(ctx context.Context, changed []string) error {
				if len(changed) > 0 {
					logger.Info("rerunning batch", "changed", len(changed))
				}
				run, err := runner.Run(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprint(out, report.FormatBatch(run, format, reportOptions(cmd)))
				return nil
			}

			if err := rerun(ctx, nil); err != nil {
				return err
			}
			watcher := watch.New(args, rerun, watch.Options{Debounce: debounce, Logger: logger})
			return watcher.Run(ctx)
		},
	}

	addBatchFlags(cmd)
	return cmd
}

func tuiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui <benchmark.xml> <converted.xml|dir>",
		Short: "Browse a comparison interactively",
		Long: `Open an interactive view with the missing, matched and added rule IDs of a
comparison. Press enter on a rule to see its detail.

Example:
  stigdiff tui U_MS_DotNet_Framework_4-0_STIG_V2R7_Manual-xccdf.xml DotNetFramework-4-2.7.xml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := reconcile.CompareAuto(args[0], args[1])
			if err != nil {
				if result.Summary().Source == 0 && len(result.Added) == 0 {
					return err
				}
				logger.Warn("comparison incomplete", "error", err)
			}

			options := detail.Options{MaxSnippet: settings.MaxSnippet}
			lookup := func(id string) (detail.RuleDetail, error) {
				return detail.Lookup(id, args[0], args[1], options)
			}
			return tui.Run(result, lookup)
		},
	}

	return cmd
}
