package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub006/internal/config"
	"github.com/jeffreymoya/photoeditor-sub006/internal/qa"
	"github.com/jeffreymoya/photoeditor-sub006/pkg/events"
)

var (
	failFast   bool
	noReport   bool
	reportDest string
)

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Run validation tasks and check coverage",
}

var qaRunCmd = &cobra.Command{
	Use:   "run [package]",
	Short: "Run the configured tasks and write a validation report",
	Long: `Runs every [[qa.tasks]] entry, or only those for the given package,
checks the coverage summary against [qa.thresholds] and writes a dated
markdown report. Exits non-zero when a task fails or coverage is short.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQA,
}

var qaCheckCoverageCmd = &cobra.Command{
	Use:   "check-coverage [summary]",
	Short: "Check a coverage summary against the configured thresholds",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolve(cfg.GetCoverageSummary())
		if len(args) == 1 {
			path = args[0]
		}
		s, err := qa.ParseSummaryFile(path)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), s)
		return thresholds(cfg).Enforce(s)
	},
}

var qaWatchCmd = &cobra.Command{
	Use:   "watch [summary]",
	Short: "Re-check coverage whenever the summary file changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolve(cfg.GetCoverageSummary())
		if len(args) == 1 {
			path = args[0]
		}
		w, err := qa.NewWatcher(path, logger)
		if err != nil {
			return err
		}

		ctx, stop := notifyContext(cmd.Context())
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "watching %s\n", path)
		t := thresholds(cfg)
		return w.Run(ctx, func(s qa.Summary, err error) {
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				return
			}
			printSummary(out, s)
			if err := t.Enforce(s); err != nil {
				fmt.Fprintf(out, "FAIL %v\n", err)
				return
			}
			fmt.Fprintln(out, "PASS")
		})
	},
}

func init() {
	qaRunCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Skip remaining tasks after the first failure")
	qaRunCmd.Flags().BoolVar(&noReport, "no-report", false, "Do not write a report file")
	qaRunCmd.Flags().StringVar(&reportDest, "report-dir", "", "Report directory (default: qa.report_dir)")

	qaCmd.AddCommand(qaRunCmd, qaCheckCoverageCmd, qaWatchCmd)
}

func runQA(cmd *cobra.Command, args []string) error {
	pkg := ""
	if len(args) == 1 {
		pkg = args[0]
	}
	name := pkg
	if name == "" {
		name = "all"
	}

	tasks, err := tasksFor(cfg, pkg)
	if err != nil {
		return err
	}

	bus := events.NewEventBusWithConfig(events.WorkerPoolConfig{
		WorkerCount: 1,
		BufferSize:  64,
		Logger:      logger,
	})
	defer bus.Shutdown()
	for _, typ := range []events.EventType{events.TaskFinished, events.CoverageEvaluated} {
		bus.Subscribe(typ, func(e events.Event) {
			logger.Debug("qa event", zap.String("type", string(e.Type)), zap.Any("data", e.Data))
		})
	}

	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	runner := &qa.Runner{Dir: workDir, FailFast: failFast, Logger: logger, Bus: bus}
	results := runner.Run(ctx, tasks)

	var coverage *qa.Summary
	var violations []qa.Violation
	summaryPath := coverageSummaryFor(cfg, pkg)
	switch s, err := qa.ParseSummaryFile(summaryPath); {
	case err == nil:
		coverage = &s
		violations = thresholds(cfg).Check(s)
		bus.Publish(events.Event{
			Type:   events.CoverageEvaluated,
			Source: "qa",
			Data:   map[string]interface{}{"package": name, "violations": len(violations)},
		})
	case errors.Is(err, os.ErrNotExist):
		logger.Info("no coverage summary", zap.String("path", summaryPath))
	default:
		return err
	}

	report := qa.NewReport(name, results, coverage, violations)

	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%-8s %-7s %s\n", strings.ToUpper(string(r.Status)), r.Task.Kind, r.Task.Name)
	}
	for _, v := range violations {
		fmt.Fprintf(out, "coverage %s\n", v)
	}

	if !noReport {
		dir := reportDest
		if dir == "" {
			dir = resolve(cfg.GetReportDir())
		}
		path, err := report.Save(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "report: %s\n", path)
	}

	if report.Status == qa.StatusFail {
		return fmt.Errorf("validation failed for %s", name)
	}
	return nil
}

// tasksFor converts the configured tasks, keeping only those for pkg when it
// is set.
func tasksFor(c *config.Config, pkg string) ([]qa.Task, error) {
	var tasks []qa.Task
	for _, tc := range c.QA.Tasks {
		if pkg != "" && filepath.Clean(tc.Package) != filepath.Clean(pkg) {
			continue
		}
		kind := qa.Kind(tc.Kind)
		switch kind {
		case qa.KindLint, qa.KindStatic, qa.KindTest:
		default:
			return nil, fmt.Errorf("task %q: unknown kind %q", tc.Name, tc.Kind)
		}
		tasks = append(tasks, qa.Task{Name: tc.Name, Kind: kind, Package: tc.Package, Command: tc.Command})
	}
	if len(tasks) == 0 {
		if pkg != "" {
			return nil, fmt.Errorf("no tasks configured for package %q", pkg)
		}
		return nil, errors.New("no tasks configured")
	}
	return tasks, nil
}

func thresholds(c *config.Config) qa.Thresholds {
	lines, branches, functions, statements := c.GetThresholds()
	return qa.Thresholds{Lines: lines, Branches: branches, Functions: functions, Statements: statements}
}

// coverageSummaryFor locates the coverage summary of pkg. A relative
// coverage_summary is taken to live inside the package.
func coverageSummaryFor(c *config.Config, pkg string) string {
	path := c.GetCoverageSummary()
	if filepath.IsAbs(path) {
		return path
	}
	return resolve(filepath.Join(pkg, path))
}

// resolve makes relative paths relative to the working directory flag.
func resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}

func printSummary(w io.Writer, s qa.Summary) {
	fmt.Fprintf(w, "lines %.2f%%  branches %.2f%%  functions %.2f%%  statements %.2f%%\n",
		float64(s.Lines.Pct), float64(s.Branches.Pct), float64(s.Functions.Pct), float64(s.Statements.Pct))
}
