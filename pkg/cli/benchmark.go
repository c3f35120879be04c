package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/leyden/aotctl/pkg/artifact"
	"github.com/leyden/aotctl/pkg/benchmark"
	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/utils"
)

func (c *CLI) newBenchmarkCmd() *cobra.Command {
	var logFile string
	var top int
	var output string

	cmd := &cobra.Command{
		Use:   "benchmark [-- app args...]",
		Short: "Measure application startup with unified JVM logging",
		Long: `Launch benchmark.mainClass from the project root on benchmark.classpath with
gc, safepoint and class loading logging enabled, then summarise the log.
The packaged archive and the AOT cache are not used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBenchmark(cmd, logFile, top, output, args)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "unified log file (default: benchmark.logFile)")
	cmd.Flags().IntVar(&top, "top", 5, "number of most frequent log tag sets to show")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, yaml, json)")

	return cmd
}

func (c *CLI) runBenchmark(cmd *cobra.Command, logFile string, top int, output string, args []string) error {
	s, err := c.loadSession()
	if err != nil {
		return err
	}

	opts := benchmark.OptionsFromConfig(s.root, s.cfg.Benchmark, s.cfg.App.Env)
	if logFile != "" {
		opts.LogFile = logFile
	}
	opts.Args = append(append([]string{}, opts.Args...), args...)
	if err := opts.Validate(); err != nil {
		return err
	}

	ctx, stop := c.signalContext(cmd, s)
	defer stop()

	tc, err := c.resolveToolchain(ctx, s)
	if err != nil {
		return err
	}

	if s.cfg.Benchmark.Explode {
		archive, err := artifact.NewLocator(s.root).Locate(s.cfg.Archive)
		if err != nil {
			return err
		}
		if !utils.FileExists(archive.Path) {
			return fmt.Errorf("%w: %s, run 'aotctl package' first", artifact.ErrArchiveNotFound, archive.Path)
		}
		dest := s.artifacts.ExplodedDir()
		if err := benchmark.Explode(archive.Path, dest); err != nil {
			return err
		}
		c.logger.Debug("Unpacked archive for the benchmark classpath",
			logger.WithField("archive", archive.Name),
			logger.WithField("dir", dest))
	}

	runner := benchmark.NewRunner(s.deps.Launcher, c.logger, c.output).WithStateStore(s.deps.StateStore)
	report, err := runner.Run(ctx, tc, opts)
	if err != nil {
		return err
	}

	classes := 0
	if report.Summary != nil {
		classes = report.Summary.ClassesLoaded
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifyBenchmark(report.Duration, classes)
	}

	if output != "table" {
		return writeStructured(c.output, output, report)
	}
	c.printBenchmark(report, top)
	return nil
}

func (c *CLI) printBenchmark(report *benchmark.Report, top int) {
	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	fmt.Fprintln(w, "------\t-----")
	fmt.Fprintf(w, "wall time\t%s\n", report.Duration.Round(time.Millisecond))
	if report.StartupTime > 0 {
		fmt.Fprintf(w, "reported startup\t%s\n", report.StartupTime.Round(time.Millisecond))
	}
	if report.Samples > 0 {
		fmt.Fprintf(w, "peak rss\t%s\n", utils.FormatBytes(int64(report.PeakRSS)))
	}

	sum := report.Summary
	if sum != nil {
		fmt.Fprintf(w, "log lines\t%d\n", sum.Lines)
		fmt.Fprintf(w, "classes loaded\t%d\n", sum.ClassesLoaded)
		fmt.Fprintf(w, "classes from cache\t%d\n", sum.ClassesFromCache)
		fmt.Fprintf(w, "gc pauses\t%d (%s)\n", sum.GCPauses, sum.GCPauseTotal.Round(time.Microsecond))
		fmt.Fprintf(w, "safepoints\t%d\n", sum.Safepoints)
		if span := sum.Span(); span > 0 {
			fmt.Fprintf(w, "log span\t%s\n", span.Round(time.Millisecond))
		}
	}
	w.Flush()

	if sum != nil && top > 0 {
		fmt.Fprintln(c.output)
		w = tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TAGS\tEVENTS")
		fmt.Fprintln(w, "----\t------")
		for _, tc := range sum.TopEvents(top) {
			fmt.Fprintf(w, "%s\t%d\n", tc.Tags, tc.Count)
		}
		w.Flush()
	}

	c.printInfo(fmt.Sprintf("Unified log written to %s", report.LogFile))
}
