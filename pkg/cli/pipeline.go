package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/leyden/aotctl/pkg/pipeline"
	"github.com/leyden/aotctl/pkg/toolchain"
	"github.com/leyden/aotctl/pkg/types"
)

type stageFlags struct {
	only        bool
	skipPackage bool
}

func (f *stageFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.only, "only", false, "run this stage alone, using the files left by earlier runs")
	cmd.Flags().BoolVar(&f.skipPackage, "skip-package", false, "do not run package.command first")
}

func (c *CLI) newPackageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "package",
		Short: "Run the packaging command",
		Long: `Run package.command in the project root and check that it leaves an
executable archive at the configured location.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPipeline(cmd, pipeline.Options{Target: types.StagePackage, Only: true}, nil)
		},
	}
}

func (c *CLI) newRecordCmd() *cobra.Command {
	var flags stageFlags
	cmd := &cobra.Command{
		Use:   "record [-- training args...]",
		Short: "Record a training run into the AOT configuration",
		Long: `Launch the archive in record mode so the JVM writes the AOT configuration.
The application is started with --spring.main.web-application-type=none so
it exits on its own once the context is up. Arguments after -- are passed
to the application after app.trainingArgs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{Target: types.StageRecord, Only: flags.only, SkipPackage: flags.skipPackage}
			return c.runPipeline(cmd, opts, func(app *types.AppConfig) {
				app.TrainingArgs = append(append([]string{}, app.TrainingArgs...), args...)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) newAssembleCmd() *cobra.Command {
	var flags stageFlags
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble the AOT cache from the recorded configuration",
		Long: `Create the AOT cache from the training configuration. Without --only the
record stage runs first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{Target: types.StageAssemble, Only: flags.only, SkipPackage: flags.skipPackage}
			return c.runPipeline(cmd, opts, nil)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) newRunCmd() *cobra.Command {
	var flags stageFlags
	cmd := &cobra.Command{
		Use:   "run [-- app args...]",
		Short: "Run the application with the AOT cache",
		Long: `Launch the archive with the AOT cache enabled. Without --only the record
and assemble stages run first. Arguments after -- are passed to the
application after app.args.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{Target: types.StageRun, Only: flags.only, SkipPackage: flags.skipPackage}
			return c.runPipeline(cmd, opts, func(app *types.AppConfig) {
				app.Args = append(append([]string{}, app.Args...), args...)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runPipeline(cmd *cobra.Command, opts pipeline.Options, adjust func(*types.AppConfig)) error {
	s, err := c.loadSession()
	if err != nil {
		return err
	}
	if opts.Target == types.StagePackage && strings.TrimSpace(s.cfg.Package.Command) == "" {
		return fmt.Errorf("no package.command configured")
	}

	ctx, stop := c.signalContext(cmd, s)
	defer stop()

	var tc *toolchain.Toolchain
	if opts.Target != types.StagePackage {
		if tc, err = c.resolveToolchain(ctx, s); err != nil {
			return err
		}
	}

	settings := s.settings(tc)
	if adjust != nil {
		adjust(&settings.App)
	}

	coord := pipeline.NewCoordinator(settings, s.deps, c.logger, c.output)
	report, err := coord.Execute(ctx, opts)
	if report != nil {
		c.printReport(report)
	}
	if err != nil {
		if s.deps.ProcessManager.Interrupted() {
			return fmt.Errorf("%s interrupted: %w", opts.Target, err)
		}
		return err
	}

	c.printSuccess(fmt.Sprintf("%s finished in %s", opts.Target, report.Duration.Round(time.Millisecond)))
	return nil
}

// printReport prints one row per selected stage
func (c *CLI) printReport(report *pipeline.Report) {
	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATUS\tDURATION\tEXIT\tNOTE")
	fmt.Fprintln(w, "-----\t------\t--------\t----\t----")

	for _, sr := range report.Stages {
		duration, exit, note := "-", "-", ""
		if sr.Result != nil {
			duration = sr.Result.Duration.Round(time.Millisecond).String()
			exit = fmt.Sprintf("%d", sr.Result.ExitCode)
		}
		switch {
		case sr.Reused:
			note = "reused"
		case sr.Err != nil:
			note = sr.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", sr.Stage, colorStatus(sr.Status), duration, exit, note)
	}
	w.Flush()
}

func colorStatus(status types.StageStatus) string {
	s := string(status)
	switch status {
	case types.StageStatusSucceeded:
		return color.GreenString(s)
	case types.StageStatusFailed:
		return color.RedString(s)
	case types.StageStatusRunning:
		return color.YellowString(s)
	}
	return color.WhiteString(s)
}
