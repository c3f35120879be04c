// Package cli provides the command-line interface for aotctl
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/leyden/aotctl/pkg/interfaces"
	"github.com/leyden/aotctl/pkg/logger"
)

// CLI owns the command tree and the writers commands print to
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer

	// deps overrides the collaborators built from configuration; nil fields use defaults
	deps interfaces.Dependencies
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(config *Config) *CLI {
	if config == nil {
		config = NewConfig()
	}

	cli := &CLI{
		config:   config,
		output:   os.Stdout,
		errorOut: os.Stderr,
		logger:   logger.Discard(),
	}

	cli.setupCommands()
	return cli
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(config *Config, output, errorOut io.Writer) *CLI {
	cli := NewCLI(config)
	cli.output = output
	cli.errorOut = errorOut
	return cli
}

// WithDependencies replaces the launcher, state store, notifier, resolver or
// process manager used by commands
func (c *CLI) WithDependencies(deps interfaces.Dependencies) *CLI {
	c.deps = deps
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support. Errors are printed
// before being returned.
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	c.rootCmd.SetOut(c.output)
	c.rootCmd.SetErr(c.errorOut)

	err := c.rootCmd.ExecuteContext(ctx)
	if err != nil {
		c.printError(err.Error())
	}
	return err
}

// Execute runs aotctl with the process arguments
func Execute(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).Execute(os.Args[1:])
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "aotctl",
		Short: "Train, build and use JDK AOT caches",
		Long: `☕ aotctl - ahead-of-time cache orchestration for JVM applications

aotctl packages your application, records a training run, assembles the
AOT cache from it and launches the application with the cache enabled.
Every stage uses the same resolved JDK and checks the files it hands to
the next stage before anything is launched.`,

		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: c.initializeConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("☕ aotctl v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newPackageCmd())
	c.rootCmd.AddCommand(c.newRecordCmd())
	c.rootCmd.AddCommand(c.newAssembleCmd())
	c.rootCmd.AddCommand(c.newRunCmd())
	c.rootCmd.AddCommand(c.newBenchmarkCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newCleanCmd())
	c.rootCmd.AddCommand(c.newLogsCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newWaitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", c.config.ConfigFile, "config file (default: aotctl.yaml in the project root)")
	flags.StringVar(&c.config.ProjectRoot, "root", c.config.ProjectRoot, "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", c.config.Verbosity, "log level (debug, info, warn, error); overrides logging.level")
	flags.BoolVar(&c.config.NoColor, "no-color", c.config.NoColor, "disable colored output")
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	if c.config.NoColor {
		color.NoColor = true
	}
	level := c.config.Verbosity
	if level == "" {
		level = "info"
	}
	c.logger = c.newLogger(level, "")
	return nil
}

// newLogger writes to the console, mirrored to file when one is configured
func (c *CLI) newLogger(level, file string) logger.Logger {
	if c.output == os.Stdout {
		return logger.CreateLogger(file, level)
	}
	return logger.CreateLoggerWithOutput(level, c.output)
}

// Helper methods for user-facing lines

func (c *CLI) printSuccess(message string) {
	fmt.Fprintf(c.output, "☕ %s %s\n", color.GreenString("[aotctl]"), message)
}

func (c *CLI) printError(message string) {
	fmt.Fprintf(c.errorOut, "☕ %s %s\n", color.RedString("[aotctl]"), message)
}

func (c *CLI) printInfo(message string) {
	fmt.Fprintf(c.output, "☕ %s %s\n", color.CyanString("[aotctl]"), message)
}

func (c *CLI) printWarning(message string) {
	fmt.Fprintf(c.output, "☕ %s %s\n", color.YellowString("[aotctl]"), message)
}
