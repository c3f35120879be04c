package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/leyden/aotctl/pkg/artifact"
	"github.com/leyden/aotctl/pkg/benchmark"
	"github.com/leyden/aotctl/pkg/state"
	"github.com/leyden/aotctl/pkg/types"
	"github.com/leyden/aotctl/pkg/utils"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last outcome of every stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, yaml, json)")
	return cmd
}

func (c *CLI) newCleanCmd() *cobra.Command {
	var keepLogs bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete the AOT files, logs and state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runClean(keepLogs)
		},
	}

	cmd.Flags().BoolVar(&keepLogs, "keep-logs", false, "keep the stage logs")
	return cmd
}

func (c *CLI) newLogsCmd() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [stage]",
		Short: "Show the output of the last stage processes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage := ""
			if len(args) > 0 {
				stage = args[0]
			}
			return c.runLogs(stage, lines)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show per stage")
	return cmd
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration, the toolchain and the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd)
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "☕ aotctl v%s\n", c.config.Version)
		},
	}
}

// artifactStatus describes one hand-off file on disk
type artifactStatus struct {
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"`
	Exists bool   `json:"exists" yaml:"exists"`
	Size   int64  `json:"size" yaml:"size"`
}

type statusView struct {
	Artifacts []artifactStatus     `json:"artifacts" yaml:"artifacts"`
	Stages    []*state.StageRecord `json:"stages" yaml:"stages"`
}

func (c *CLI) runStatus(output string) error {
	s, err := c.loadSession()
	if err != nil {
		return err
	}

	records, err := s.deps.StateStore.Discover()
	if err != nil {
		return fmt.Errorf("failed to discover stage state: %w", err)
	}

	view := statusView{Artifacts: artifactStatuses(s.artifacts)}
	for _, stage := range append(append([]types.StageName{}, types.PipelineStages...), types.StageBenchmark) {
		if rec, ok := records[stage]; ok {
			view.Stages = append(view.Stages, rec)
		}
	}

	if output != "table" {
		return writeStructured(c.output, output, view)
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATUS\tLAST RUN\tDURATION\tRUNS\tFAILURES\tNOTE")
	fmt.Fprintln(w, "-----\t------\t--------\t--------\t----\t--------\t----")

	for _, stage := range types.PipelineStages {
		status, lastRun, duration := "idle", "-", "-"
		runs, failures := 0, 0
		note := ""

		if rec, ok := records[stage]; ok {
			status = colorStatus(rec.Status)
			if !rec.StartedAt.IsZero() {
				lastRun = rec.StartedAt.Format("2006-01-02 15:04:05")
			}
			if rec.Duration > 0 {
				duration = rec.Duration.Round(time.Millisecond).String()
			}
			runs, failures = rec.RunCount, rec.FailureCount
			switch {
			case rec.Reused:
				note = "reused"
			case rec.LastError != "":
				note = rec.LastError
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", stage, status, lastRun, duration, runs, failures, note)
	}
	w.Flush()

	fmt.Fprintln(c.output)
	w = tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ARTIFACT\tSIZE\tPATH")
	fmt.Fprintln(w, "--------\t----\t----")
	for _, a := range view.Artifacts {
		size := "missing"
		if a.Exists {
			size = utils.FormatBytes(a.Size)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, size, a.Path)
	}
	w.Flush()
	return nil
}

func artifactStatuses(arts artifact.Artifacts) []artifactStatus {
	files := []struct{ name, path string }{
		{"config", arts.ConfigFile},
		{"cache", arts.CacheFile},
		{"manifest", arts.ManifestFile()},
	}
	out := make([]artifactStatus, 0, len(files))
	for _, f := range files {
		a := artifactStatus{Name: f.name, Path: f.path}
		if size, err := utils.FileSize(f.path); err == nil {
			a.Exists, a.Size = true, size
		}
		out = append(out, a)
	}
	return out
}

func (c *CLI) runClean(keepLogs bool) error {
	s, err := c.loadSession()
	if err != nil {
		return err
	}

	removed := 0
	for _, path := range []string{s.artifacts.ConfigFile, s.artifacts.CacheFile, s.artifacts.ManifestFile()} {
		if !utils.FileExists(path) {
			continue
		}
		if err := utils.RemoveFile(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		c.logger.Debug("Removed " + path)
		removed++
	}

	if utils.DirectoryExists(s.artifacts.ExplodedDir()) {
		if err := os.RemoveAll(s.artifacts.ExplodedDir()); err != nil {
			return fmt.Errorf("failed to remove unpacked archive: %w", err)
		}
		removed++
	}

	if !keepLogs && utils.DirectoryExists(s.artifacts.LogDir()) {
		if err := os.RemoveAll(s.artifacts.LogDir()); err != nil {
			return fmt.Errorf("failed to remove logs: %w", err)
		}
		removed++
	}

	if err := s.deps.StateStore.Clean(); err != nil {
		return fmt.Errorf("failed to clean state: %w", err)
	}

	if removed == 0 {
		c.printInfo("Nothing to clean")
		return nil
	}
	c.printSuccess(fmt.Sprintf("Cleaned %s", s.artifacts.Dir))
	return nil
}

func (c *CLI) runLogs(stage string, lines int) error {
	s, err := c.loadSession()
	if err != nil {
		return err
	}

	logDir := s.artifacts.LogDir()
	if !utils.DirectoryExists(logDir) {
		c.printWarning("No logs found. Run 'aotctl record' to produce some.")
		return nil
	}

	var logFiles []string
	if stage != "" {
		name, err := types.ParseStageName(stage)
		if err != nil {
			return err
		}
		path := filepath.Join(logDir, string(name)+".log")
		if !utils.FileExists(path) {
			return fmt.Errorf("no logs found for stage: %s", name)
		}
		logFiles = []string{path}
	} else {
		for _, name := range append(append([]types.StageName{}, types.PipelineStages...), types.StageBenchmark) {
			path := filepath.Join(logDir, string(name)+".log")
			if utils.FileExists(path) {
				logFiles = append(logFiles, path)
			}
		}
		if len(logFiles) == 0 {
			c.printWarning("No log files found")
			return nil
		}
	}

	for _, logFile := range logFiles {
		content, err := readLastNLines(logFile, lines)
		if err != nil {
			c.printError(fmt.Sprintf("Failed to display %s: %v", filepath.Base(logFile), err))
			continue
		}
		fmt.Fprintf(c.output, "\n=== %s ===\n", strings.TrimSuffix(filepath.Base(logFile), ".log"))
		fmt.Fprint(c.output, content)
	}
	return nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var tail []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		tail = append(tail, scanner.Text())
		if n > 0 && len(tail) > n {
			tail = tail[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(tail) == 0 {
		return "", nil
	}
	return strings.Join(tail, "\n") + "\n", nil
}

func (c *CLI) runValidate(cmd *cobra.Command) error {
	s, err := c.loadSession()
	if err != nil {
		return err
	}
	if s.configPath != "" {
		c.printSuccess(fmt.Sprintf("Configuration is valid: %s", s.configPath))
	} else {
		c.printInfo("No configuration file found, defaults are valid")
	}

	tc, err := s.deps.Resolver.Resolve(cmd.Context(), s.cfg.Java.Version)
	if err != nil {
		return err
	}
	c.printSuccess(fmt.Sprintf("Java %s at %s", tc.Version, tc.Executable))

	archive, err := artifact.NewLocator(s.root).Locate(s.cfg.Archive)
	switch {
	case err == nil && utils.FileExists(archive.Path):
		c.printSuccess(fmt.Sprintf("Archive %s in %s", archive.Name, archive.Dir))
	case s.cfg.Package.Command != "" && (err == nil || errors.Is(err, artifact.ErrArchiveNotFound)):
		c.printWarning(fmt.Sprintf("No archive yet, 'aotctl package' runs: %s", s.cfg.Package.Command))
	case err == nil:
		return fmt.Errorf("%w: %s", artifact.ErrArchiveNotFound, archive.Path)
	default:
		return err
	}

	opts := benchmark.OptionsFromConfig(s.root, s.cfg.Benchmark, s.cfg.App.Env)
	if err := opts.Validate(); err != nil {
		c.printWarning(fmt.Sprintf("Benchmark unavailable: %v", err))
	}
	return nil
}
