package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/leyden/aotctl/internal/watcher"
	"github.com/leyden/aotctl/pkg/artifact"
	"github.com/leyden/aotctl/pkg/config"
	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/pipeline"
	"github.com/leyden/aotctl/pkg/types"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var target string
	var initial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the AOT cache whenever the archive changes",
		Long: `Watch the archive location and re-run record and assemble each time a new
archive has been written and left alone for watch.settle. Configuration
edits are picked up without a restart. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := types.ParseStageName(target)
			if err != nil {
				return err
			}
			if stage != types.StageRecord && stage != types.StageAssemble {
				return fmt.Errorf("watch target must be record or assemble, got %s", stage)
			}
			return c.runWatch(cmd, stage, initial)
		},
	}

	cmd.Flags().StringVar(&target, "target", string(types.StageAssemble), "last stage to re-run (record or assemble)")
	cmd.Flags().BoolVar(&initial, "initial", true, "build once at startup when an archive is already present")

	return cmd
}

// archiveWatch returns the directory to watch and the file names that count as the archive
func archiveWatch(root, archive string) (string, func(string) bool) {
	path := archive
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path, artifact.IsLaunchable
	}
	if filepath.Ext(path) != ".jar" {
		// a directory the packaging step has not created yet
		return path, artifact.IsLaunchable
	}
	name := filepath.Base(path)
	return filepath.Dir(path), func(n string) bool { return n == name }
}

func (c *CLI) runWatch(cmd *cobra.Command, target types.StageName, initial bool) error {
	s, err := c.loadSession()
	if err != nil {
		return err
	}
	settle, err := s.cfg.Watch.SettleDelay()
	if err != nil {
		return err
	}

	ctx, stop := c.signalContext(cmd, s)
	defer stop()

	tc, err := c.resolveToolchain(ctx, s)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	current := s.settings(tc)

	rebuild := func(ctx context.Context, ev watcher.Event) error {
		mu.Lock()
		settings := current
		mu.Unlock()

		settings.ArchivePath = ev.Path
		coord := pipeline.NewCoordinator(settings, s.deps, c.logger, c.output)
		report, err := coord.Execute(ctx, pipeline.Options{Target: target, SkipPackage: true})
		if report != nil {
			c.printReport(report)
		}
		return err
	}

	if s.configPath != "" {
		onReload := func(cfg *types.Config, err error) {
			if err != nil {
				c.printWarning(fmt.Sprintf("Keeping previous configuration: %v", err))
				return
			}
			arts, err := artifact.NewLocator(s.root).Artifacts(cfg.AOT)
			if err != nil {
				c.printWarning(fmt.Sprintf("Keeping previous configuration: %v", err))
				return
			}
			next, err := s.deps.Resolver.Resolve(ctx, cfg.Java.Version)
			if err != nil {
				c.printWarning(fmt.Sprintf("Keeping previous configuration: %v", err))
				return
			}

			mu.Lock()
			archive := current.ArchivePath
			current.Package = cfg.Package
			current.App = cfg.App
			current.Staleness = cfg.AOT.Staleness
			current.Artifacts = arts
			current.Toolchain = next
			current.ArchivePath = cfg.Archive
			mu.Unlock()

			if cfg.Archive != archive {
				c.printWarning("Archive location changes take effect after restarting watch")
			}
			c.printInfo("Configuration reloaded")
		}

		reloadCtx, cancelReload := context.WithCancel(ctx)
		reloadDone := make(chan struct{})
		go func() {
			defer close(reloadDone)
			r := config.NewReloader(s.configPath, config.NewManager(s.root), c.logger)
			if err := r.Run(reloadCtx, onReload); err != nil {
				c.logger.Warn("Configuration changes will not be picked up", logger.WithField("error", err))
			}
		}()
		defer func() {
			cancelReload()
			<-reloadDone
		}()
	}

	dir, match := archiveWatch(s.root, s.cfg.Archive)
	w, err := watcher.New(dir, match, settle, c.logger)
	if err != nil {
		return err
	}

	if initial {
		if archive, err := artifact.NewLocator(s.root).Locate(s.cfg.Archive); err == nil {
			if info, err := os.Stat(archive.Path); err == nil && !info.IsDir() && info.Size() > 0 {
				ev := watcher.Event{Path: archive.Path, Size: info.Size(), ModTime: info.ModTime()}
				if err := rebuild(ctx, ev); err != nil && ctx.Err() == nil {
					c.printWarning(fmt.Sprintf("Initial build failed: %v", err))
				}
			}
		}
	}

	c.printInfo(fmt.Sprintf("Watching %s, press Ctrl+C to stop", dir))
	if err := w.Run(ctx, rebuild); err != nil {
		return err
	}
	c.printSuccess("Stopped watching")
	return nil
}
