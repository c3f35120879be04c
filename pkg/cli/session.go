package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leyden/aotctl/pkg/artifact"
	"github.com/leyden/aotctl/pkg/config"
	"github.com/leyden/aotctl/pkg/interfaces"
	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/notifier"
	"github.com/leyden/aotctl/pkg/pipeline"
	"github.com/leyden/aotctl/pkg/process"
	"github.com/leyden/aotctl/pkg/state"
	"github.com/leyden/aotctl/pkg/toolchain"
	"github.com/leyden/aotctl/pkg/types"
)

// session is the loaded configuration and the collaborators built from it
type session struct {
	root       string
	cfg        *types.Config
	configPath string
	artifacts  artifact.Artifacts
	deps       interfaces.Dependencies
}

// loadSession reads the configuration and builds the collaborators every
// command shares
func (c *CLI) loadSession() (*session, error) {
	root, err := filepath.Abs(c.config.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	cfg, used, err := config.NewManager(root).Load(c.config.ConfigFile)
	if err != nil {
		return nil, err
	}
	if c.config.Verbosity == "" && (cfg.Logging.Level != "" || cfg.Logging.File != "") {
		c.logger = c.newLogger(cfg.Logging.Level, cfg.Logging.File)
	}
	if used != "" {
		c.logger.Debug("Using config file", logger.WithField("file", used))
	} else {
		c.logger.Debug("No config file found, using defaults", logger.WithField("root", root))
	}

	arts, err := artifact.NewLocator(root).Artifacts(cfg.AOT)
	if err != nil {
		return nil, err
	}

	return &session{
		root:       root,
		cfg:        cfg,
		configPath: used,
		artifacts:  arts,
		deps:       c.dependencies(cfg, arts),
	}, nil
}

func (c *CLI) dependencies(cfg *types.Config, arts artifact.Artifacts) interfaces.Dependencies {
	deps := c.deps
	if deps.Launcher == nil {
		deps.Launcher = process.NewExecLauncher(arts.LogDir(), c.logger)
	}
	if deps.StateStore == nil {
		deps.StateStore = state.NewManager(arts.StateDir(), c.logger)
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.New(notifier.Config{Enabled: cfg.Notifications.Enabled}, c.logger)
	}
	if deps.Resolver == nil {
		deps.Resolver = toolchain.NewResolver(cfg.Java, c.logger)
	}
	if deps.ProcessManager == nil {
		deps.ProcessManager = process.NewManager(c.logger)
	}
	return deps
}

// resolveToolchain finds the JDK used by every stage of this command
func (c *CLI) resolveToolchain(ctx context.Context, s *session) (*toolchain.Toolchain, error) {
	tc, err := s.deps.Resolver.Resolve(ctx, s.cfg.Java.Version)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Using Java toolchain",
		logger.WithField("version", tc.Version),
		logger.WithField("home", tc.Home))
	return tc, nil
}

// signalContext cancels the command context on SIGINT or SIGTERM
func (c *CLI) signalContext(cmd *cobra.Command, s *session) (context.Context, func()) {
	pm := s.deps.ProcessManager
	ctx := pm.Start(cmd.Context())
	return ctx, pm.Stop
}

// settings converts the session into coordinator inputs
func (s *session) settings(tc *toolchain.Toolchain) pipeline.Settings {
	return pipeline.Settings{
		ProjectRoot: s.root,
		ArchivePath: s.cfg.Archive,
		Package:     s.cfg.Package,
		App:         s.cfg.App,
		Staleness:   s.cfg.AOT.Staleness,
		Artifacts:   s.artifacts,
		Toolchain:   tc,
	}
}

// writeStructured encodes v as yaml or json
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q (use table, yaml or json)", format)
}
