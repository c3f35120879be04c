package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leyden/aotctl/pkg/config"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool
	var javaVersion string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default aotctl.yaml",
		Long: `Write aotctl.yaml to the project root. Gradle and Maven projects are
detected so the packaging command, archive location and benchmark
classpath start out right.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(force, javaVersion)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")
	cmd.Flags().StringVar(&javaVersion, "java", "", "java version spec to require, e.g. 25 or 24+")

	return cmd
}

func (c *CLI) runInit(force bool, javaVersion string) error {
	root, err := filepath.Abs(c.config.ProjectRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}

	configPath := c.config.ConfigFile
	if configPath == "" {
		configPath = filepath.Join(root, config.FileName)
	}
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", configPath)
	}

	cfg := config.DefaultConfig()
	if javaVersion != "" {
		cfg.Java.Version = javaVersion
	}

	switch kind := config.DetectProject(root, cfg); kind {
	case "":
		c.printInfo("Could not detect a Gradle or Maven build, set package.command yourself")
	default:
		c.printInfo(fmt.Sprintf("Detected %s project", kind))
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Write(configPath, cfg); err != nil {
		return err
	}

	c.printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	c.printInfo("Set benchmark.mainClass to enable 'aotctl benchmark'")
	return nil
}
