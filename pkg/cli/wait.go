package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leyden/aotctl/pkg/interfaces"
	"github.com/leyden/aotctl/pkg/types"
)

func (c *CLI) newWaitCmd() *cobra.Command {
	var timeout time.Duration
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "wait [stage]",
		Short: "Wait until a stage has finished",
		Long: `Block until the given stage (assemble by default) is no longer running and
exit non-zero when it failed. Useful next to 'aotctl watch' to hold a
deployment until the cache for the newest archive is ready.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage := types.StageAssemble
			if len(args) > 0 {
				name, err := types.ParseStageName(args[0])
				if err != nil {
					return err
				}
				stage = name
			}
			return c.runWait(cmd, stage, timeout, pollInterval)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Minute, "give up after this long (0 waits forever)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "how often to check the stage state")

	return cmd
}

func (c *CLI) runWait(cmd *cobra.Command, stage types.StageName, timeout, pollInterval time.Duration) error {
	s, err := c.loadSession()
	if err != nil {
		return err
	}

	ctx, stop := c.signalContext(cmd, s)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c.printInfo(fmt.Sprintf("Waiting for %s to finish", stage))
	status, err := waitForStage(ctx, s.deps.StateStore, stage, pollInterval)
	if err != nil {
		return err
	}

	if status == types.StageStatusFailed {
		rec, _ := s.deps.StateStore.Read(stage)
		if rec != nil && rec.LastError != "" {
			return fmt.Errorf("%s failed: %s", stage, rec.LastError)
		}
		return fmt.Errorf("%s failed", stage)
	}
	c.printSuccess(fmt.Sprintf("%s %s", stage, status))
	return nil
}

// waitForStage polls the stage record until it reaches a terminal status
func waitForStage(ctx context.Context, store interfaces.StateStore, stage types.StageName, pollInterval time.Duration) (types.StageStatus, error) {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		rec, err := store.Read(stage)
		if err != nil {
			return "", fmt.Errorf("failed to read %s state: %w", stage, err)
		}
		if rec != nil && rec.Status.IsTerminal() {
			return rec.Status, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("gave up waiting for %s: %w", stage, ctx.Err())
		case <-ticker.C:
		}
	}
}
