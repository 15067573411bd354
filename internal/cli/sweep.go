package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/uplift-labs/uplift/internal/experiment"
	"github.com/uplift-labs/uplift/internal/store"
)

func init() {
	rootCmd.AddCommand(newSweepCmd())
}

func newSweepCmd() *cobra.Command {
	var (
		follow   bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-evaluate significance for all running experiments",
		Long: `Re-evaluate significance for all running experiments. The sweep is
idempotent, so it is safe to run from cron or from multiple instances.

With --follow the sweep repeats on an interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") && cfg.SweepInterval > 0 {
				interval = cfg.SweepInterval
			}
			return withEngine(func(eng *experiment.Engine, _ *store.SQLiteStore) error {
				ctx := context.Background()
				if !follow {
					if err := eng.Sweep(ctx); err != nil {
						return err
					}
					fmt.Println("Sweep complete.")
					return nil
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				fmt.Printf("Sweeping every %s. Ctrl-C to stop.\n", interval)
				eng.RunSweeper(ctx, interval)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&follow, "follow", false, "keep sweeping on an interval")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "sweep interval with --follow")
	return cmd
}
