package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uplift-labs/uplift/internal/experiment"
	"github.com/uplift-labs/uplift/internal/store"
)

func init() {
	rootCmd.AddCommand(newLifecycleCmd("start", "Start a draft or paused experiment",
		func(ctx context.Context, eng *experiment.Engine, id string) error { return eng.Start(ctx, id) }))
	rootCmd.AddCommand(newLifecycleCmd("pause", "Pause a running experiment",
		func(ctx context.Context, eng *experiment.Engine, id string) error { return eng.Pause(ctx, id) }))
	rootCmd.AddCommand(newLifecycleCmd("complete", "Complete an experiment and freeze its results",
		func(ctx context.Context, eng *experiment.Engine, id string) error { return eng.Complete(ctx, id) }))
	rootCmd.AddCommand(newLifecycleCmd("archive", "Archive an experiment",
		func(ctx context.Context, eng *experiment.Engine, id string) error { return eng.Archive(ctx, id) }))
}

func newLifecycleCmd(verb, short string, run func(context.Context, *experiment.Engine, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <experiment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(eng *experiment.Engine, _ *store.SQLiteStore) error {
				if err := run(context.Background(), eng, args[0]); err != nil {
					return err
				}
				fmt.Printf("Experiment %s: %s ok\n", args[0], verb)
				return nil
			})
		},
	}
}
